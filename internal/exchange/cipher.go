package exchange

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// AESGCM implements Cipher with AES-256-GCM. The random nonce is prepended
// to the ciphertext.
type AESGCM struct{}

func NewAESGCM() AESGCM {
	return AESGCM{}
}

func (AESGCM) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key is %d bytes, want %d: %w", len(key), KeySize, apperrors.ErrCrypto)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	return gcm, nil
}

func (c AESGCM) Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := c.aead(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("reading nonce: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (c AESGCM) Decrypt(key, ciphertext []byte) ([]byte, error) {
	gcm, err := c.aead(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext of %d bytes is too short: %w", len(ciphertext), apperrors.ErrCrypto)
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ciphertext: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	return plaintext, nil
}

// Seal derives the key shared with peerPublic and encrypts plaintext.
func Seal(kx KeyExchange, c Cipher, peerPublic, plaintext []byte) ([]byte, error) {
	key, err := kx.DeriveSharedSecret(peerPublic)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(key, plaintext)
}

// Open derives the key shared with peerPublic and decrypts ciphertext.
func Open(kx KeyExchange, c Cipher, peerPublic, ciphertext []byte) ([]byte, error) {
	key, err := kx.DeriveSharedSecret(peerPublic)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(key, ciphertext)
}
