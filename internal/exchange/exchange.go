// Package exchange provides the key agreement and symmetric cipher the
// codec carries: peers swap public keys as sentences, derive a shared key,
// and then swap ciphertexts as sentences. The codec treats both as
// byte-in, byte-out collaborators.
package exchange

import (
	"crypto/ecdh"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// KeyExchange agrees on a symmetric key with a peer.
type KeyExchange interface {
	// GenerateKeyPair creates a new local key pair and returns the public
	// half, ready to send.
	GenerateKeyPair() ([]byte, error)
	// DeriveSharedSecret combines the local private key with the peer's
	// public key into a symmetric key.
	DeriveSharedSecret(peerPublic []byte) ([]byte, error)
}

// Cipher seals and opens payloads with a symmetric key.
type Cipher interface {
	Encrypt(key, plaintext []byte) ([]byte, error)
	Decrypt(key, ciphertext []byte) ([]byte, error)
}

// KeySize is the length of derived keys.
const KeySize = 32

const (
	pemPrivateKeyType = "PRIVATE KEY"
	hkdfInfo          = "exquisite-corpse/v1 session key"
)

var errNoKey = errors.New("no local key pair")

// ECDH implements KeyExchange on NIST P-256. Public keys travel as PKIX
// DER; the shared secret is stretched with HKDF-SHA256.
type ECDH struct {
	priv *ecdh.PrivateKey
}

func NewECDH() *ECDH {
	return &ECDH{}
}

func (e *ECDH) GenerateKeyPair() ([]byte, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating P-256 key: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	e.priv = priv
	return e.PublicKey()
}

// PublicKey returns the PKIX encoding of the local public key.
func (e *ECDH) PublicKey() ([]byte, error) {
	if e.priv == nil {
		return nil, fmt.Errorf("public key: %w", errors.Join(apperrors.ErrCrypto, errNoKey))
	}
	der, err := x509.MarshalPKIXPublicKey(e.priv.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	return der, nil
}

func (e *ECDH) DeriveSharedSecret(peerPublic []byte) ([]byte, error) {
	if e.priv == nil {
		return nil, fmt.Errorf("deriving secret: %w", errors.Join(apperrors.ErrCrypto, errNoKey))
	}
	peer, err := parsePublicKey(peerPublic)
	if err != nil {
		return nil, err
	}
	secret, err := e.priv.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	key, err := hkdf.Key(sha256.New, secret, nil, hkdfInfo, KeySize)
	if err != nil {
		return nil, fmt.Errorf("hkdf: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	return key, nil
}

func parsePublicKey(der []byte) (*ecdh.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing peer public key: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	type ecdhConvertible interface {
		ECDH() (*ecdh.PublicKey, error)
	}
	switch k := pub.(type) {
	case *ecdh.PublicKey:
		return checkCurve(k)
	case ecdhConvertible:
		converted, err := k.ECDH()
		if err != nil {
			return nil, fmt.Errorf("converting peer public key: %w", errors.Join(apperrors.ErrCrypto, err))
		}
		return checkCurve(converted)
	default:
		return nil, fmt.Errorf("peer public key is %T, want P-256: %w", pub, apperrors.ErrCrypto)
	}
}

func checkCurve(k *ecdh.PublicKey) (*ecdh.PublicKey, error) {
	if k.Curve() != ecdh.P256() {
		return nil, fmt.Errorf("peer public key is on the wrong curve: %w", apperrors.ErrCrypto)
	}
	return k, nil
}

// MarshalPrivateKeyPEM encodes the local private key as PKCS#8 PEM.
func (e *ECDH) MarshalPrivateKeyPEM() ([]byte, error) {
	if e.priv == nil {
		return nil, fmt.Errorf("private key: %w", errors.Join(apperrors.ErrCrypto, errNoKey))
	}
	der, err := x509.MarshalPKCS8PrivateKey(e.priv)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKeyType, Bytes: der}), nil
}

// ParsePrivateKeyPEM loads a PKCS#8 PEM private key written by
// MarshalPrivateKeyPEM.
func ParsePrivateKeyPEM(data []byte) (*ECDH, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemPrivateKeyType {
		return nil, fmt.Errorf("no %q PEM block: %w", pemPrivateKeyType, apperrors.ErrCrypto)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", errors.Join(apperrors.ErrCrypto, err))
	}
	type ecdhConvertible interface {
		ECDH() (*ecdh.PrivateKey, error)
	}
	var priv *ecdh.PrivateKey
	switch k := key.(type) {
	case *ecdh.PrivateKey:
		priv = k
	case ecdhConvertible:
		if priv, err = k.ECDH(); err != nil {
			return nil, fmt.Errorf("converting private key: %w", errors.Join(apperrors.ErrCrypto, err))
		}
	default:
		return nil, fmt.Errorf("private key is %T, want P-256: %w", key, apperrors.ErrCrypto)
	}
	if priv.Curve() != ecdh.P256() {
		return nil, fmt.Errorf("private key is on the wrong curve: %w", apperrors.ErrCrypto)
	}
	return &ECDH{priv: priv}, nil
}

// LoadPrivateKeyFile reads a PEM private key from path.
func LoadPrivateKeyFile(path string) (*ECDH, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", path, err)
	}
	return ParsePrivateKeyPEM(data)
}

// SavePrivateKeyFile writes the private key to path with owner-only
// permissions, via a temp file and rename.
func (e *ECDH) SavePrivateKeyFile(path string) error {
	data, err := e.MarshalPrivateKeyPEM()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming private key: %w", err)
	}
	return nil
}
