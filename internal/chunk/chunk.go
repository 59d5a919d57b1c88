// Package chunk converts byte payloads to and from sequences of 64-bit
// integers. Each integer carries at most seven payload bytes; its top byte
// holds the number of zero filler bytes that precede them, so the final
// partial stride survives the round trip exactly.
package chunk

import (
	"encoding/binary"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// Stride is the number of payload bytes per chunk.
const Stride = 7

// MaxValue is the largest integer Split can produce: six filler bytes and
// one 0xff payload byte.
const MaxValue = uint64(Stride-1)<<56 | 0xff

// Splitter walks a payload one chunk at a time. It is restartable with
// Reset and never copies the payload.
type Splitter struct {
	data []byte
	pos  int
}

func NewSplitter(data []byte) *Splitter {
	return &Splitter{data: data}
}

// Next returns the next chunk, or false once the payload is exhausted.
func (s *Splitter) Next() (uint64, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	end := min(s.pos+Stride, len(s.data))
	v := Encode(s.data[s.pos:end])
	s.pos = end
	return v, true
}

// Remaining returns how many chunks Next will still yield.
func (s *Splitter) Remaining() int {
	return Count(len(s.data) - s.pos)
}

func (s *Splitter) Reset() {
	s.pos = 0
}

// Count returns the number of chunks a payload of n bytes splits into.
func Count(n int) int {
	if n < 0 {
		panic(fmt.Sprintf("chunk: negative length %d", n))
	}
	return (n + Stride - 1) / Stride
}

// Split returns every chunk of data. An empty payload yields no chunks.
func Split(data []byte) []uint64 {
	out := make([]uint64, 0, Count(len(data)))
	s := NewSplitter(data)
	for v, ok := s.Next(); ok; v, ok = s.Next() {
		out = append(out, v)
	}
	return out
}

// Encode packs one stride of 1 to 7 bytes. It panics on any other length,
// which is a caller bug.
func Encode(stride []byte) uint64 {
	if len(stride) == 0 || len(stride) > Stride {
		panic(fmt.Sprintf("chunk: stride length %d outside [1,%d]", len(stride), Stride))
	}
	var buf [8]byte
	pad := Stride - len(stride)
	buf[0] = byte(pad)
	copy(buf[1+pad:], stride)
	return binary.BigEndian.Uint64(buf[:])
}

// Decode unpacks one chunk and appends its payload bytes to dst.
func Decode(dst []byte, v uint64) ([]byte, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	pad := int(buf[0])
	if pad >= Stride {
		return dst, fmt.Errorf("chunk %#x: pad count %d: %w", v, pad, apperrors.ErrInvalidChunk)
	}
	return append(dst, buf[1+pad:]...), nil
}

// Join reassembles the payload from chunks in arrival order.
func Join(chunks []uint64) ([]byte, error) {
	out := make([]byte, 0, len(chunks)*Stride)
	for i, v := range chunks {
		var err error
		out, err = Decode(out, v)
		if err != nil {
			return nil, fmt.Errorf("joining chunk %d: %w", i, err)
		}
	}
	return out, nil
}
