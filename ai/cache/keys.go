package cache

import (
	"github.com/go-crypt/x/blake2b"
)

// Key prefixes for different data types
const (
	vectorPrefix = "vec:"
)

// makeVectorKey generates the key for a (model, text) pair.
// Format: prefix + blake2b-256(model 0x00 text)
func makeVectorKey(model, text string) []byte {
	h, _ := blake2b.New(32, nil) // only fails for invalid sizes or keys
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	sum := h.Sum(nil)

	buf := make([]byte, len(vectorPrefix)+len(sum))
	offset := copy(buf, vectorPrefix)
	copy(buf[offset:], sum)
	return buf
}
