package phash

import (
	"encoding/binary"
	"fmt"
	"image"
	"math/bits"

	"github.com/corona10/goimagehash"
)

// Size is the length in bytes of a serialized hash.
const Size = 8

// Hash is a 64-bit perceptual hash serialized big-endian.
type Hash []byte

// Compute returns the perceptual hash of an image. The underlying pHash is a
// 64-bit DCT fingerprint, so visually similar images produce hashes with a
// small Hamming distance.
func Compute(img image.Image) (Hash, error) {
	if img == nil {
		return nil, fmt.Errorf("compute phash: nil image")
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("compute phash: %w", err)
	}
	buf := make([]byte, Size)
	binary.BigEndian.PutUint64(buf, h.GetHash())
	return buf, nil
}

// Distance returns the Hamming distance between two hashes, the number of bit
// positions where they differ. Zero means the fingerprints are identical.
func Distance(a, b Hash) (int, error) {
	if len(a) != Size || len(b) != Size {
		return 0, fmt.Errorf("phash distance: hash lengths %d and %d, want %d", len(a), len(b), Size)
	}
	dist := 0
	for i := 0; i < Size; i++ {
		dist += bits.OnesCount8(a[i] ^ b[i])
	}
	return dist, nil
}

// Uint64 returns the hash as its numeric value, mainly for display.
func (h Hash) Uint64() uint64 {
	if len(h) != Size {
		return 0
	}
	return binary.BigEndian.Uint64(h)
}

// String formats the hash as a fixed-width hex string.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", h.Uint64())
}
