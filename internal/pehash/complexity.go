package pehash

import "math"

// MaxComplexity is the score given to sections that bzip2 expands.
const MaxComplexity = 8

// Complexity approximates how incompressible a section is.
// The result is in [0, 8]: len(bzip2(content)) scaled to 7 relative to the
// declared raw size, rounded half away from zero, with 8 for sections that
// grow under compression. A zero raw size always scores 0.
//
// With cgo the length comes from libbz2 and matches other pehashng tools bit
// for bit. Builds without cgo use a pure Go encoder whose lengths differ, so
// their digests are only comparable with each other.
func Complexity(rawSize uint32, content []byte) uint8 {
	if rawSize == 0 {
		return 0
	}

	ratio := float64(compressedLen(content)) * 7.0 / float64(rawSize)
	if ratio > 7 {
		return MaxComplexity
	}
	return uint8(math.Round(ratio))
}
