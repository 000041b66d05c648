package pehash

import (
	"fmt"
	"math/bits"
)

// AlignDownPow2 returns the largest power of two not greater than n, or 0 for 0.
func AlignDownPow2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return 1 << (bits.Len64(n) - 1)
}

// AlignUp rounds n up to the next multiple of boundary.
// boundary must be a power of two; anything else is a programming error and panics.
func AlignUp(n, boundary uint64) uint64 {
	if boundary == 0 || AlignDownPow2(boundary) != boundary {
		panic(fmt.Sprintf("pehash: alignment boundary %d is not a power of two", boundary))
	}
	mask := boundary - 1
	return (n + mask) &^ mask
}
