package pe

import "math"

// CalculateEntropy returns the Shannon entropy of data in bits per byte,
// from 0 (one repeated value) to 8 (uniformly random).
// It is reported next to the bzip2 complexity and does not affect the digest.
func CalculateEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0.0
	}

	var freq [256]int
	for _, b := range data {
		freq[b]++
	}

	var entropy float64
	n := float64(len(data))
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}

	return entropy
}
