package placement

import "math"

// lowbias32 is a 32-bit integer finalizer with low avalanche bias,
// https://nullprogram.com/blog/2018/07/31/.
func lowbias32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// HashPosition maps a candidate's world UV to a reproducible value in
// [0, 1). It is the sole source of randomness in the evaluation kernel:
// being a pure function of the position, it makes class assignment
// independent of dispatch order. The Go and WGSL implementations are kept
// identical bit for bit.
func HashPosition(u, v float32) float32 {
	h := lowbias32(math.Float32bits(u) ^ lowbias32(math.Float32bits(v)))
	// Use the top 24 bits so the result is exactly representable and
	// strictly below one.
	return float32(h>>8) * (1.0 / 16777216.0)
}
