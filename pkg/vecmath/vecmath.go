// Package vecmath is the hot numeric path: squared-Euclidean distance
// and the handful of vector operations the iteration controller needs
// to accumulate and fold centroid deltas.
package vecmath

// Distance2 returns the squared Euclidean distance between u and v:
// sum_i (u_i - v_i)^2. No square root is taken; comparisons are always
// on squared distance, which preserves ordering.
//
// Accumulation walks i = 0, 1, ..., len(u)-1 in order. Two callers
// computing Distance2 on the same pair of vectors must get a
// bit-identical result, so this order is part of the contract and
// must not be reassociated (no SIMD-style partial sums, no
// parallel reduction) even though that's the loop a real SIMD
// kernel would use.
func Distance2(u, v []float64) float64 {
	var sum float64
	for i := 0; i < len(u); i++ {
		d := u[i] - v[i]
		sum += d * d
	}
	return sum
}

// AddInPlace adds src into dst element-wise: dst[i] += src[i].
func AddInPlace(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// SubInPlace subtracts src from dst element-wise: dst[i] -= src[i].
func SubInPlace(dst, src []float64) {
	for i := range dst {
		dst[i] -= src[i]
	}
}

// ScaleInPlace multiplies every element of v by scalar.
func ScaleInPlace(v []float64, scalar float64) {
	for i := range v {
		v[i] *= scalar
	}
}

// Zero fills v with zeros.
func Zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}

// Copy copies src into dst. dst must have at least len(src) capacity.
func Copy(dst, src []float64) {
	copy(dst, src)
}
