// Package distkernel implements the per-ISA distance primitives (spec.md
// §4.A). Each tier exposes the same five-function contract with the same
// numeric contract: the scalar tier is the reference implementation every
// other tier must agree with inside a metric-specific tolerance.
//
// Go has no portable AVX-512 intrinsics without cgo or hand-written
// assembly, which the rest of this pack never reaches for either. The
// AVX2/NEON tier instead delegates to github.com/viterin/vek/vek32 (used
// by the pack for exactly this purpose, see go-mizu-mizu's
// vector-distance_simd.go) which dispatches to hardware SIMD internally
// on both architectures. The AVX-512 tier is a hand-unrolled,
// 4-accumulator pure-Go implementation selected only when the process
// detects AVX-512F, matching the kernel policies below without claiming
// assembly this module does not contain.
package distkernel

import "math"

// Set is a concrete, non-polymorphic bundle of the five distance
// primitives for one ISA tier. The distance engine (package distance)
// resolves one Set per process and stores plain function values in it --
// no interface, no vtable, so the hot loop pays for one indirect call.
type Set struct {
	Name string

	// Dot returns the raw dot product of a and b.
	Dot func(a, b []float32) float32
	// L2Squared returns the squared Euclidean distance between a and b.
	L2Squared func(a, b []float32) float32
	// Cosine returns 1 - cosine_similarity(a, b), clamped to [0, 2].
	Cosine func(a, b []float32) float32
	// Hamming returns the count of differing components (thresholded at
	// zero -- VelesDB represents binary vectors as +1/-1 or 0/nonzero
	// float32 lanes so a single kernel contract covers Full-f32 and
	// Binary storage modes).
	Hamming func(a, b []float32) float32
	// Jaccard returns 1 - |intersection|/|union| over the nonzero lanes
	// of a and b.
	Jaccard func(a, b []float32) float32
}

// Tolerance returns the per-metric numeric tolerance a SIMD tier's result
// must fall within of the scalar reference, per spec.md §4.A / §8.
func Tolerance(metric string, a, b []float32) float64 {
	switch metric {
	case "dot":
		return 1e-5 * float64(Scalar.Dot(a, a)) * float64(Scalar.Dot(b, b))
	case "l2":
		na := Scalar.L2Squared(a, a)
		nb := Scalar.L2Squared(b, b)
		m := na
		if nb > m {
			m = nb
		}
		return 1e-5 * float64(m)
	case "cosine":
		return 1e-5
	case "hamming", "jaccard":
		return 0 // exact
	default:
		return 1e-5
	}
}

// accumulatorCount picks the number of parallel accumulators per the
// kernel policy in spec.md §4.A: >=1024 elements -> 4, 64-1023 -> 2,
// 16-63 -> 1, <16 -> plain scalar loop (SIMD/unroll setup cost exceeds
// savings at that size).
func accumulatorCount(n int) int {
	switch {
	case n >= 1024:
		return 4
	case n >= 64:
		return 2
	case n >= 16:
		return 1
	default:
		return 0
	}
}

func clampUnit(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func sqrtf(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
