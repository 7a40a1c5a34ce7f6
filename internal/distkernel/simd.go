package distkernel

import "github.com/viterin/vek/vek32"

// SIMDVek is the AVX2/NEON kernel tier. It delegates the three
// floating-point primitives to viterin/vek's vek32 package, which
// dispatches to hardware SIMD internally on both amd64 (AVX2) and arm64
// (NEON) -- this is the same library and the same usage pattern as
// go-mizu-mizu's vector-distance_simd.go in the retrieval pack. Hamming
// and Jaccard have no vek primitive (they are not floating-point
// reductions vek targets), so this tier falls back to the scalar
// implementation for those two metrics; that fallback is exact, not an
// approximation, so it never violates the tolerance contract.
var SIMDVek = Set{
	Name:      "simd-vek",
	Dot:       vek32.Dot,
	L2Squared: vekL2Squared,
	Cosine:    vekCosine,
	Hamming:   scalarHamming,
	Jaccard:   scalarJaccard,
}

func vekL2Squared(a, b []float32) float32 {
	d := vek32.Distance(a, b)
	return d * d
}

func vekCosine(a, b []float32) float32 {
	na := vek32.Norm(a)
	nb := vek32.Norm(b)
	if na == 0 || nb == 0 {
		return 1.0
	}
	dot := vek32.Dot(a, b)
	sim := clampUnit(dot / (na * nb))
	return 1.0 - sim
}
