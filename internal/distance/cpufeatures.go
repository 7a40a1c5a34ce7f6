package distance

import (
	"sync"

	"golang.org/x/sys/cpu"
)

// Tier names the ISA tier selected for a process.
type Tier int

const (
	TierScalar Tier = iota
	TierSIMD        // AVX2 (amd64) or NEON (arm64), via vek32
	TierAVX512
)

func (t Tier) String() string {
	switch t {
	case TierAVX512:
		return "avx512"
	case TierSIMD:
		return "simd"
	default:
		return "scalar"
	}
}

var (
	featureOnce sync.Once
	detected    Tier
)

// detectTier runs feature detection exactly once per process (spec.md
// §4.B construction contract) and caches the result. Every subsequent
// DistanceEngine construction reuses it -- no per-call probing.
func detectTier() Tier {
	featureOnce.Do(func() {
		switch {
		case cpu.X86.HasAVX512F:
			detected = TierAVX512
		case cpu.X86.HasAVX2, cpu.ARM64.HasASIMD:
			detected = TierSIMD
		default:
			detected = TierScalar
		}
	})
	return detected
}
