// Package distance implements the distance dispatch engine (spec.md
// §4.B): a per-(metric, dimension) cache of concrete kernel function
// pointers, resolved once at construction so the hot loop pays for one
// predicted branch and one indirect call instead of per-call feature
// probing or a polymorphic dispatch through an interface.
package distance

import (
	"fmt"

	"github.com/velesdb/veles/internal/config"
	"github.com/velesdb/veles/internal/distkernel"
	"github.com/velesdb/veles/internal/obslog"
	"github.com/velesdb/veles/internal/verrors"
)

// Engine resolves the five kernel function pointers of the detected tier
// at construction time and exposes its configured metric's kernel
// through Distance. It is immutable after construction and
// freely shared across goroutines (spec.md §5).
type Engine struct {
	metric    config.Metric
	dimension int
	tier      Tier

	dot       func(a, b []float32) float32
	l2Squared func(a, b []float32) float32
	cosine    func(a, b []float32) float32
	hamming   func(a, b []float32) float32
	jaccard   func(a, b []float32) float32

	gpu GPUProvider // optional, nil if unset
}

// avx512WarmupIterations is the number of dummy calls issued once per
// AVX-512-tier engine to stabilize CPU frequency/licensing transitions
// before the first real call (spec.md §4.B).
const avx512WarmupIterations = 3

// New constructs a DistanceEngine for the given metric and dimension.
// Feature detection runs at most once per process; this constructor
// resolves the five kernel function pointers for the detected tier and,
// for the AVX-512 tier, performs a short warmup.
func New(metric config.Metric, dimension int) (*Engine, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("distance: dimension must be positive, got %d", dimension)
	}

	tier := detectTier()
	var set distkernel.Set
	switch tier {
	case TierAVX512:
		set = distkernel.AVX512
	case TierSIMD:
		set = distkernel.SIMDVek
	default:
		set = distkernel.Scalar
	}

	e := &Engine{
		metric:    metric,
		dimension: dimension,
		tier:      tier,
		dot:       set.Dot,
		l2Squared: set.L2Squared,
		cosine:    set.Cosine,
		hamming:   set.Hamming,
		jaccard:   set.Jaccard,
	}

	if tier == TierAVX512 {
		e.warmupAVX512()
	}

	return e, nil
}

func (e *Engine) warmupAVX512() {
	dummy := make([]float32, e.dimension)
	for i := range dummy {
		dummy[i] = 1.0
	}
	for i := 0; i < avx512WarmupIterations; i++ {
		_ = e.dot(dummy, dummy)
	}
}

// Tier reports the ISA tier this engine resolved to.
func (e *Engine) Tier() Tier { return e.tier }

// Dimension reports the configured vector dimension.
func (e *Engine) Dimension() int { return e.dimension }

// WithGPU attaches an optional GPU distance provider. Distance will
// prefer it per the dispatch contract in SPEC_FULL.md §12 (Cosine is
// always attempted; Euclidean/DotProduct require the provider to
// advertise a shader or the call returns VELES-025; Hamming/Jaccard
// always fall back to the CPU kernels with a logged warning).
func (e *Engine) WithGPU(p GPUProvider) *Engine {
	e.gpu = p
	return e
}

// Distance computes the configured metric's distance between a and b.
// This is the hot-loop entry point: exactly one branch on e.metric
// (constant for the engine's lifetime, so branch-predicted) followed by
// one indirect call through the resolved function pointer.
func (e *Engine) Distance(a, b []float32) (float32, error) {
	if len(a) != e.dimension || len(b) != e.dimension {
		return 0, fmt.Errorf("distance: dimension mismatch: engine=%d a=%d b=%d", e.dimension, len(a), len(b))
	}
	if e.gpu != nil {
		if d, ok, err := e.tryGPU(a, b); ok {
			return d, err
		}
	}
	switch e.metric {
	case config.MetricCosine:
		return e.cosine(a, b), nil
	case config.MetricEuclidean:
		return e.l2Squared(a, b), nil
	case config.MetricDotProduct:
		return -e.dot(a, b), nil // lower-is-closer convention like the other distance metrics
	case config.MetricHamming:
		return e.hamming(a, b), nil
	case config.MetricJaccard:
		return e.jaccard(a, b), nil
	default:
		return 0, fmt.Errorf("distance: unknown metric %v", e.metric)
	}
}

// tryGPU attempts the GPU path for the engine's metric. The bool return
// reports whether the GPU path was taken at all (false means fall
// through to the CPU kernels, after the warning logged for the
// Hamming/Jaccard fallback); the error is only meaningful when the bool
// is true.
func (e *Engine) tryGPU(a, b []float32) (float32, bool, error) {
	switch e.metric {
	case config.MetricHamming, config.MetricJaccard:
		// No production or experimental shader exists for these metrics;
		// always fall back to CPU with a logged warning, never silently
		// reuse the Cosine shader (spec.md §9 "GPU parity").
		obslog.Warnf("distance: metric %s has no GPU shader, using CPU kernel", e.metric)
		return 0, false, nil
	case config.MetricCosine:
		d, err := e.gpu.Distance(e.metric, a, b)
		if err != nil {
			return 0, true, verrors.Wrap(verrors.GpuError, "GPU cosine distance failed", err)
		}
		return d, true, nil
	default:
		if !e.gpu.HasShader(e.metric) {
			return 0, true, verrors.New(verrors.GpuError, fmt.Sprintf("no GPU shader for metric %s", e.metric))
		}
		d, err := e.gpu.Distance(e.metric, a, b)
		if err != nil {
			return 0, true, verrors.Wrap(verrors.GpuError, "GPU distance failed", err)
		}
		return d, true, nil
	}
}

// BatchDistance computes the distance from query to every candidate,
// issuing a one-ahead prefetch hint as each candidate is processed
// (spec.md §4.A/§4.B: "prefetch one ahead", "batch helper ... loops over
// cached pointers"). Go has no portable prefetch intrinsic; touching the
// next candidate's first element is the idiomatic stand-in used
// elsewhere in the pack (other_examples mizu_vector.PrefetchVector).
func (e *Engine) BatchDistance(query []float32, candidates [][]float32) ([]float32, error) {
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		if i+1 < len(candidates) {
			prefetch(candidates[i+1])
		}
		d, err := e.Distance(query, c)
		if err != nil {
			return nil, err
		}
		scores[i] = d
	}
	return scores, nil
}

// prefetch is a software prefetch hint: touching the first element pulls
// the candidate's backing cache line into L1 ahead of use.
func prefetch(v []float32) {
	if len(v) > 0 {
		_ = v[0]
	}
}
