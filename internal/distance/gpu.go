package distance

import "github.com/velesdb/veles/internal/config"

// GPUProvider is a pluggable distance backend, generalized from the
// teacher's embedding.Provider interface (ihavespoons-zrok,
// internal/embedding/provider.go) which selected among pluggable
// embedding backends by config. Here the same shape selects among
// pluggable distance backends: the GPU is an external collaborator
// (spec.md §1), the engine only needs an interface narrow enough to
// dispatch to it correctly.
//
// Per spec.md §9 "GPU parity": only Cosine is expected to have a
// production-grade shader. A provider must answer HasShader honestly for
// every other metric; the engine never silently substitutes the Cosine
// shader for a metric the provider does not support.
type GPUProvider interface {
	// Name identifies the provider implementation.
	Name() string
	// HasShader reports whether the provider has a real shader for the
	// given metric. The engine never calls Distance for a metric this
	// returns false for (except Cosine, which is assumed production
	// grade and always attempted).
	HasShader(metric config.Metric) bool
	// Distance computes the distance for the given metric on the GPU.
	Distance(metric config.Metric, a, b []float32) (float32, error)
	// Close releases provider resources (device handles, contexts).
	Close() error
}
