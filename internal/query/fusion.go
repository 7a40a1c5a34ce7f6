package query

import (
	"fmt"
	"sort"

	"github.com/velesdb/veles/internal/hnsw"
	"github.com/velesdb/veles/internal/verrors"
)

// FusedResult is one row produced by a NEAR_FUSED query: a row id plus
// the combined score assigned by the chosen fusion strategy. Higher
// FusedScore always ranks first, regardless of strategy.
type FusedResult struct {
	ID         uint64
	FusedScore float64
}

// ValidateFusionParams rejects malformed fusion parameters before any
// clause runs (spec.md §4.F: invalid params are VELES-028
// InvalidFusionParam, never a silent default of zero).
func ValidateFusionParams(strategy FusionStrategy, p FusionParams) error {
	switch strategy {
	case FusionRRF:
		if p.K <= 0 {
			return verrors.New(verrors.InvalidFusionParam, "RRF requires k > 0")
		}
	case FusionWeighted:
		if p.WAvg < 0 || p.WMax < 0 || p.WHit < 0 {
			return verrors.New(verrors.InvalidFusionParam, "weighted fusion requires non-negative weights")
		}
		if p.WAvg == 0 && p.WMax == 0 && p.WHit == 0 {
			return verrors.New(verrors.InvalidFusionParam, "weighted fusion requires at least one non-zero weight")
		}
	case FusionAverage, FusionMaximum:
		// no parameters to validate
	default:
		return verrors.New(verrors.UnsupportedFeature, fmt.Sprintf("unsupported fusion strategy %d", strategy))
	}
	return nil
}

// Fuse combines the per-clause ranked result sets of a NEAR_FUSED query
// into one ranked list, per spec.md §4.F "Multi-vector fusion". Each
// entry in perClause is one NearClause's own ranked []hnsw.Result,
// already sorted nearest-first.
func Fuse(perClause [][]hnsw.Result, strategy FusionStrategy, params FusionParams) ([]FusedResult, error) {
	if err := ValidateFusionParams(strategy, params); err != nil {
		return nil, err
	}

	ranks := make([]map[uint64]int, len(perClause))   // id -> 1-based rank within this clause
	hits := make([]map[uint64]float64, len(perClause)) // id -> similarity score within this clause
	seen := make(map[uint64]bool)
	for i, clause := range perClause {
		ranks[i] = make(map[uint64]int, len(clause))
		hits[i] = make(map[uint64]float64, len(clause))
		for rank, r := range clause {
			ranks[i][r.ID] = rank + 1
			hits[i][r.ID] = similarityFromDistance(r.Distance)
			seen[r.ID] = true
		}
	}

	out := make([]FusedResult, 0, len(seen))
	for id := range seen {
		var score float64
		switch strategy {
		case FusionRRF:
			for i := range perClause {
				if rank, ok := ranks[i][id]; ok {
					score += 1.0 / float64(params.K+rank)
				}
			}
		case FusionAverage:
			var sum float64
			var n int
			for i := range perClause {
				if s, ok := hits[i][id]; ok {
					sum += s
					n++
				}
			}
			if n > 0 {
				score = sum / float64(n)
			}
		case FusionMaximum:
			max := 0.0
			for i := range perClause {
				if s, ok := hits[i][id]; ok && s > max {
					max = s
				}
			}
			score = max
		case FusionWeighted:
			var sum float64
			var n int
			max := 0.0
			hitCount := 0
			for i := range perClause {
				if s, ok := hits[i][id]; ok {
					sum += s
					n++
					hitCount++
					if s > max {
						max = s
					}
				}
			}
			avg := 0.0
			if n > 0 {
				avg = sum / float64(n)
			}
			hitRatio := float64(hitCount) / float64(len(perClause))
			score = params.WAvg*avg + params.WMax*max + params.WHit*hitRatio
		}
		out = append(out, FusedResult{ID: id, FusedScore: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore == out[j].FusedScore {
			return out[i].ID < out[j].ID
		}
		return out[i].FusedScore > out[j].FusedScore
	})
	return out, nil
}

// similarityFromDistance maps an HNSW distance (lower is closer) to a
// bounded similarity score (higher is closer) for Average/Maximum/
// Weighted fusion, which combine on a "higher is better" scale.
func similarityFromDistance(d float32) float64 {
	return 1.0 / (1.0 + float64(d))
}
