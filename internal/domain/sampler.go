package domain

import (
	"fmt"
	"math/rand/v2"
)

// Sample selects up to k articles for a district from a window-filtered,
// most-recent-first slice.
//
// With at least k district articles the first k are returned unchanged.
// Otherwise every district article is kept and topped up with province
// articles drawn uniformly at random without replacement, clamped to the
// number available. An empty selection returns ErrInsufficientArticles.
//
// rng fixes the draw for reproducible runs; nil uses the global source.
func Sample(district, province string, articles []Article, k int, rng *rand.Rand) ([]Article, error) {
	var local, regional []Article
	for _, a := range articles {
		switch a.Location {
		case district:
			local = append(local, a)
		case province:
			regional = append(regional, a)
		}
	}

	if k > 0 && len(local) >= k {
		return local[:k:k], nil
	}

	need := min(max(k-len(local), 0), len(regional))
	out := make([]Article, 0, len(local)+need)
	out = append(out, local...)
	for _, i := range drawIndices(len(regional), need, rng) {
		out = append(out, regional[i])
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", district, ErrInsufficientArticles)
	}
	return out, nil
}

// drawIndices returns n distinct indices from [0, size) using a partial
// Fisher-Yates shuffle.
func drawIndices(size, n int, rng *rand.Rand) []int {
	if n <= 0 {
		return nil
	}
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	for i := range n {
		j := i + intN(rng, size-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:n]
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

// NewSampleRand derives a per-district generator from a run seed so results
// do not depend on worker scheduling.
func NewSampleRand(seed uint64, districtIndex int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(districtIndex)))
}
