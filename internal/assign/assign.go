// Package assign implements the table-assignment algorithm:
// single-table Best-Fit, falling back to a bounded k-table combination
// search. It is pure over an already-fetched table list and overlap
// predicate; it performs no I/O itself so it can run purely in-memory
// against a pre-loaded reservation list (used by the availability
// service) or against a live overlap query (used by the write path).
package assign

import (
	"sort"

	"github.com/tablekeep/reservation-engine/internal/model"
)

// KMax bounds the combination search: C(n, KMax) stays tractable for
// realistic sector sizes (<= ~30 tables).
const KMax = 5

// OverlapFunc reports whether any active reservation on the given set of
// table ids overlaps the interval under consideration. The caller closes
// over the interval and any exclusion.
type OverlapFunc func(tableIDs []string) bool

// Assign runs Best-Fit over eligible single tables, then falls back to
// the bounded combination search. It returns the table ids to use, or
// ok=false if nothing fits.
func Assign(tables []model.Table, partySize int, overlaps OverlapFunc) ([]string, bool) {
	if ids, ok := bestFitSingle(tables, partySize, overlaps); ok {
		return ids, true
	}
	return combinationSearch(tables, partySize, overlaps)
}

// bestFitSingle implements Step 1: eligible tables sorted ascending by
// waste (maxSize - partySize), ties broken by id, first with no overlap
// wins.
func bestFitSingle(tables []model.Table, partySize int, overlaps OverlapFunc) ([]string, bool) {
	var eligible []model.Table
	for _, t := range tables {
		if t.Eligible(partySize) {
			eligible = append(eligible, t)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		wi, wj := eligible[i].MaxSize-partySize, eligible[j].MaxSize-partySize
		if wi != wj {
			return wi < wj
		}
		return eligible[i].ID < eligible[j].ID
	})
	for _, t := range eligible {
		if !overlaps([]string{t.ID}) {
			return []string{t.ID}, true
		}
	}
	return nil, false
}

// combinationSearch implements Step 2: candidates are every table with
// minSize <= partySize, sorted descending by maxSize then by id. For
// k = 2..KMax, subsets are enumerated in lexicographic order; the first
// subset whose capacity band contains partySize and has no overlap wins.
func combinationSearch(tables []model.Table, partySize int, overlaps OverlapFunc) ([]string, bool) {
	var candidates []model.Table
	for _, t := range tables {
		if t.MinSize <= partySize {
			candidates = append(candidates, t)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MaxSize != candidates[j].MaxSize {
			return candidates[i].MaxSize > candidates[j].MaxSize
		}
		return candidates[i].ID < candidates[j].ID
	})

	n := len(candidates)
	maxK := KMax
	if n < maxK {
		maxK = n
	}
	for k := 2; k <= maxK; k++ {
		if ids, ok := combinationsOfSize(candidates, k, partySize, overlaps); ok {
			return ids, true
		}
	}
	return nil, false
}

func combinationsOfSize(candidates []model.Table, k, partySize int, overlaps OverlapFunc) ([]string, bool) {
	n := len(candidates)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		sumMin, sumMax := 0, 0
		ids := make([]string, k)
		for i, ci := range idx {
			sumMin += candidates[ci].MinSize
			sumMax += candidates[ci].MaxSize
			ids[i] = candidates[ci].ID
		}
		if sumMin <= partySize && partySize <= sumMax {
			sort.Strings(ids)
			if !overlaps(ids) {
				return ids, true
			}
		}

		// advance to next lexicographic k-combination of indices
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return nil, false
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
