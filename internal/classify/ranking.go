package classify

import (
	"sort"

	"gyeokguk/internal/rules"
)

// RankedKey is one score key in final order.
type RankedKey struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// Rank orders score keys by score descending. Ties break by position in the
// declared priority list; keys not listed sort after all listed keys and
// keep lexicographic order among themselves, so the ordering is total and
// byte-stable across runs.
func Rank(scores rules.ScoreMap, priority []string) []RankedKey {
	prio := make(map[string]int, len(priority))
	for i, k := range priority {
		prio[k] = i
	}
	unlisted := len(priority)

	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sort.SliceStable(keys, func(i, j int) bool {
		si, sj := scores[keys[i]], scores[keys[j]]
		if si != sj {
			return si > sj
		}
		pi, ok := prio[keys[i]]
		if !ok {
			pi = unlisted
		}
		pj, ok := prio[keys[j]]
		if !ok {
			pj = unlisted
		}
		return pi < pj
	})

	out := make([]RankedKey, len(keys))
	for i, k := range keys {
		out[i] = RankedKey{Key: k, Score: scores[k]}
	}
	return out
}
