// Package competition resolves several simultaneously-matching candidate
// groups into winner-weighted dominance without discarding score mass.
// Per-group strength signals become shares, shares become score
// multipliers, and an optional renormalisation step conserves the total
// magnitude over the affected keys exactly.
package competition

import (
	"math"
	"sort"
	"strings"

	"gyeokguk/internal/facts"
	"gyeokguk/internal/logging"
	"gyeokguk/internal/rules"
)

// Shares smaller than this are treated as zero when renormalising.
const negligible = 1e-9

// SignalSelector reads one method's strength signal off a chart. Selectors
// must be total: absent data reads as a neutral value, never an error.
type SignalSelector func(c *facts.Chart) float64

// Method is one competing candidate group: the score keys it owns and the
// name of the signal selector that measures its strength.
type Method struct {
	Name            string
	Include         []string
	IncludePrefixes []string
	Exclude         []string
	ExcludePrefixes []string
	Signal          string
}

// Policy configures one competition pass.
type Policy struct {
	Enabled     bool
	Methods     []Method
	Power       float64
	MinKeep     float64
	Renormalize bool
}

// MethodOutcome reports one participating method.
type MethodOutcome struct {
	Name        string   `json:"name"`
	Signal      float64  `json:"signal"`
	Share       float64  `json:"share"`
	Multiplier  float64  `json:"multiplier"`
	Keys        []string `json:"keys"`
	TotalBefore float64  `json:"total_before"`
	TotalAfter  float64  `json:"total_after"`
}

// KeyChange records one rescaled score key for the trace.
type KeyChange struct {
	Key string  `json:"key"`
	Old float64 `json:"old"`
	New float64 `json:"new"`
}

// Outcome is the full competition trace. Applied is false when the pass
// no-opped (disabled policy or fewer than two qualifying methods).
type Outcome struct {
	Applied     bool            `json:"applied"`
	Methods     []MethodOutcome `json:"methods,omitempty"`
	Winner      string          `json:"winner,omitempty"`
	TotalBefore float64         `json:"total_before"`
	TotalAfter  float64         `json:"total_after"`
	Rescale     float64         `json:"rescale"`
	Changes     []KeyChange     `json:"changes,omitempty"`
}

// Apply runs the competition pass over scores, mutating them in place, and
// returns the trace. signalFor supplies each method's strength; a nil
// function or a non-finite/negative value resolves to 0. Keys owned by no
// participating method are left untouched.
func Apply(p Policy, scores rules.ScoreMap, signalFor func(Method) float64) *Outcome {
	out := &Outcome{Rescale: 1}
	if !p.Enabled || len(p.Methods) < 2 {
		return out
	}

	type active struct {
		method Method
		keys   []string
		total  float64
		signal float64
	}

	claimed := make(map[string]bool)
	var participants []active
	for _, m := range p.Methods {
		keys := memberKeys(m, scores, claimed)
		total := 0.0
		for _, k := range keys {
			total += math.Abs(scores[k])
		}
		if len(keys) == 0 || total == 0 {
			continue
		}
		for _, k := range keys {
			claimed[k] = true
		}
		participants = append(participants, active{method: m, keys: keys, total: total})
	}
	if len(participants) < 2 {
		return out
	}

	power := p.Power
	if power < 0.01 {
		power = 0.01
	}
	minKeep := clampUnit(p.MinKeep)

	allZero := true
	for i := range participants {
		participants[i].signal = sanitizeSignal(signalFor, participants[i].method)
		if participants[i].signal > 0 {
			allZero = false
		}
	}

	weights := make([]float64, len(participants))
	weightSum := 0.0
	for i, a := range participants {
		if allZero {
			weights[i] = 1
		} else {
			weights[i] = math.Pow(a.signal, power)
		}
		weightSum += weights[i]
	}
	// signal^power can underflow to 0 for every method at once (small
	// signals, large power); a negligible sum would make every share NaN,
	// so it gets the same uniform treatment as all-zero signals.
	if weightSum <= negligible {
		for i := range weights {
			weights[i] = 1
		}
		weightSum = float64(len(weights))
	}

	shares := make([]float64, len(participants))
	maxShare := 0.0
	winner := 0
	for i, w := range weights {
		shares[i] = w / weightSum
		if shares[i] > maxShare {
			maxShare = shares[i]
			winner = i
		}
	}

	out.Applied = true
	out.Winner = participants[winner].method.Name

	totalBefore := 0.0
	for _, a := range participants {
		totalBefore += a.total
	}
	out.TotalBefore = totalBefore

	for i, a := range participants {
		mult := multiplierFor(shares[i], maxShare, minKeep)
		after := 0.0
		for _, k := range a.keys {
			old := scores[k]
			scores[k] = old * mult
			after += math.Abs(scores[k])
			out.Changes = append(out.Changes, KeyChange{Key: k, Old: old})
		}
		out.Methods = append(out.Methods, MethodOutcome{
			Name:        a.method.Name,
			Signal:      a.signal,
			Share:       shares[i],
			Multiplier:  mult,
			Keys:        a.keys,
			TotalBefore: a.total,
			TotalAfter:  after,
		})
	}

	totalAfter := 0.0
	for i := range out.Methods {
		totalAfter += out.Methods[i].TotalAfter
	}

	if p.Renormalize && totalAfter > negligible {
		rescale := totalBefore / totalAfter
		out.Rescale = rescale
		for i := range out.Methods {
			mo := &out.Methods[i]
			mo.TotalAfter = 0
			for _, k := range mo.Keys {
				scores[k] *= rescale
				mo.TotalAfter += math.Abs(scores[k])
			}
		}
		totalAfter = totalBefore
	}
	out.TotalAfter = totalAfter

	for i := range out.Changes {
		out.Changes[i].New = scores[out.Changes[i].Key]
	}
	sort.Slice(out.Changes, func(i, j int) bool { return out.Changes[i].Key < out.Changes[j].Key })

	logging.New("competition").Debug("competition applied",
		"winner", out.Winner, "methods", len(out.Methods),
		"before", out.TotalBefore, "after", out.TotalAfter)
	return out
}

// memberKeys derives a method's key set: inclusion by exact key or prefix,
// minus exclusion by exact key or prefix, filtered to non-zero values and
// to keys not already claimed by an earlier method. Sorted for determinism.
func memberKeys(m Method, scores rules.ScoreMap, claimed map[string]bool) []string {
	var keys []string
	for k, v := range scores {
		if v == 0 || claimed[k] || !included(m, k) || excluded(m, k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func included(m Method, key string) bool {
	for _, k := range m.Include {
		if k == key {
			return true
		}
	}
	for _, p := range m.IncludePrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func excluded(m Method, key string) bool {
	for _, k := range m.Exclude {
		if k == key {
			return true
		}
	}
	for _, p := range m.ExcludePrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// multiplierFor maps a method's share of the signal weight to its score
// multiplier: the leader keeps 1.0, everyone else keeps at least minKeep,
// scaled linearly by share relative to the leader's.
func multiplierFor(share, maxShare, minKeep float64) float64 {
	return minKeep + (1-minKeep)*(share/maxShare)
}

// sanitizeSignal resolves selector failures to 0 and clamps into [0,1].
func sanitizeSignal(signalFor func(Method) float64, m Method) float64 {
	if signalFor == nil {
		return 0
	}
	v := signalFor(m)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
