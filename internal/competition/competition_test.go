package competition

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gyeokguk/internal/rules"
)

func twoMethodPolicy() Policy {
	return Policy{
		Enabled: true,
		Methods: []Method{
			{Name: "A", Include: []string{"a"}, Signal: "A"},
			{Name: "B", Include: []string{"b"}, Signal: "B"},
		},
		Power:       2,
		MinKeep:     0.2,
		Renormalize: true,
	}
}

func signals(m map[string]float64) func(Method) float64 {
	return func(method Method) float64 { return m[method.Name] }
}

// A(signal=1.0, raw=10) vs B(signal=0.5, raw=10) with power=2, minKeep=0.2:
// weights 1.0/0.25, shares 0.8/0.2, multipliers 1.0/0.4, post-multiply
// totals 10/4, renormalized by 20/14 back to a conserved total of 20.
func TestApplyWorkedExample(t *testing.T) {
	scores := rules.ScoreMap{"a": 10, "b": 10}
	out := Apply(twoMethodPolicy(), scores, signals(map[string]float64{"A": 1.0, "B": 0.5}))

	if !out.Applied {
		t.Fatal("competition should apply")
	}
	if out.Winner != "A" {
		t.Errorf("winner = %q, want A", out.Winner)
	}

	var a, b *MethodOutcome
	for i := range out.Methods {
		switch out.Methods[i].Name {
		case "A":
			a = &out.Methods[i]
		case "B":
			b = &out.Methods[i]
		}
	}
	if a == nil || b == nil {
		t.Fatalf("missing method outcomes: %+v", out.Methods)
	}

	approx := func(got, want, eps float64, label string) {
		t.Helper()
		if math.Abs(got-want) > eps {
			t.Errorf("%s = %f, want %f", label, got, want)
		}
	}
	approx(a.Share, 0.8, 1e-9, "share A")
	approx(b.Share, 0.2, 1e-9, "share B")
	approx(a.Share+b.Share, 1, 1e-9, "share sum")
	approx(a.Multiplier, 1.0, 1e-9, "multiplier A")
	approx(b.Multiplier, 0.4, 1e-9, "multiplier B")

	approx(scores["a"], 10*20.0/14.0, 1e-6, "final a")
	approx(scores["b"], 4*20.0/14.0, 1e-6, "final b")
	approx(math.Abs(scores["a"])+math.Abs(scores["b"]), out.TotalBefore, 1e-6, "conserved total")
	approx(out.TotalAfter, 20, 1e-6, "total after")
}

func TestApplyNoRenormalize(t *testing.T) {
	p := twoMethodPolicy()
	p.Renormalize = false
	scores := rules.ScoreMap{"a": 10, "b": 10}
	out := Apply(p, scores, signals(map[string]float64{"A": 1.0, "B": 0.5}))

	if math.Abs(scores["a"]-10) > 1e-9 || math.Abs(scores["b"]-4) > 1e-9 {
		t.Errorf("scores = %v, want a=10 b=4", scores)
	}
	if math.Abs(out.TotalAfter-14) > 1e-9 || out.Rescale != 1 {
		t.Errorf("after=%f rescale=%f, want 14 and 1", out.TotalAfter, out.Rescale)
	}
}

func TestApplyNoOps(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		scores rules.ScoreMap
	}{
		{"disabled", Policy{Methods: twoMethodPolicy().Methods}, rules.ScoreMap{"a": 1, "b": 1}},
		{"single method", Policy{
			Enabled: true,
			Methods: []Method{{Name: "A", Include: []string{"a"}}},
		}, rules.ScoreMap{"a": 1}},
		{"one method qualifies", twoMethodPolicy(), rules.ScoreMap{"a": 1}},
		{"zero totals", twoMethodPolicy(), rules.ScoreMap{"a": 0, "b": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.scores.Clone()
			out := Apply(tt.policy, tt.scores, signals(map[string]float64{"A": 1, "B": 1}))
			if out.Applied {
				t.Fatal("expected no-op")
			}
			if diff := cmp.Diff(before, tt.scores); diff != "" {
				t.Errorf("no-op mutated scores:\n%s", diff)
			}
		})
	}
}

func TestApplyAllZeroSignalsUniformFallback(t *testing.T) {
	scores := rules.ScoreMap{"a": 8, "b": 4}
	out := Apply(twoMethodPolicy(), scores, signals(map[string]float64{}))

	if !out.Applied {
		t.Fatal("competition should apply")
	}
	for _, m := range out.Methods {
		if math.Abs(m.Share-0.5) > 1e-9 {
			t.Errorf("share %s = %f, want uniform 0.5", m.Name, m.Share)
		}
		if math.Abs(m.Multiplier-1) > 1e-9 {
			t.Errorf("multiplier %s = %f, want 1 (equal shares)", m.Name, m.Multiplier)
		}
	}
}

// signal^power underflows to exactly 0 for every method when the power is
// large and the signals are small; the pass must fall back to uniform
// shares instead of dividing by a zero weight sum.
func TestApplyWeightUnderflowFallsBackToUniform(t *testing.T) {
	p := twoMethodPolicy()
	p.Power = 400
	scores := rules.ScoreMap{"a": 10, "b": 10}
	out := Apply(p, scores, signals(map[string]float64{"A": 0.1, "B": 0.1}))

	if !out.Applied {
		t.Fatal("competition should apply")
	}
	for _, k := range []string{"a", "b"} {
		if math.IsNaN(scores[k]) || math.IsInf(scores[k], 0) {
			t.Fatalf("score %s = %f, want finite", k, scores[k])
		}
	}
	for _, m := range out.Methods {
		if math.Abs(m.Share-0.5) > 1e-9 {
			t.Errorf("share %s = %f, want uniform 0.5", m.Name, m.Share)
		}
		if math.Abs(m.Multiplier-1) > 1e-9 {
			t.Errorf("multiplier %s = %f, want 1 (equal shares)", m.Name, m.Multiplier)
		}
	}
	if math.Abs(scores["a"]-10) > 1e-9 || math.Abs(scores["b"]-10) > 1e-9 {
		t.Errorf("scores = %v, want unchanged under uniform shares", scores)
	}
}

func TestApplySanitizesSignals(t *testing.T) {
	tests := []struct {
		name   string
		signal float64
	}{
		{"negative", -0.5},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := rules.ScoreMap{"a": 10, "b": 10}
			out := Apply(twoMethodPolicy(), scores, signals(map[string]float64{"A": tt.signal, "B": 1}))
			if !out.Applied {
				t.Fatal("competition should apply")
			}
			for _, m := range out.Methods {
				if m.Name == "A" && m.Signal != 0 {
					t.Errorf("signal A = %f, want sanitized 0", m.Signal)
				}
			}
		})
	}

	t.Run("nil selector", func(t *testing.T) {
		scores := rules.ScoreMap{"a": 10, "b": 10}
		out := Apply(twoMethodPolicy(), scores, nil)
		if !out.Applied {
			t.Fatal("nil selector should fall back to uniform, not no-op")
		}
	})
}

func TestApplyMinKeepFloor(t *testing.T) {
	p := twoMethodPolicy()
	p.Power = 8 // drive the losing share toward zero
	scores := rules.ScoreMap{"a": 10, "b": 10}
	out := Apply(p, scores, signals(map[string]float64{"A": 1.0, "B": 0.1}))

	for _, m := range out.Methods {
		if m.Multiplier < p.MinKeep-1e-9 {
			t.Errorf("multiplier %s = %f below minKeep %f", m.Name, m.Multiplier, p.MinKeep)
		}
	}
}

func TestApplyLeavesForeignKeysUntouched(t *testing.T) {
	scores := rules.ScoreMap{"a": 10, "b": 10, "other": 3}
	Apply(twoMethodPolicy(), scores, signals(map[string]float64{"A": 1, "B": 0.5}))
	if scores["other"] != 3 {
		t.Errorf("foreign key changed: %f", scores["other"])
	}
}

func TestApplyPrefixSelection(t *testing.T) {
	p := Policy{
		Enabled: true,
		Methods: []Method{
			{Name: "samhap", IncludePrefixes: []string{"pattern.samhap."}, Exclude: []string{"pattern.samhap.ignored"}},
			{Name: "banghap", IncludePrefixes: []string{"pattern.banghap."}},
		},
		Power:   1,
		MinKeep: 0,
	}
	scores := rules.ScoreMap{
		"pattern.samhap.wood":    2,
		"pattern.samhap.ignored": 5,
		"pattern.banghap.east":   2,
		"pattern.zero":           0,
	}
	out := Apply(p, scores, signals(map[string]float64{"samhap": 1, "banghap": 1}))

	want := []string{"pattern.samhap.wood"}
	for _, m := range out.Methods {
		if m.Name == "samhap" {
			if diff := cmp.Diff(want, m.Keys); diff != "" {
				t.Errorf("samhap keys (-want +got):\n%s", diff)
			}
		}
	}
	if scores["pattern.samhap.ignored"] != 5 {
		t.Error("excluded key was rescaled")
	}
}

func TestApplyChangesAreReportedSorted(t *testing.T) {
	scores := rules.ScoreMap{"b": 10, "a": 10}
	p := twoMethodPolicy()
	out := Apply(p, scores, signals(map[string]float64{"A": 1, "B": 0.5}))

	if len(out.Changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(out.Changes))
	}
	if out.Changes[0].Key != "a" || out.Changes[1].Key != "b" {
		t.Errorf("changes not sorted: %+v", out.Changes)
	}
	for _, ch := range out.Changes {
		if ch.Old != 10 {
			t.Errorf("old value for %s = %f, want 10", ch.Key, ch.Old)
		}
		if math.Abs(ch.New-scores[ch.Key]) > 1e-12 {
			t.Errorf("new value for %s = %f, scores has %f", ch.Key, ch.New, scores[ch.Key])
		}
	}
}
