package rules

import (
	"testing"
)

const validSpec = `{
  "name": "patterns",
  "rules": [
    {
      "id": "samhap-wood",
      "when": "signal(\"samhap\", \"wood\") > 0",
      "score": {"pattern.samhap.wood": 1.0}
    },
    {
      "id": "chung",
      "when": "signal(\"chung\", \"year-month\") > 0",
      "emit": [
        {
          "name": "CHUNG",
          "category": "clash",
          "targets": ["year-month"],
          "positions": {"year-month": ["year", "month"]},
          "weight": 0.8
        }
      ],
      "assert": {"that": "multiplier > 0.1", "explain": "very low quality"}
    }
  ]
}`

func TestCompileValidSpec(t *testing.T) {
	rs, err := Compile([]byte(validSpec))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if rs.Name != "patterns" || len(rs.Rules) != 2 {
		t.Errorf("rule set = %q with %d rules, want patterns/2", rs.Name, len(rs.Rules))
	}
	if rs.Rules[1].Emit[0].Weight == nil || *rs.Rules[1].Emit[0].Weight != 0.8 {
		t.Errorf("emission weight not decoded: %+v", rs.Rules[1].Emit[0])
	}
}

func TestCompileRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"not json", "pattern_rules: yes"},
		{"missing rules", `{"name": "x"}`},
		{"rule without condition", `{"rules": [{"id": "x"}]}`},
		{"rule without id", `{"rules": [{"when": "true"}]}`},
		{"weight out of range", `{"rules": [{"id": "x", "when": "true", "emit": [{"name": "Y", "weight": 2.0}]}]}`},
		{"unknown rule field", `{"rules": [{"id": "x", "when": "true", "priority": 3}]}`},
		{"score value not numeric", `{"rules": [{"id": "x", "when": "true", "score": {"k": "high"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Compile([]byte(tt.spec))
			if err == nil {
				t.Error("expected validation error")
			}
			if rs != nil {
				t.Error("invalid spec must yield a nil rule set")
			}
		})
	}
}

// Compilation is pure: the same spec compiles to the same shape every time.
func TestCompileDeterministic(t *testing.T) {
	a, err := Compile([]byte(validSpec))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compile([]byte(validSpec))
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Rules) != len(b.Rules) || a.Name != b.Name {
		t.Error("repeated compilation diverged")
	}
}
