package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed rulespec.schema.json
var ruleSpecSchema string

const schemaURL = "gyeokguk://rulespec.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(ruleSpecSchema))
	if err != nil {
		return nil, fmt.Errorf("parse embedded schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(schemaURL)
})

type ruleSpec struct {
	Name  string `json:"name"`
	Rules []Rule `json:"rules"`
}

// Compile validates a JSON rule spec against the embedded schema and builds
// the compiled RuleSet. Invalid specs return nil with the validation error.
// Compilation runs once per configuration at policy-build time, never
// per subject.
func Compile(spec []byte) (*RuleSet, error) {
	sch, err := compileSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(spec))
	if err != nil {
		return nil, fmt.Errorf("parse rule spec: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("rule spec rejected: %w", err)
	}

	var rs ruleSpec
	if err := json.Unmarshal(spec, &rs); err != nil {
		return nil, fmt.Errorf("decode rule spec: %w", err)
	}
	return NewRuleSet(rs.Name, rs.Rules)
}
