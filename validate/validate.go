// Package validate adapts a standard JSON Schema validator to the form widget
// contract. Schemas are compiled as draft-07, the dialect form builders emit.
package validate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://dgui.local/form.schema.json"

// Issue is one failed constraint, located by JSON pointer into the data.
type Issue struct {
	JSONPointer string `json:"json_pointer"`
	Message     string `json:"message"`
}

// Validator checks operator data against a form schema.
type Validator interface {
	Validate(data any) []Issue
}

type Schema struct {
	compiled *jsonschema.Schema
}

var _ Validator = (*Schema)(nil)

func Compile(schema map[string]any) (*Schema, error) {
	text, err := sonic.MarshalString(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(schemaURL, strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

func (s *Schema) Validate(data any) []Issue {
	doc, err := normalize(data)
	if err != nil {
		return []Issue{{Message: err.Error()}}
	}
	err = s.compiled.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Issue{{Message: err.Error()}}
	}
	var issues []Issue
	collect(verr, &issues)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].JSONPointer < issues[j].JSONPointer
	})
	return issues
}

// collect flattens the cause tree down to its leaves.
func collect(e *jsonschema.ValidationError, out *[]Issue) {
	if len(e.Causes) == 0 {
		*out = append(*out, Issue{JSONPointer: e.InstanceLocation, Message: e.Message})
		return
	}
	for _, cause := range e.Causes {
		collect(cause, out)
	}
}

// normalize round-trips data through JSON so Go-native numbers and structs
// reach the validator in decoded form.
func normalize(data any) (any, error) {
	raw, err := sonic.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	var out any
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return out, nil
}

// Format renders issues one per line for display.
func Format(issues []Issue) string {
	var sb strings.Builder
	for i, issue := range issues {
		if i > 0 {
			sb.WriteString("\n")
		}
		ptr := issue.JSONPointer
		if ptr == "" {
			ptr = "/"
		}
		sb.WriteString(fmt.Sprintf("- %s: %s", ptr, issue.Message))
	}
	return sb.String()
}
