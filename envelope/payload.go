package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// PayloadKind tags which side of the untyped transport a RawPayload came from.
type PayloadKind int

const (
	PayloadEmpty PayloadKind = iota
	PayloadText
	PayloadStructured
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadText:
		return "text"
	case PayloadStructured:
		return "structured"
	default:
		return "empty"
	}
}

// RawPayload is a value received over a transport that may deliver either a
// JSON-encoded string or an already decoded value.
type RawPayload struct {
	kind  PayloadKind
	text  string
	value any
}

// Text wraps JSON text that still needs a parse step.
func Text(s string) RawPayload {
	return RawPayload{kind: PayloadText, text: s}
}

// Structured wraps an already decoded value.
func Structured(v any) RawPayload {
	if v == nil {
		return RawPayload{}
	}
	return RawPayload{kind: PayloadStructured, value: v}
}

// FromValue is the single normalization step for values of unknown shape.
func FromValue(v any) RawPayload {
	switch val := v.(type) {
	case nil:
		return RawPayload{}
	case RawPayload:
		return val
	case *RawPayload:
		if val == nil {
			return RawPayload{}
		}
		return *val
	case string:
		return Text(val)
	case []byte:
		return Text(string(val))
	case json.RawMessage:
		return Text(string(val))
	default:
		return Structured(val)
	}
}

func (p RawPayload) Kind() PayloadKind { return p.kind }

func (p RawPayload) IsEmpty() bool {
	return p.kind == PayloadEmpty || (p.kind == PayloadText && p.text == "")
}

// Value returns the payload exactly as it was received.
func (p RawPayload) Value() any {
	switch p.kind {
	case PayloadText:
		return p.text
	case PayloadStructured:
		return p.value
	default:
		return nil
	}
}

// Decode parses the payload into a generic JSON value.
func (p RawPayload) Decode() (any, error) {
	switch p.kind {
	case PayloadText:
		var out any
		if err := sonic.UnmarshalString(p.text, &out); err != nil {
			return nil, err
		}
		return out, nil
	case PayloadStructured:
		return normalize(p.value)
	default:
		return nil, fmt.Errorf("payload is empty")
	}
}

// Object parses the payload and requires a JSON object.
func (p RawPayload) Object() (map[string]any, error) {
	v, err := p.Decode()
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return nil, fmt.Errorf("expected a JSON object, got %s", jsonKind(v))
	}
	return obj, nil
}

func (p RawPayload) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(p.Value())
}

func (p *RawPayload) UnmarshalJSON(data []byte) error {
	var v any
	if err := sonic.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = FromValue(v)
	return nil
}

// normalize turns Go-native values into the map/slice/float64 shapes a JSON
// decoder produces.
func normalize(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, string, float64, bool, nil:
		return v, nil
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
