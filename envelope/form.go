// Package envelope implements the wire format exchanged between an agent and
// the operator surface: form requests going out and resolutions coming back.
package envelope

import (
	"strings"

	"github.com/bytedance/sonic"
)

const (
	TypeForm     = "dgui_form"
	TypeResponse = "dgui_response"
	TypeError    = "dgui_error"
)

const (
	InvalidFormMessage = "Invalid DGUI form structure."
	CancelledMessage   = "Form request cancelled."
	TimeoutMessage     = "Form request timed out."
)

// FormEnvelope is a blocking form request. Schema and UISchema travel as JSON
// strings on the wire but structured values are accepted as well.
type FormEnvelope struct {
	Type        string     `json:"type"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Schema      RawPayload `json:"schema"`
	UISchema    RawPayload `json:"uiSchema"`
}

// ParsedForm is a form request whose embedded documents have been parsed.
type ParsedForm struct {
	Title       string
	Description string
	Schema      map[string]any
	UISchema    map[string]any
}

func NewFormEnvelope(title, description, schema, uiSchema string) *FormEnvelope {
	env := &FormEnvelope{
		Type:        TypeForm,
		Title:       title,
		Description: description,
		Schema:      Text(schema),
	}
	if strings.TrimSpace(uiSchema) != "" {
		env.UISchema = Text(uiSchema)
	}
	return env
}

// DecodeFormEnvelope accepts a JSON string or an already structured value and
// returns a *DecodeError carrying raw when it is not a well-formed form request.
func DecodeFormEnvelope(raw any) (*FormEnvelope, error) {
	obj, err := FromValue(raw).Object()
	if err != nil {
		return nil, &DecodeError{Reason: "payload is not a JSON object", Payload: raw, Err: err}
	}
	if t, _ := obj["type"].(string); t != TypeForm {
		return nil, &DecodeError{Reason: "unexpected envelope type " + quoteOrMissing(obj["type"]), Payload: raw}
	}
	env := &FormEnvelope{
		Type:     TypeForm,
		Schema:   FromValue(obj["schema"]),
		UISchema: FromValue(obj["uiSchema"]),
	}
	env.Title, _ = obj["title"].(string)
	env.Description, _ = obj["description"].(string)
	if env.Schema.IsEmpty() {
		return nil, &DecodeError{Reason: "schema is missing", Payload: raw}
	}
	return env, nil
}

// Parse performs the second parse step on the embedded schema documents. A
// missing uiSchema yields an empty object.
func (e *FormEnvelope) Parse() (*ParsedForm, error) {
	schema, err := e.Schema.Object()
	if err != nil {
		return nil, &ParseError{Field: "schema", Err: err}
	}
	uiSchema := map[string]any{}
	if !e.UISchema.IsEmpty() {
		uiSchema, err = e.UISchema.Object()
		if err != nil {
			return nil, &ParseError{Field: "uiSchema", Err: err}
		}
	}
	return &ParsedForm{
		Title:       e.Title,
		Description: e.Description,
		Schema:      schema,
		UISchema:    uiSchema,
	}, nil
}

func (e *FormEnvelope) Encode() (string, error) {
	return sonic.MarshalString(e)
}

// Pretty renders v as JSON with sorted keys and 2-space indentation.
func Pretty(v any) (string, error) {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func quoteOrMissing(v any) string {
	if v == nil {
		return "(missing)"
	}
	s, err := sonic.MarshalString(v)
	if err != nil {
		return "(invalid)"
	}
	return s
}
