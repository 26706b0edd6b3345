package envelope

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Resolution answers exactly one form request. Build it with Response or Error.
type Resolution struct {
	Type    string
	Data    any
	Message string
	Payload any
}

type responseWire struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type errorWire struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Payload any    `json:"payload"`
}

func Response(data any) Resolution {
	if data == nil {
		data = map[string]any{}
	}
	return Resolution{Type: TypeResponse, Data: data}
}

func Error(message string, payload any) Resolution {
	return Resolution{Type: TypeError, Message: message, Payload: payload}
}

func (r Resolution) IsError() bool { return r.Type == TypeError }

func (r Resolution) MarshalJSON() ([]byte, error) {
	if r.Type == TypeResponse {
		return sonic.Marshal(responseWire{Type: TypeResponse, Data: r.Data})
	}
	return sonic.Marshal(errorWire{Type: TypeError, Message: r.Message, Payload: r.Payload})
}

// EncodeResolution serializes r to its wire string. Values that cannot be
// encoded degrade to a dgui_error so the agent is always answered.
func EncodeResolution(r Resolution) string {
	s, err := sonic.MarshalString(r)
	if err == nil {
		return s
	}
	s, err = sonic.MarshalString(errorWire{
		Type:    TypeError,
		Message: fmt.Sprintf("failed to encode resolution: %v", err),
	})
	if err != nil {
		return `{"type":"dgui_error","message":"failed to encode resolution","payload":null}`
	}
	return s
}

// DecodeResolution is the agent-side reader for a resolution string.
func DecodeResolution(raw string) (Resolution, error) {
	var obj map[string]any
	if err := sonic.UnmarshalString(raw, &obj); err != nil {
		return Resolution{}, &ParseError{Field: "resolution", Err: err}
	}
	switch t, _ := obj["type"].(string); t {
	case TypeResponse:
		return Response(obj["data"]), nil
	case TypeError:
		msg, _ := obj["message"].(string)
		return Error(msg, obj["payload"]), nil
	default:
		return Resolution{}, fmt.Errorf("unknown resolution type %s", quoteOrMissing(obj["type"]))
	}
}
