package envelope

import "fmt"

// DecodeError reports a malformed form request. Payload holds the raw value
// exactly as it was received so it can be echoed back for diagnostics.
type DecodeError struct {
	Reason  string
	Payload any
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode form envelope: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode form envelope: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Message is the text reported to the agent in a dgui_error resolution.
func (e *DecodeError) Message() string { return InvalidFormMessage }

// ParseError reports a JSON document that failed to parse into an object.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse JSON: %v", e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
