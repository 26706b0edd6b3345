package interrupt

import (
	"context"
	"errors"

	"github.com/tbxark/dgui/validate"
)

// ErrAborted is returned by a Widget when the operator walks away from a form.
var ErrAborted = errors.New("form aborted by operator")

// ErrAlreadyResolved means the suspension was answered by someone else, for
// example the broker's timeout, before this controller could resolve it.
var ErrAlreadyResolved = errors.New("suspension already resolved")

type State int

const (
	StateIdle State = iota
	StateAwaitingDecode
	StateRendering
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingDecode:
		return "awaiting_decode"
	case StateRendering:
		return "rendering"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Suspension is the client-side handle of one agent interrupt.
type Suspension interface {
	Payload() any
	Resolve(result string) bool
	Done() <-chan struct{}
}

// Form is what the widget renders.
type Form struct {
	ID          string
	Title       string
	Description string
	Schema      map[string]any
	UISchema    map[string]any
	Validator   validate.Validator
}

type Handlers struct {
	OnChange func(data map[string]any)
	OnSubmit func(data map[string]any)
}

// Widget renders a schema-driven form. Render may block until the operator is
// done or return immediately and fire the handlers later.
type Widget interface {
	Render(ctx context.Context, form *Form, h Handlers) error
}

type WidgetFunc func(ctx context.Context, form *Form, h Handlers) error

func (f WidgetFunc) Render(ctx context.Context, form *Form, h Handlers) error {
	return f(ctx, form, h)
}

type TransitionFunc func(id string, from, to State)
