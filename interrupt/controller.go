// Package interrupt resolves blocking form requests: it decodes the agent's
// payload, renders it through a form widget and answers the suspension with
// exactly one resolution.
package interrupt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tbxark/dgui/envelope"
	"github.com/tbxark/dgui/suspend"
	"github.com/tbxark/dgui/validate"
)

type Controller struct {
	widget       Widget
	logger       *slog.Logger
	onTransition TransitionFunc
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTransitionHook(fn TransitionFunc) Option {
	return func(c *Controller) {
		c.onTransition = fn
	}
}

func NewController(widget Widget, opts ...Option) *Controller {
	c := &Controller{
		widget: widget,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Serve handles interrupts one at a time until ctx ends or the channel closes.
func (c *Controller) Serve(ctx context.Context, interrupts <-chan *suspend.Interrupt) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-interrupts:
			if !ok {
				return nil
			}
			res, err := c.Handle(ctx, in)
			if err != nil {
				c.logger.Warn("Form request not resolved by controller", "interrupt_id", in.ID, "error", err)
				continue
			}
			c.logger.Debug("Form request resolved", "interrupt_id", in.ID, "type", res.Type)
		}
	}
}

// Handle runs one suspension from decode to resolution. Every call is a fresh
// instance; nothing carries over between suspensions.
func (c *Controller) Handle(ctx context.Context, s Suspension) (envelope.Resolution, error) {
	inst := &instance{
		id:   interruptID(s),
		c:    c,
		s:    s,
		done: make(chan struct{}),
	}
	inst.transition(StateAwaitingDecode)

	select {
	case <-s.Done():
		return envelope.Resolution{}, ErrAlreadyResolved
	default:
	}

	raw := s.Payload()
	form, err := decode(raw)
	if err != nil {
		c.logger.Warn("Failed to decode form request", "interrupt_id", inst.id, "error", err)
		return inst.finish(envelope.Error(envelope.InvalidFormMessage, raw))
	}
	form.ID = inst.id
	inst.transition(StateRendering)

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	renderErr := make(chan error, 1)
	go func() {
		renderErr <- c.widget.Render(renderCtx, form, Handlers{
			OnChange: inst.change,
			OnSubmit: inst.submit,
		})
	}()

	for {
		select {
		case <-inst.done:
			return inst.outcome()
		case <-s.Done():
			if inst.isResolved() {
				return inst.outcome()
			}
			return envelope.Resolution{}, ErrAlreadyResolved
		case err := <-renderErr:
			renderErr = nil
			if err == nil {
				continue
			}
			c.logger.Warn("Form widget stopped", "interrupt_id", inst.id, "error", err)
			inst.resolve(renderFailure(err))
		case <-ctx.Done():
			inst.resolve(envelope.Error(envelope.CancelledMessage, nil))
		}
	}
}

func decode(raw any) (*Form, error) {
	env, err := envelope.DecodeFormEnvelope(raw)
	if err != nil {
		return nil, err
	}
	parsed, err := env.Parse()
	if err != nil {
		return nil, err
	}
	validator, err := validate.Compile(parsed.Schema)
	if err != nil {
		return nil, &envelope.ParseError{Field: "schema", Err: err}
	}
	return &Form{
		Title:       parsed.Title,
		Description: parsed.Description,
		Schema:      parsed.Schema,
		UISchema:    parsed.UISchema,
		Validator:   validator,
	}, nil
}

func renderFailure(err error) envelope.Resolution {
	return envelope.Error(envelope.CancelledMessage, map[string]any{"reason": err.Error()})
}

func interruptID(s Suspension) string {
	if in, ok := s.(*suspend.Interrupt); ok {
		return in.ID
	}
	return uuid.NewString()
}

type instance struct {
	id string
	c  *Controller
	s  Suspension

	mu       sync.Mutex
	state    State
	resolved bool
	accepted bool
	result   envelope.Resolution
	done     chan struct{}
}

func (in *instance) transition(to State) {
	in.mu.Lock()
	from := in.state
	in.state = to
	in.mu.Unlock()
	if in.c.onTransition != nil {
		in.c.onTransition(in.id, from, to)
	}
}

// change only observes working data; nothing resolves until submit.
func (in *instance) change(data map[string]any) {
	in.c.logger.Debug("Form data changed", "interrupt_id", in.id, "fields", len(data))
}

func (in *instance) submit(data map[string]any) {
	if !in.resolve(envelope.Response(data)) {
		in.c.logger.Debug("Ignored repeated submit", "interrupt_id", in.id)
	}
}

// resolve is single-shot: the first caller encodes and hands the resolution to
// the suspension, every later caller is a no-op.
func (in *instance) resolve(r envelope.Resolution) bool {
	in.mu.Lock()
	if in.resolved {
		in.mu.Unlock()
		return false
	}
	in.resolved = true
	in.result = r
	in.mu.Unlock()

	accepted := in.s.Resolve(envelope.EncodeResolution(r))

	in.mu.Lock()
	in.accepted = accepted
	in.mu.Unlock()
	in.transition(StateResolved)
	close(in.done)
	return true
}

func (in *instance) finish(r envelope.Resolution) (envelope.Resolution, error) {
	in.resolve(r)
	return in.outcome()
}

func (in *instance) isResolved() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.resolved
}

func (in *instance) outcome() (envelope.Resolution, error) {
	<-in.done
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.accepted {
		return in.result, fmt.Errorf("%w: %s", ErrAlreadyResolved, in.id)
	}
	return in.result, nil
}
