// Package live carries schema pushes from the agent to the operator surface.
// Pushes never block the agent and have no return path: a push that cannot be
// used is logged and dropped, leaving the current schema in place.
package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tbxark/dgui/envelope"
	"github.com/tbxark/dgui/session"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
)

const (
	PendingTitle    = "Generating Form..."
	PendingBody     = "The agent is generating the form based on your request."
	FallbackTitle   = "Generated Form"
	CompleteBody    = "Your form is generated on the left pane!"
	discardedReason = "schema push discarded"
)

// SchemaPushRequest is one generateJsonSchema invocation.
type SchemaPushRequest struct {
	ID         string
	JSONSchema envelope.RawPayload
	Status     Status
	Applied    bool
	CreatedAt  time.Time
}

// Card is what the surrounding UI shows for a push.
type Card struct {
	Status Status
	Title  string
	Body   string
}

// Card follows the request lifecycle: a generating indicator while pending,
// then the schema's declared title.
func (r *SchemaPushRequest) Card() Card {
	if r.Status != StatusComplete {
		return Card{Status: r.Status, Title: PendingTitle, Body: PendingBody}
	}
	title := FallbackTitle
	if obj, err := r.JSONSchema.Object(); err == nil {
		if t, ok := obj["title"].(string); ok && t != "" {
			title = t
		}
	}
	return Card{Status: StatusComplete, Title: title, Body: CompleteBody}
}

// SessionLoader resolves the session a push applies to.
type SessionLoader interface {
	Load(ctx context.Context) (*session.Session, error)
}

type RenderFunc func(ctx context.Context, req *SchemaPushRequest, card Card)

type Channel struct {
	sessions SessionLoader
	logger   *slog.Logger
	render   RenderFunc

	mu     sync.Mutex
	latest *SchemaPushRequest
}

type Option func(*Channel)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRenderer is called once when a push starts and once when it completes.
func WithRenderer(fn RenderFunc) Option {
	return func(c *Channel) {
		c.render = fn
	}
}

func NewChannel(sessions SessionLoader, opts ...Option) *Channel {
	c := &Channel{
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Begin registers a pending push. It becomes the latest render target.
func (c *Channel) Begin(ctx context.Context, raw any) *SchemaPushRequest {
	req := &SchemaPushRequest{
		ID:         uuid.NewString(),
		JSONSchema: envelope.FromValue(raw),
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
	c.mu.Lock()
	c.latest = req
	c.mu.Unlock()
	c.emit(ctx, req)
	return req
}

// Push runs a full push: begin, apply, complete.
func (c *Channel) Push(ctx context.Context, raw any) *SchemaPushRequest {
	req := c.Begin(ctx, raw)
	applied := c.OnSchemaPush(ctx, req)
	c.mu.Lock()
	req.Applied = applied
	req.Status = StatusComplete
	c.mu.Unlock()
	c.emit(ctx, req)
	return req
}

// OnSchemaPush replaces the session schema with the pushed one. Form data is
// kept as is. A request that has been superseded by a newer push is not
// applied. It reports whether the session changed.
func (c *Channel) OnSchemaPush(ctx context.Context, req *SchemaPushRequest) bool {
	if req == nil {
		return false
	}
	log := c.logger.With("push_id", req.ID, "kind", req.JSONSchema.Kind().String())

	switch req.JSONSchema.Kind() {
	case envelope.PayloadText, envelope.PayloadStructured:
	default:
		log.Warn(discardedReason, "reason", "schema is missing")
		return false
	}
	schema, err := req.JSONSchema.Object()
	if err != nil {
		log.Warn(discardedReason, "error", err)
		return false
	}
	sess, err := c.sessions.Load(ctx)
	if err != nil {
		log.Warn(discardedReason, "error", err)
		return false
	}

	c.mu.Lock()
	if c.latest != req {
		c.mu.Unlock()
		log.Debug("schema push superseded")
		return false
	}
	err = sess.SetSchema(schema)
	c.mu.Unlock()
	if err != nil {
		log.Warn(discardedReason, "error", err)
		return false
	}
	log.Debug("schema pushed", "title", schema["title"])
	return true
}

// Latest returns a copy of the most recent push, which supersedes all
// earlier ones.
func (c *Channel) Latest() (*SchemaPushRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return nil, false
	}
	req := *c.latest
	return &req, true
}

func (c *Channel) emit(ctx context.Context, req *SchemaPushRequest) {
	if c.render == nil {
		return
	}
	c.mu.Lock()
	superseded := c.latest != req
	card := req.Card()
	c.mu.Unlock()
	if superseded {
		return
	}
	c.render(ctx, req, card)
}
