package suspend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tbxark/dgui/envelope"
)

// ErrInterruptPending is returned when the agent suspends while an earlier
// interrupt is still unresolved.
var ErrInterruptPending = errors.New("another form request is still pending")

// Broker delivers agent interrupts to a single client and blocks the agent
// until the client resolves them. At most one interrupt is outstanding.
type Broker struct {
	mu         sync.Mutex
	pending    *Interrupt
	interrupts chan *Interrupt
	timeout    time.Duration
	logger     *slog.Logger
}

type Option func(*Broker)

// WithTimeout bounds how long Suspend waits for the operator. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(b *Broker) {
		b.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		interrupts: make(chan *Interrupt, 1),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Interrupts is the client side of the broker.
func (b *Broker) Interrupts() <-chan *Interrupt {
	return b.interrupts
}

func (b *Broker) Pending() (*Interrupt, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending, b.pending != nil
}

// Suspend hands value to the client and waits for its resolution string.
// On timeout it answers with a dgui_error itself; on cancellation of ctx it
// does the same and also returns ctx.Err(). Either path races safely with an
// operator submission because the interrupt accepts only one resolution.
func (b *Broker) Suspend(ctx context.Context, value any) (string, error) {
	b.mu.Lock()
	if b.pending != nil {
		id := b.pending.ID
		b.mu.Unlock()
		b.logger.Warn("Rejected form request while another is pending", "pending_id", id)
		return "", fmt.Errorf("%w: %s", ErrInterruptPending, id)
	}
	in := NewInterrupt(value)
	b.pending = in
	b.mu.Unlock()
	defer b.release(in)

	waitCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	b.logger.Debug("Suspending for operator input", "interrupt_id", in.ID)
	select {
	case b.interrupts <- in:
	case <-waitCtx.Done():
		return b.abandon(ctx, in)
	}
	select {
	case <-in.Done():
	case <-waitCtx.Done():
		return b.abandon(ctx, in)
	}
	result, _ := in.Result()
	b.logger.Debug("Resumed with operator input", "interrupt_id", in.ID)
	return result, nil
}

func (b *Broker) abandon(ctx context.Context, in *Interrupt) (string, error) {
	msg := envelope.TimeoutMessage
	if ctx.Err() != nil {
		msg = envelope.CancelledMessage
	}
	won := in.Resolve(envelope.EncodeResolution(envelope.Error(msg, map[string]any{
		"interrupt_id": in.ID,
	})))
	// A losing resolve may run before the winner has published its result.
	<-in.Done()
	result, _ := in.Result()
	if !won {
		return result, nil
	}
	b.logger.Warn("Form request abandoned", "interrupt_id", in.ID, "reason", msg)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (b *Broker) release(in *Interrupt) {
	b.mu.Lock()
	if b.pending == in {
		b.pending = nil
	}
	b.mu.Unlock()
}
