// Package suspend is the rendezvous between an agent that pauses for operator
// input and the client that answers it. Every interrupt accepts exactly one
// resolution.
package suspend

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Interrupt is a single suspension raised by the agent.
type Interrupt struct {
	ID        string
	Value     any
	CreatedAt time.Time

	resolved atomic.Bool
	done     chan struct{}
	result   string
}

func NewInterrupt(value any) *Interrupt {
	return &Interrupt{
		ID:        uuid.NewString(),
		Value:     value,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Payload returns the raw value delivered by the agent.
func (i *Interrupt) Payload() any { return i.Value }

// Resolve consumes the interrupt. Only the first call wins; later calls
// report false and leave the stored result untouched.
func (i *Interrupt) Resolve(result string) bool {
	if !i.resolved.CompareAndSwap(false, true) {
		return false
	}
	i.result = result
	close(i.done)
	return true
}

func (i *Interrupt) Done() <-chan struct{} { return i.done }

func (i *Interrupt) Resolved() bool { return i.resolved.Load() }

// Result returns the resolution once Done is closed.
func (i *Interrupt) Result() (string, bool) {
	select {
	case <-i.done:
		return i.result, true
	default:
		return "", false
	}
}
