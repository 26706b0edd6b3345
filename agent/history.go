package agent

import (
	"context"
	"slices"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/dgui/session"
)

type Trimmer interface {
	Trim(history []*schema.Message) []*schema.Message
}

// KeepSystemLastNTrimmer keeps all system messages and the last N non-system
// messages. Tool results at the head of the kept window lose the assistant
// call that produced them, so they are dropped as well. When N <= 0 only system
// messages remain.
type KeepSystemLastNTrimmer struct {
	N int
}

func (t KeepSystemLastNTrimmer) Trim(history []*schema.Message) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	var system, rest []*schema.Message
	for _, m := range history {
		switch {
		case m == nil:
		case m.Role == schema.System:
			system = append(system, m)
		default:
			rest = append(rest, m)
		}
	}
	if t.N <= 0 {
		return system
	}
	if len(rest) <= t.N {
		return history
	}

	rest = rest[len(rest)-t.N:]
	for len(rest) > 0 && rest[0].Role == schema.Tool {
		rest = rest[1:]
	}
	return append(system, rest...)
}

type HistoryReadWriter interface {
	Load(ctx context.Context) ([]*schema.Message, error)
	Save(ctx context.Context, history []*schema.Message) error
	Clear(ctx context.Context) error

	// Append loads history, appends msgs with de-duplication, trims, then saves.
	// It returns the saved history for convenient passing to adk.AgentInput.
	Append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error)
}

// HistoryStore keeps one conversation per session key, see session.WithKey.
type HistoryStore struct {
	store   keyedStore[[]*schema.Message]
	trimmer Trimmer
}

func NewHistoryStore(core session.Cache[[]*schema.Message], trimmer Trimmer) *HistoryStore {
	return &HistoryStore{
		store:   newKeyedStore(core, "agent:history"),
		trimmer: trimmer,
	}
}

func NewMemoryHistoryStore(trimmer Trimmer) *HistoryStore {
	return NewHistoryStore(session.NewMemoryCache[[]*schema.Message](), trimmer)
}

func (s *HistoryStore) Load(ctx context.Context) ([]*schema.Message, error) {
	hist, ok, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return hist, nil
}

func (s *HistoryStore) Save(ctx context.Context, history []*schema.Message) error {
	history = normalizeHistory(history)
	history = s.trim(history)
	return s.store.Set(ctx, history)
}

func (s *HistoryStore) Clear(ctx context.Context) error {
	return s.store.Del(ctx)
}

func (s *HistoryStore) Append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error) {
	hist, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	hist = s.trim(normalizeHistory(appendHistory(hist, msgs...)))
	if err := s.store.Set(ctx, hist); err != nil {
		return nil, err
	}
	return hist, nil
}

func (s *HistoryStore) trim(history []*schema.Message) []*schema.Message {
	if s == nil || s.trimmer == nil {
		return history
	}
	return s.trimmer.Trim(history)
}

func appendHistory(history []*schema.Message, msgs ...*schema.Message) []*schema.Message {
	if len(msgs) == 0 {
		return history
	}
	out := slices.Clone(history)
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			if sameMessage(last, msg) {
				continue
			}
		}
		out = append(out, msg)
	}
	return out
}

// sameMessage reports a repeated plain message. Tool traffic is never merged.
func sameMessage(a, b *schema.Message) bool {
	if a == nil || b == nil || a.Role != b.Role || a.Content != b.Content {
		return false
	}
	return len(a.ToolCalls) == 0 && len(b.ToolCalls) == 0 && a.ToolCallID == b.ToolCallID && a.Role != schema.Tool
}

func normalizeHistory(history []*schema.Message) []*schema.Message {
	if len(history) == 0 {
		return history
	}
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

var _ HistoryReadWriter = (*HistoryStore)(nil)
