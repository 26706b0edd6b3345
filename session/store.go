package session

import (
	"context"
	"sync"
)

type keyContext struct{}

const (
	defaultKey = "default"
	namespace  = "dgui:session"
)

// WithKey routes session lookups in ctx to the session named key.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyContext{}, key)
}

func KeyFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(keyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok
}

func keyOrDefault(ctx context.Context) string {
	key, ok := KeyFromContext(ctx)
	if ok && key != "" {
		return key
	}
	return defaultKey
}

// Store owns the sessions of one process, one per routing key.
type Store struct {
	mu         sync.Mutex
	core       Cache[*Session]
	newSession func(ctx context.Context) *Session
}

func NewStore(core Cache[*Session], newSession func(ctx context.Context) *Session) *Store {
	if newSession == nil {
		newSession = func(ctx context.Context) *Session { return New() }
	}
	return &Store{core: core, newSession: newSession}
}

func NewMemoryStore(newSession func(ctx context.Context) *Session) *Store {
	return NewStore(NewMemoryCache[*Session](), newSession)
}

// Load returns the session routed by ctx, creating it on first use.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	key := namespace + ":" + keyOrDefault(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok, err := s.core.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return sess, nil
	}
	sess = s.newSession(ctx)
	if err := s.core.Set(ctx, key, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Remove tears down the session routed by ctx. The next Load starts fresh.
func (s *Store) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Del(ctx, namespace+":"+keyOrDefault(ctx))
}
