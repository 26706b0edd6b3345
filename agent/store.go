package agent

import (
	"context"

	"github.com/tbxark/dgui/session"
)

const defaultKey = "default"

// keyedStore is a namespaced view of a cache addressed by the session key in
// the context.
type keyedStore[S any] struct {
	core      session.Cache[S]
	namespace string
}

func newKeyedStore[S any](core session.Cache[S], namespace string) keyedStore[S] {
	return keyedStore[S]{
		core:      core,
		namespace: namespace,
	}
}

func (c keyedStore[S]) key(ctx context.Context) string {
	key, ok := session.KeyFromContext(ctx)
	if !ok || key == "" {
		key = defaultKey
	}
	return c.namespace + ":" + key
}

func (c keyedStore[S]) Set(ctx context.Context, val S) error {
	return c.core.Set(ctx, c.key(ctx), val)
}

func (c keyedStore[S]) Get(ctx context.Context) (S, bool, error) {
	return c.core.Get(ctx, c.key(ctx))
}

func (c keyedStore[S]) Del(ctx context.Context) error {
	return c.core.Del(ctx, c.key(ctx))
}
