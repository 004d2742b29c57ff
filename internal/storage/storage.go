// Package storage provides the key-value surface carts and customer sessions
// persist through. Keys are opaque strings; values are JSON documents.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// KV is a minimal string key-value store.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Op is one write of a batch: a Set, or a Delete when Delete is true.
type Op struct {
	Key    string
	Value  string
	Delete bool
}

// SetOp and DeleteOp build batch entries.
func SetOp(key, value string) Op { return Op{Key: key, Value: value} }
func DeleteOp(key string) Op     { return Op{Key: key, Delete: true} }

// Batcher is implemented by stores that can apply several writes atomically.
type Batcher interface {
	Batch(ctx context.Context, ops []Op) error
}

// Apply writes ops through kv. Stores implementing Batcher apply them all or
// none; others apply them in order and stop at the first error.
func Apply(ctx context.Context, kv KV, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	if b, ok := kv.(Batcher); ok {
		return b.Batch(ctx, ops)
	}
	for _, op := range ops {
		var err error
		if op.Delete {
			err = kv.Delete(ctx, op.Key)
		} else {
			err = kv.Set(ctx, op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type scoped struct {
	inner  KV
	prefix string
}

// Scoped namespaces every key of kv under scope, so each shopper device gets
// its own view of the same tenant-keyed records.
func Scoped(kv KV, scope string) KV {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return kv
	}
	return &scoped{inner: kv, prefix: scope + ":"}
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *scoped) Batch(ctx context.Context, ops []Op) error {
	prefixed := make([]Op, len(ops))
	for i, op := range ops {
		op.Key = s.prefix + op.Key
		prefixed[i] = op
	}
	return Apply(ctx, s.inner, prefixed...)
}
