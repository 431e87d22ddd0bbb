// Package kv is the shared, eventually consistent key-value space that
// participants exchange session state through.
//
// A Record is a flat set of string fields. Every Put replaces the whole record
// and notifies subscribers of that key, including the writer's own
// subscriptions. No compare-and-swap is offered.
package kv

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("kv: not found")

// Record is a flat field set. An empty value stands for null.
type Record map[string]string

// Clone returns a copy safe to hand to another goroutine.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Store is the capability the protocol components depend on.
type Store interface {
	// Put replaces the record at key and notifies subscribers.
	Put(ctx context.Context, key string, r Record) error
	// Get returns ErrNotFound when key holds nothing.
	Get(ctx context.Context, key string) (Record, error)
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
	// Subscribe delivers every observed change to key until the subscription is closed.
	Subscribe(ctx context.Context, key string, fn func(Record)) (Subscription, error)
	// Scan visits the records under prefix seen so far. It stops early when
	// visit returns an error or ctx ends; the latter is not an error.
	Scan(ctx context.Context, prefix string, visit func(key string, r Record) error) error
}

// Subscription stops delivery when closed. Close is idempotent.
type Subscription interface {
	Close() error
}

// Key joins non-empty key segments with ':'.
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}
