package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/kv"
)

// DefaultNamespace is the key space sessions live under.
const DefaultNamespace = "p2p-coinflip-games"

type StoreConfig struct {
	KV        kv.Store
	Namespace string
}

// Store keeps Session records in the shared key-value space. Writes always
// carry the complete record; there is no merge and no compare-and-swap.
//
// Store holds at most one subscription per session id; it is meant to be owned
// by a single participant.
type Store struct {
	kv        kv.Store
	namespace string

	mu   sync.Mutex
	subs map[string]kv.Subscription
}

func NewStore(c StoreConfig) *Store {
	ns := c.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	return &Store{
		kv:        c.KV,
		namespace: ns,
		subs:      make(map[string]kv.Subscription),
	}
}

// Create writes a new record. Uniqueness of the id is only probabilistic.
func (s *Store) Create(ctx context.Context, ss domain.Session) error {
	return s.Write(ctx, ss)
}

// Read returns kv.ErrNotFound for a missing id and ErrMalformed for a record
// that cannot be decoded.
func (s *Store) Read(ctx context.Context, id string) (*domain.Session, error) {
	r, err := s.kv.Get(ctx, s.key(id))
	if err != nil {
		return nil, err
	}

	ss, err := decode(r)
	if err != nil {
		return nil, err
	}

	return &ss, nil
}

// Write overwrites the full record.
func (s *Store) Write(ctx context.Context, ss domain.Session) error {
	if err := s.kv.Put(ctx, s.key(ss.ID), encode(ss)); err != nil {
		return fmt.Errorf("session: write %s: %w", ss.ID, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, s.key(id))
}

// Subscribe calls fn with every decodable snapshot of the session, including
// this participant's own writes. A previous subscription to id is replaced.
func (s *Store) Subscribe(ctx context.Context, id string, fn func(domain.Session)) error {
	sub, err := s.kv.Subscribe(ctx, s.key(id), func(r kv.Record) {
		ss, err := decode(r)
		if err != nil {
			slog.WarnContext(ctx, "session: ignore malformed snapshot", "session", id, "error", err)
			return
		}
		if ss.ID != id {
			return
		}

		fn(ss)
	})
	if err != nil {
		return fmt.Errorf("session: subscribe %s: %w", id, err)
	}

	s.mu.Lock()
	prev := s.subs[id]
	s.subs[id] = sub
	s.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}

	return nil
}

// Unsubscribe is idempotent and safe for ids that no longer exist.
func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()

	if ok {
		_ = sub.Close()
	}
}

// Close drops every subscription.
func (s *Store) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]kv.Subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
}

// Enumerate streams the sessions propagated so far. Malformed records are
// skipped. The caller bounds the collection window through ctx.
func (s *Store) Enumerate(ctx context.Context, visit func(domain.Session) error) error {
	return s.kv.Scan(ctx, s.namespace+":", func(key string, r kv.Record) error {
		ss, err := decode(r)
		if stderrors.Is(err, ErrMalformed) {
			slog.DebugContext(ctx, "session: skip malformed record", "key", key, "error", err)
			return nil
		}

		return visit(ss)
	})
}

func (s *Store) key(id string) string {
	return kv.Key(s.namespace, id)
}
