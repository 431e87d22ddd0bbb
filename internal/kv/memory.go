package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store. Subscribers are notified asynchronously and
// in write order, so a callback may call back into the store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	subs    map[string]map[*memorySub]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		subs:    make(map[string]map[*memorySub]struct{}),
	}
}

func (m *Memory) Put(ctx context.Context, key string, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = r.Clone()
	for s := range m.subs[key] {
		s.push(r.Clone())
	}

	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}

	return r.Clone(), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, key string, fn func(Record)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &memorySub{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.unregister = func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		delete(m.subs[key], s)
		if len(m.subs[key]) == 0 {
			delete(m.subs, key)
		}
	}

	m.mu.Lock()
	if m.subs[key] == nil {
		m.subs[key] = make(map[*memorySub]struct{})
	}
	m.subs[key][s] = struct{}{}
	m.mu.Unlock()

	go s.loop()

	return s, nil
}

func (m *Memory) Scan(ctx context.Context, prefix string, visit func(key string, r Record) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	for _, k := range keys {
		if ctx.Err() != nil {
			return nil
		}

		r, err := m.Get(ctx, k)
		if err != nil {
			// Deleted since the key listing.
			continue
		}

		if err := visit(k, r); err != nil {
			return err
		}
	}

	return nil
}

type memorySub struct {
	fn         func(Record)
	unregister func()

	mu     sync.Mutex
	queue  []Record
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *memorySub) push(r Record) {
	s.mu.Lock()
	s.queue = append(s.queue, r)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *memorySub) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, r := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(r)
		}
	}
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.unregister()
		close(s.done)
	})
	return nil
}
