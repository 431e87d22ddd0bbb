package api

import (
	"strconv"
	"sync"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
)

const defaultStreamBuffer = 256

type StreamEvent struct {
	ID    string
	Event string
	Data  any
}

// Stream fans session snapshots out to event-stream clients. It keeps the most
// recent events so a reconnecting client can resume after Last-Event-ID.
type Stream struct {
	mu       sync.Mutex
	nextID   int64
	max      int
	events   []StreamEvent
	watchers map[chan StreamEvent]struct{}
	closed   bool
}

func NewStream(max int) *Stream {
	if max <= 0 {
		max = defaultStreamBuffer
	}

	return &Stream{
		max:      max,
		watchers: make(map[chan StreamEvent]struct{}),
	}
}

// PublishSession appends ss as a "session.<status>" event.
func (s *Stream) PublishSession(ss domain.Session) {
	s.Append("session."+string(ss.Status), newSession(ss))
}

// Append never blocks; a watcher that falls behind misses events.
func (s *Stream) Append(event string, data any) StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return StreamEvent{}
	}

	s.nextID++
	ev := StreamEvent{
		ID:    strconv.FormatInt(s.nextID, 10),
		Event: event,
		Data:  data,
	}

	s.events = append(s.events, ev)
	if len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}

	for ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}

	return ev
}

// ReplayAfter returns buffered events newer than lastID, or all of them when
// lastID is empty or unparsable.
func (s *Stream) ReplayAfter(lastID string) []StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := strconv.ParseInt(lastID, 10, 64)
	if err != nil {
		last = 0
	}

	out := make([]StreamEvent, 0, len(s.events))
	for _, ev := range s.events {
		id, _ := strconv.ParseInt(ev.ID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}

	return out
}

func (s *Stream) Subscribe() chan StreamEvent {
	ch := make(chan StreamEvent, 32)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch
	}

	s.watchers[ch] = struct{}{}
	return ch
}

func (s *Stream) Unsubscribe(ch chan StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watchers[ch]; ok {
		delete(s.watchers, ch)
		close(ch)
	}
}

// Close ends every open stream.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	for ch := range s.watchers {
		close(ch)
		delete(s.watchers, ch)
	}
}
