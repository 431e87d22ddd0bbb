package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/event"
)

func TestBus_Publish(t *testing.T) {
	type (
		inputs struct {
			published []event.Event
			consumers map[string][]string
		}

		outputs struct {
			seen map[string][]string
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should deliver only the subscribed names": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{created("S0000001"), joined("S0000001")},
					consumers: map[string][]string{
						"ledger": {domain.EventNameSessionCompleted},
						"notify": {domain.EventNameSessionJoined},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.seen["ledger"])
				assert.Equal(t, []string{"S0000001"}, out.seen["notify"])
			},
		},

		"should deliver every lifecycle event to a consumer of all names": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						created("S0000001"),
						joined("S0000001"),
						flipping("S0000001"),
						completed("S0000001"),
						cancelled("S0000002"),
					},
					consumers: map[string][]string{
						"metrics": domain.SessionEventNames,
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []string{"S0000001", "S0000001", "S0000001", "S0000001", "S0000002"}, out.seen["metrics"])
			},
		},

		"should fan one event out to every consumer": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{completed("S0000003")},
					consumers: map[string][]string{
						"ledger":  {domain.EventNameSessionCompleted},
						"archive": {domain.EventNameSessionCompleted},
						"metrics": domain.SessionEventNames,
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				for _, c := range []string{"ledger", "archive", "metrics"} {
					assert.Equal(t, []string{"S0000003"}, out.seen[c], c)
				}
			},
		},

		"should deliver nothing without subscribers": {
			arrange: func() inputs {
				return inputs{published: []event.Event{created("S0000001")}}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.seen)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			var mu sync.Mutex
			out := outputs{seen: make(map[string][]string)}

			b := event.NewBus(event.WithPoolSize(2))
			for consumer, names := range in.consumers {
				consumer := consumer
				b.Subscribe(func(_ context.Context, e event.Event) error {
					mu.Lock()
					defer mu.Unlock()
					out.seen[consumer] = append(out.seen[consumer], e.(domain.SessionEvent).Snapshot().ID)
					return nil
				}, names...)
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_HandlerFailureIsContained(t *testing.T) {
	b := event.NewBus(event.WithTimeout(time.Second))

	var calls atomic.Int32
	b.Subscribe(func(context.Context, event.Event) error {
		panic("ledger write on closed client")
	}, domain.EventNameSessionCompleted)
	b.Subscribe(func(context.Context, event.Event) error {
		calls.Add(1)
		return errors.New("archive unavailable")
	}, domain.EventNameSessionCompleted)

	b.Publish(context.Background(), completed("S0000001"))
	b.Publish(context.Background(), completed("S0000002"))
	b.Stop()

	assert.Equal(t, int32(2), calls.Load())
}

func TestBus_HandlerTimeout(t *testing.T) {
	b := event.NewBus(event.WithTimeout(20 * time.Millisecond))

	errc := make(chan error, 1)
	b.Subscribe(func(ctx context.Context, _ event.Event) error {
		<-ctx.Done()
		errc <- ctx.Err()
		return ctx.Err()
	}, domain.EventNameSessionFlipping)

	ctx, cancel := context.WithCancel(context.Background())
	b.Publish(ctx, flipping("S0000001"))
	cancel()
	b.Stop()

	require.ErrorIs(t, <-errc, context.DeadlineExceeded)
}

func TestBus_DropsAfterStop(t *testing.T) {
	b := event.NewBus()

	var calls atomic.Int32
	b.Subscribe(func(context.Context, event.Event) error {
		calls.Add(1)
		return nil
	}, domain.EventNameSessionCreated)

	b.Publish(context.Background(), created("S0000001"))
	b.Stop()
	b.Publish(context.Background(), created("S0000002"))
	b.Stop()

	assert.Equal(t, int32(1), calls.Load())
}

func snapshot(id string, status domain.Status) domain.Session {
	return domain.Session{
		ID:        id,
		Status:    status,
		CreatedAt: time.UnixMilli(1_750_000_000_000),
		Player1:   domain.Player{Name: "Alice", Bet: 10, Choice: domain.Heads},
	}
}

func created(id string) event.Event {
	return domain.EventSessionCreated{Session: snapshot(id, domain.StatusWaiting)}
}

func joined(id string) event.Event {
	return domain.EventSessionJoined{Session: snapshot(id, domain.StatusReady)}
}

func flipping(id string) event.Event {
	return domain.EventSessionFlipping{Session: snapshot(id, domain.StatusFlipping)}
}

func completed(id string) event.Event {
	return domain.EventSessionCompleted{Session: snapshot(id, domain.StatusCompleted)}
}

func cancelled(id string) event.Event {
	return domain.EventSessionCancelled{Session: snapshot(id, domain.StatusCancelled)}
}
