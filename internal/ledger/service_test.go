package ledger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/event"
	"github.com/mutaician/p2p-coin-flip/internal/kv"
	"github.com/mutaician/p2p-coin-flip/internal/ledger"
)

var base = time.UnixMilli(1_750_000_000_000)

func TestService_Append(t *testing.T) {
	s := makeService(t)

	entry := domain.WinnerEntry{
		SessionID:    "ABCD1234",
		WinnerName:   "Alice",
		TotalPot:     100,
		WinnerChoice: domain.Heads,
		Result:       domain.Heads,
		CompletedAt:  base,
	}
	require.NoError(t, s.Append(context.Background(), entry))

	got, err := s.Recent(context.Background(), ledger.RecentRequest{})
	require.NoError(t, err)
	require.Equal(t, []domain.WinnerEntry{entry}, got)
}

func TestService_Recent(t *testing.T) {
	type (
		inputs struct {
			entries []domain.WinnerEntry
			limit   int
		}

		outputs struct {
			recent []domain.WinnerEntry
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should return entries newest first": {
			arrange: func() inputs {
				return inputs{
					entries: []domain.WinnerEntry{
						entryAt("S0000001", "Alice", 1),
						entryAt("S0000003", "Carol", 3),
						entryAt("S0000002", "Bob", 2),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.recent, 3)
				require.Equal(t, "Carol", out.recent[0].WinnerName)
				require.Equal(t, "Bob", out.recent[1].WinnerName)
				require.Equal(t, "Alice", out.recent[2].WinnerName)
			},
		},

		"should truncate to the limit": {
			arrange: func() inputs {
				var entries []domain.WinnerEntry
				for i := 0; i < 15; i++ {
					entries = append(entries, entryAt(fmt.Sprintf("S%07d", i), fmt.Sprintf("P%d", i), i))
				}
				return inputs{entries: entries, limit: 5}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.recent, 5)
				require.Equal(t, "P14", out.recent[0].WinnerName)
				require.Equal(t, "P10", out.recent[4].WinnerName)
			},
		},

		"should default to 10 entries": {
			arrange: func() inputs {
				var entries []domain.WinnerEntry
				for i := 0; i < 12; i++ {
					entries = append(entries, entryAt(fmt.Sprintf("S%07d", i), fmt.Sprintf("P%d", i), i))
				}
				return inputs{entries: entries}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.recent, ledger.DefaultLimit)
			},
		},

		"should return nothing for an empty ledger": {
			arrange: func() inputs {
				return inputs{}
			},

			assert: func(t *testing.T, out outputs) {
				require.Empty(t, out.recent)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			s := makeService(t)

			for _, e := range in.entries {
				require.NoError(t, s.Append(context.Background(), e))
			}

			recent, err := s.Recent(context.Background(), ledger.RecentRequest{Limit: in.limit})
			require.NoError(t, err)

			tt.assert(t, outputs{recent: recent})
		})
	}
}

func TestService_AppendsOnSessionCompleted(t *testing.T) {
	eb := event.NewBus()
	s := makeService(t, withEventBus(eb))

	p2 := &domain.Player{Name: "Bob", Bet: 50, Choice: domain.Tails}
	eb.Publish(context.Background(), domain.EventSessionCompleted{
		Session: domain.Session{
			ID:           "ABCD1234",
			Status:       domain.StatusCompleted,
			CreatedAt:    base.Add(-time.Minute),
			Player1:      domain.Player{Name: "Alice", Bet: 50, Choice: domain.Heads},
			Player2:      p2,
			Result:       domain.Tails,
			Winner:       domain.RolePlayer2,
			WinnerName:   "Bob",
			WinnerChoice: domain.Tails,
			TotalPot:     100,
			CompletedAt:  base,
		},
	})
	eb.Stop()

	got, err := s.Recent(context.Background(), ledger.RecentRequest{})
	require.NoError(t, err)
	require.Equal(t, []domain.WinnerEntry{{
		SessionID:    "ABCD1234",
		WinnerName:   "Bob",
		TotalPot:     100,
		WinnerChoice: domain.Tails,
		Result:       domain.Tails,
		CompletedAt:  base,
	}}, got)
}

func entryAt(id, name string, minute int) domain.WinnerEntry {
	return domain.WinnerEntry{
		SessionID:    id,
		WinnerName:   name,
		TotalPot:     20,
		WinnerChoice: domain.Heads,
		Result:       domain.Heads,
		CompletedAt:  base.Add(time.Duration(minute) * time.Minute),
	}
}

func makeService(t *testing.T, opts ...options) *ledger.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := ledger.Config{
		KV:            kv.NewRedis(kv.RedisConfig{Redis: rc, Prefix: "test"}),
		CollectWindow: time.Second,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return ledger.NewService(c)
}

type options func(c *ledger.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *ledger.Config) {
		c.EventBus = eb
	}
}
