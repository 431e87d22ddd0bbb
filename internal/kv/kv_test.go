package kv_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutaician/p2p-coin-flip/internal/kv"
)

func TestStore(t *testing.T) {
	stores := map[string]func(t *testing.T) kv.Store{
		"memory": func(*testing.T) kv.Store { return kv.NewMemory() },
		"redis":  makeRedis,
	}

	for name, makeStore := range stores {
		makeStore := makeStore
		t.Run(name, func(t *testing.T) {
			t.Run("get missing key returns ErrNotFound", func(t *testing.T) {
				s := makeStore(t)
				_, err := s.Get(context.Background(), "games:NOPE")
				require.ErrorIs(t, err, kv.ErrNotFound)
			})

			t.Run("put replaces the whole record", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				require.NoError(t, s.Put(ctx, "games:A", kv.Record{"id": "A", "status": "waiting", "extra": "x"}))
				require.NoError(t, s.Put(ctx, "games:A", kv.Record{"id": "A", "status": "ready"}))

				got, err := s.Get(ctx, "games:A")
				require.NoError(t, err)
				assert.Equal(t, kv.Record{"id": "A", "status": "ready"}, got)
			})

			t.Run("subscriber observes own writes in order", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				var (
					mu  sync.Mutex
					got []string
				)
				sub, err := s.Subscribe(ctx, "games:B", func(r kv.Record) {
					mu.Lock()
					got = append(got, r["status"])
					mu.Unlock()
				})
				require.NoError(t, err)
				defer sub.Close()

				for _, st := range []string{"waiting", "ready", "flipping"} {
					require.NoError(t, s.Put(ctx, "games:B", kv.Record{"id": "B", "status": st}))
				}

				require.Eventually(t, func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(got) == 3
				}, 2*time.Second, 10*time.Millisecond)

				mu.Lock()
				assert.Equal(t, []string{"waiting", "ready", "flipping"}, got)
				mu.Unlock()
			})

			t.Run("closed subscription stops delivery and closes twice", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				var (
					mu    sync.Mutex
					count int
				)
				sub, err := s.Subscribe(ctx, "games:C", func(kv.Record) {
					mu.Lock()
					count++
					mu.Unlock()
				})
				require.NoError(t, err)

				require.NoError(t, s.Put(ctx, "games:C", kv.Record{"id": "C"}))
				require.Eventually(t, func() bool {
					mu.Lock()
					defer mu.Unlock()
					return count == 1
				}, 2*time.Second, 10*time.Millisecond)

				require.NoError(t, sub.Close())
				_ = sub.Close()

				require.NoError(t, s.Put(ctx, "games:C", kv.Record{"id": "C", "status": "ready"}))
				time.Sleep(50 * time.Millisecond)

				mu.Lock()
				assert.Equal(t, 1, count)
				mu.Unlock()
			})

			t.Run("scan visits only the prefix", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				require.NoError(t, s.Put(ctx, "games:1", kv.Record{"id": "1"}))
				require.NoError(t, s.Put(ctx, "games:2", kv.Record{"id": "2"}))
				require.NoError(t, s.Put(ctx, "completed-games:1", kv.Record{"winnerName": "Alice"}))

				seen := map[string]string{}
				err := s.Scan(ctx, "games:", func(key string, r kv.Record) error {
					seen[key] = r["id"]
					return nil
				})
				require.NoError(t, err)
				assert.Equal(t, map[string]string{"games:1": "1", "games:2": "2"}, seen)
			})

			t.Run("delete removes the record", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				require.NoError(t, s.Put(ctx, "games:D", kv.Record{"id": "D"}))
				require.NoError(t, s.Delete(ctx, "games:D"))
				require.NoError(t, s.Delete(ctx, "games:D"))

				_, err := s.Get(ctx, "games:D")
				require.ErrorIs(t, err, kv.ErrNotFound)
			})
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "local:games:A", kv.Key("local", "games", "A"))
	assert.Equal(t, "games:A", kv.Key("", "games", "A"))
}

func makeRedis(t *testing.T) kv.Store {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return kv.NewRedis(kv.RedisConfig{
		Redis:  rc,
		Prefix: "test",
	})
}
