package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultScanCount = 100

type RedisConfig struct {
	Redis  redis.UniversalClient
	Prefix string
	// ScanCount is the SCAN COUNT hint per round trip.
	ScanCount int64
}

// Redis stores each record as a hash. A Put runs DEL, HSET and PUBLISH in one
// MULTI so readers never see a partially written record, and subscribers of
// the key's channel receive the full record as JSON.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	count  int64
}

func NewRedis(c RedisConfig) *Redis {
	count := c.ScanCount
	if count <= 0 {
		count = defaultScanCount
	}

	return &Redis{
		redis:  c.Redis,
		prefix: c.Prefix,
		count:  count,
	}
}

func (s *Redis) Put(ctx context.Context, key string, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("kv: marshal %s: %w", key, err)
	}

	fields := make(map[string]any, len(r))
	for k, v := range r {
		fields[k] = v
	}

	k := s.key(key)
	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		if len(fields) > 0 {
			p.HSet(ctx, k, fields)
		}
		p.Publish(ctx, k, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv: put %s: %w", key, err)
	}

	return nil
}

func (s *Redis) Get(ctx context.Context, key string) (Record, error) {
	res, err := s.redis.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: get %s: %w", key, err)
	}

	if len(res) == 0 {
		return nil, ErrNotFound
	}

	return Record(res), nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}

	return nil
}

func (s *Redis) Subscribe(ctx context.Context, key string, fn func(Record)) (Subscription, error) {
	ps := s.redis.Subscribe(ctx, s.key(key))

	// Wait for the subscription confirmation so no write after this call is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("kv: subscribe %s: %w", key, err)
	}

	go func() {
		for msg := range ps.Channel() {
			var r Record
			if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
				slog.Warn("kv: drop malformed notification", "channel", msg.Channel, "error", err)
				continue
			}

			fn(r)
		}
	}()

	return &redisSub{ps: ps}, nil
}

func (s *Redis) Scan(ctx context.Context, prefix string, visit func(key string, r Record) error) error {
	it := s.redis.Scan(ctx, 0, s.key(prefix)+"*", s.count).Iterator()
	for it.Next(ctx) {
		full := it.Val()

		res, err := s.redis.HGetAll(ctx, full).Result()
		if ctx.Err() != nil {
			return nil
		}
		if redis.HasErrorPrefix(err, "WRONGTYPE") {
			continue
		}
		if err != nil {
			return fmt.Errorf("kv: scan %s: %w", prefix, err)
		}
		if len(res) == 0 {
			continue
		}

		if err := visit(s.unkey(full), Record(res)); err != nil {
			return err
		}
	}

	if err := it.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("kv: scan %s: %w", prefix, err)
	}

	return nil
}

func (s *Redis) key(k string) string {
	return Key(s.prefix, k)
}

func (s *Redis) unkey(full string) string {
	if s.prefix == "" {
		return full
	}
	return strings.TrimPrefix(full, s.prefix+":")
}

type redisSub struct {
	ps   *redis.PubSub
	once sync.Once
	err  error
}

func (s *redisSub) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
	})
	return s.err
}
