package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// MonitorRedis instruments r with tracing and metrics and logs every command at
// debug level. A nil logger uses slog.Default.
func MonitorRedis(r redis.UniversalClient, l *slog.Logger) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}

	if l == nil {
		l = slog.Default()
	}
	r.AddHook(redisLog{l: l})

	return nil
}

type redisLog struct {
	l *slog.Logger
}

func (h redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			h.l.WarnContext(ctx, "redis: dial failed", "network", network, "addr", addr, "error", err)
			return conn, err
		}

		h.l.DebugContext(ctx, "redis: dialed", "network", network, "addr", addr)
		return conn, nil
	}
}

func (h redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		h.log(ctx, "redis: command", cmd.Name(), time.Since(start), err)
		return err
	}
}

func (h redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		h.log(ctx, "redis: pipeline", fmt.Sprintf("%d commands", len(cmds)), time.Since(start), err)
		return err
	}
}

func (h redisLog) log(ctx context.Context, msg, cmd string, d time.Duration, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		h.l.WarnContext(ctx, msg, "cmd", cmd, "duration", d, "error", err)
		return
	}

	h.l.DebugContext(ctx, msg, "cmd", cmd, "duration", d)
}
