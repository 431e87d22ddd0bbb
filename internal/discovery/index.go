package discovery

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/errors"
	"github.com/mutaician/p2p-coin-flip/internal/session"
)

const (
	DefaultWindow        = 10 * time.Minute
	DefaultCollectWindow = 1500 * time.Millisecond
	DefaultSweepInterval = time.Minute
)

type Config struct {
	Store *session.Store
	// Window is how long after creation a session stays discoverable.
	Window time.Duration
	// CollectWindow bounds a listing; whatever propagated by then is the result.
	CollectWindow time.Duration
	// Prune deletes expired sessions seen while listing.
	Prune         bool
	SweepInterval time.Duration
	Now           func() time.Time
	NewTickerFunc func(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Index lists joinable sessions. A listing is stale the moment it is returned;
// joiners must expect "already full" on any entry.
type Index struct {
	store         *session.Store
	window        time.Duration
	collectWindow time.Duration
	prune         bool
	sweepInterval time.Duration
	now           func() time.Time
	newTicker     func(d time.Duration) Ticker
}

func New(c Config) *Index {
	ix := &Index{
		store:         c.Store,
		window:        c.Window,
		collectWindow: c.CollectWindow,
		prune:         c.Prune,
		sweepInterval: c.SweepInterval,
		now:           c.Now,
		newTicker:     c.NewTickerFunc,
	}

	if ix.window <= 0 {
		ix.window = DefaultWindow
	}
	if ix.collectWindow <= 0 {
		ix.collectWindow = DefaultCollectWindow
	}
	if ix.sweepInterval <= 0 {
		ix.sweepInterval = DefaultSweepInterval
	}
	if ix.now == nil {
		ix.now = time.Now
	}
	if ix.newTicker == nil {
		ix.newTicker = newTimeTicker
	}

	return ix
}

// ListOpen returns waiting sessions without a second player created within the
// discovery window, newest first.
func (ix *Index) ListOpen(ctx context.Context) ([]domain.OpenSession, error) {
	ctx, cancel := context.WithTimeout(ctx, ix.collectWindow)
	defer cancel()

	now := ix.now()
	seen := make(map[string]domain.OpenSession)
	var expired []string

	err := ix.store.Enumerate(ctx, func(ss domain.Session) error {
		if ss.Expired(now, ix.window) {
			expired = append(expired, ss.ID)
			return nil
		}
		if !ss.Open() {
			return nil
		}

		seen[ss.ID] = domain.OpenSession{
			ID:        ss.ID,
			HostName:  ss.Player1.Name,
			Bet:       ss.Player1.Bet,
			CreatedAt: ss.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, errors.Store(err)
	}

	if ix.prune && len(expired) > 0 {
		ix.delete(context.WithoutCancel(ctx), expired)
	}

	open := make([]domain.OpenSession, 0, len(seen))
	for _, o := range seen {
		open = append(open, o)
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].ID < open[j].ID
		}
		return open[i].CreatedAt.After(open[j].CreatedAt)
	})

	return open, nil
}

// Sweep deletes every session older than the discovery window and returns how
// many it removed. Other readers may still hold copies; they filter by age too.
func (ix *Index) Sweep(ctx context.Context) (int, error) {
	now := ix.now()
	var expired []string

	err := ix.store.Enumerate(ctx, func(ss domain.Session) error {
		if ss.Expired(now, ix.window) {
			expired = append(expired, ss.ID)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Store(err)
	}

	return ix.delete(ctx, expired), nil
}

// Run sweeps every SweepInterval until ctx is done.
func (ix *Index) Run(ctx context.Context) error {
	t := ix.newTicker(ix.sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			n, err := ix.Sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "discovery: sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "discovery: pruned expired sessions", "count", n)
			}
		}
	}
}

func (ix *Index) delete(ctx context.Context, ids []string) int {
	var n int
	for _, id := range ids {
		if err := ix.store.Delete(ctx, id); err != nil {
			slog.WarnContext(ctx, "discovery: prune failed", "session", id, "error", err)
			continue
		}
		n++
	}
	return n
}

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }
