package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/errors"
	"github.com/mutaician/p2p-coin-flip/internal/event"
	"github.com/mutaician/p2p-coin-flip/internal/kv"
)

const (
	DefaultNamespace     = "completed-games"
	DefaultLimit         = 10
	DefaultCollectWindow = 500 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	KV       kv.Store
	// Namespace must differ from the session namespace so expiry never prunes it.
	Namespace     string
	CollectWindow time.Duration
}

// Service is the append-only record of completed sessions.
type Service struct {
	kv            kv.Store
	namespace     string
	collectWindow time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		kv:            c.KV,
		namespace:     c.Namespace,
		collectWindow: c.CollectWindow,
	}

	if s.namespace == "" {
		s.namespace = DefaultNamespace
	}
	if s.collectWindow <= 0 {
		s.collectWindow = DefaultCollectWindow
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(func(ctx context.Context, e event.Event) error {
			return s.Append(ctx, domain.NewWinnerEntry(e.(domain.EventSessionCompleted).Session))
		}, domain.EventNameSessionCompleted)
	}

	return s
}

// Append writes one entry per session. A session completes at most once, so no
// deduplication is done.
func (s *Service) Append(ctx context.Context, e domain.WinnerEntry) error {
	if e.SessionID == "" {
		return errors.Validation("winner entry without session id")
	}

	if err := s.kv.Put(ctx, s.entryKey(e.SessionID), encodeEntry(e)); err != nil {
		return fmt.Errorf("ledger: append %s: %w", e.SessionID, err)
	}

	return nil
}

type RecentRequest struct {
	Limit int
}

// Recent returns the latest winners, newest first.
func (s *Service) Recent(ctx context.Context, req RecentRequest) ([]domain.WinnerEntry, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.collectWindow)
	defer cancel()

	var entries []domain.WinnerEntry
	err := s.kv.Scan(ctx, s.namespace+":", func(_ string, r kv.Record) error {
		if e, ok := decodeEntry(r); ok {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Store(err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CompletedAt.After(entries[j].CompletedAt)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (s *Service) entryKey(sessionID string) string {
	return kv.Key(s.namespace, sessionID)
}

func encodeEntry(e domain.WinnerEntry) kv.Record {
	return kv.Record{
		"sessionId":    e.SessionID,
		"winnerName":   e.WinnerName,
		"totalPot":     strconv.FormatInt(e.TotalPot, 10),
		"winnerChoice": string(e.WinnerChoice),
		"result":       string(e.Result),
		"completedAt":  strconv.FormatInt(e.CompletedAt.UnixMilli(), 10),
	}
}

func decodeEntry(r kv.Record) (domain.WinnerEntry, bool) {
	pot, err := strconv.ParseInt(r["totalPot"], 10, 64)
	if err != nil {
		return domain.WinnerEntry{}, false
	}

	ms, err := strconv.ParseInt(r["completedAt"], 10, 64)
	if err != nil {
		return domain.WinnerEntry{}, false
	}

	e := domain.WinnerEntry{
		SessionID:    r["sessionId"],
		WinnerName:   r["winnerName"],
		TotalPot:     pot,
		WinnerChoice: domain.Choice(r["winnerChoice"]),
		Result:       domain.Choice(r["result"]),
		CompletedAt:  time.UnixMilli(ms),
	}

	if e.WinnerName == "" || !e.Result.Valid() {
		return domain.WinnerEntry{}, false
	}

	return e, true
}
