package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/errors"
	"github.com/mutaician/p2p-coin-flip/internal/event"
)

const defaultHistoryLimit = 20

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Config struct {
	EventBus *event.Bus
	DB       DB
}

// Service keeps a durable copy of every session this node completed. The
// shared store forgets sessions once they expire; the archive does not.
type Service struct {
	db DB
}

func NewService(c Config) *Service {
	s := &Service{db: c.DB}

	if c.EventBus != nil {
		c.EventBus.Subscribe(func(ctx context.Context, e event.Event) error {
			return s.Record(ctx, e.(domain.EventSessionCompleted).Session)
		}, domain.EventNameSessionCompleted)
	}

	return s
}

func (s *Service) Migrate(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS completed_sessions (
	session_id    TEXT PRIMARY KEY,
	player1_name  TEXT NOT NULL,
	player1_id    TEXT NOT NULL,
	player2_name  TEXT NOT NULL,
	player2_id    TEXT NOT NULL,
	bet           NUMERIC NOT NULL,
	total_pot     NUMERIC NOT NULL,
	result        TEXT NOT NULL,
	winner        SMALLINT NOT NULL,
	winner_name   TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS completed_sessions_completed_at ON completed_sessions (completed_at DESC);`

	if _, err := s.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}

	return nil
}

// Record stores a completed session once; repeated calls are ignored.
func (s *Service) Record(ctx context.Context, ss domain.Session) error {
	if ss.Status != domain.StatusCompleted || ss.Player2 == nil {
		return errors.Validation("only completed sessions are archived: id=%s status=%s", ss.ID, ss.Status)
	}

	const stmt = `
INSERT INTO completed_sessions (
	session_id, player1_name, player1_id, player2_name, player2_id,
	bet, total_pot, result, winner, winner_name, created_at, completed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (session_id) DO NOTHING;`

	_, err := s.db.Exec(ctx, stmt,
		ss.ID,
		ss.Player1.Name,
		ss.Player1.ParticipantID,
		ss.Player2.Name,
		ss.Player2.ParticipantID,
		decimal.NewFromInt(ss.Player1.Bet),
		decimal.NewFromInt(ss.TotalPot),
		string(ss.Result),
		int16(ss.Winner),
		ss.WinnerName,
		ss.CreatedAt,
		ss.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("archive: record %s: %w", ss.ID, err)
	}

	return nil
}

type Entry struct {
	SessionID   string
	Player1     string
	Player2     string
	Bet         decimal.Decimal
	TotalPot    decimal.Decimal
	Result      domain.Choice
	WinnerName  string
	CompletedAt time.Time
}

type HistoryRequest struct {
	// Name filters to sessions the player took part in; empty lists all.
	Name  string
	Limit int
}

// History returns archived sessions, newest first.
func (s *Service) History(ctx context.Context, req HistoryRequest) ([]Entry, error) {
	const stmt = `
SELECT session_id, player1_name, player2_name, bet, total_pot, result, winner_name, completed_at
FROM completed_sessions
WHERE $1 = '' OR player1_name = $1 OR player2_name = $1
ORDER BY completed_at DESC
LIMIT $2;`

	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.db.Query(ctx, stmt, req.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Entry, error) {
		var (
			e      Entry
			result string
		)
		if err := r.Scan(&e.SessionID, &e.Player1, &e.Player2, &e.Bet, &e.TotalPot, &result, &e.WinnerName, &e.CompletedAt); err != nil {
			return Entry{}, err
		}
		e.Result = domain.Choice(result)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: history: %w", err)
	}

	return entries, nil
}
