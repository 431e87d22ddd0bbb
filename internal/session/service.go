package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mutaician/p2p-coin-flip/internal/coin"
	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/errors"
	"github.com/mutaician/p2p-coin-flip/internal/event"
	"github.com/mutaician/p2p-coin-flip/internal/kv"
)

type Config struct {
	Store    *Store
	EventBus *event.Bus
	Coin     coin.Source

	// FlipDelay is the pause between the flipping and completed writes. It only
	// paces the counterpart's animation.
	FlipDelay time.Duration
	// JoinSettle is how long a joiner waits before re-reading the session to
	// check that its join was not overwritten.
	JoinSettle time.Duration

	Now   func() time.Time
	NewID func() (string, error)
}

// Service runs the session lifecycle:
//
//	waiting -> ready -> flipping -> completed
//	waiting -> cancelled
//
// Every transition reads the current record, checks its guard and writes the
// complete new record back.
type Service struct {
	store *Store
	eb    *event.Bus
	coin  coin.Source

	flipDelay  time.Duration
	joinSettle time.Duration

	now   func() time.Time
	newID func() (string, error)
}

func NewService(c Config) *Service {
	s := &Service{
		store:      c.Store,
		eb:         c.EventBus,
		coin:       c.Coin,
		flipDelay:  c.FlipDelay,
		joinSettle: c.JoinSettle,
		now:        c.Now,
		newID:      c.NewID,
	}

	if s.coin == nil {
		s.coin = coin.Crypto{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = NewID
	}

	return s
}

// CreateSessionRequest represents a request to open a new wager.
type CreateSessionRequest struct {
	// SessionID lets the creator subscribe before the first write; generated when empty.
	SessionID string
	Name      string
	Bet       int64
	Choice    domain.Choice
	// ParticipantID identifies the creator; generated when empty.
	ParticipantID string
}

// CreateSession writes a new waiting session with the creator as player 1.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	if req.Name == "" {
		return nil, errors.Validation("player name is required")
	}
	if req.Bet < 1 {
		return nil, errors.Validation("bet must be at least 1: bet=%d", req.Bet)
	}
	if !req.Choice.Valid() {
		return nil, errors.Validation("choice must be heads or tails: choice=%q", req.Choice)
	}

	id := req.SessionID
	if id == "" {
		var err error
		if id, err = s.newID(); err != nil {
			return nil, errors.Internal(err)
		}
	}

	pid, err := participantID(req.ParticipantID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	ss := domain.Session{
		ID:        id,
		Status:    domain.StatusWaiting,
		CreatedAt: s.clock(),
		Player1: domain.Player{
			Name:          req.Name,
			Bet:           req.Bet,
			Choice:        req.Choice,
			ParticipantID: pid,
		},
	}

	if err := s.store.Create(ctx, ss); err != nil {
		return nil, errors.Store(err)
	}

	s.publish(ctx, domain.EventSessionCreated{Session: ss})
	return &ss, nil
}

type JoinSessionRequest struct {
	SessionID string
	Name      string
	// ParticipantID identifies the joiner; generated when empty.
	ParticipantID string
}

// JoinSession takes the player 2 seat. The joiner never picks a side or a
// stake: it gets the opposite of player 1's choice and the same bet.
//
// Without compare-and-swap two joiners can both pass the guard. After writing,
// the joiner re-reads the record and fails with a join conflict if another
// participant is recorded as player 2. This narrows the race but cannot close
// it.
//
// Once the seat is written the check runs to the end even if ctx ends, so the
// caller never gets a bare context error for a seat it holds.
func (s *Service) JoinSession(ctx context.Context, req JoinSessionRequest) (*domain.Session, error) {
	if req.Name == "" {
		return nil, errors.Validation("player name is required")
	}

	ss, err := s.load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if ss.Player2 != nil {
		return nil, errors.Wrap(errors.ErrSessionFull, "session is already full: id=%s", ss.ID)
	}
	if ss.Status != domain.StatusWaiting {
		return nil, errors.Wrap(errors.ErrSessionNotJoinable, "session is not available to join: id=%s status=%s", ss.ID, ss.Status)
	}

	pid, err := participantID(req.ParticipantID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	ss.Player2 = &domain.Player{
		Name:          req.Name,
		Bet:           ss.Player1.Bet,
		Choice:        ss.Player1.Choice.Opposite(),
		ParticipantID: pid,
	}
	ss.Status = domain.StatusReady

	if err := s.store.Write(ctx, *ss); err != nil {
		return nil, errors.Store(err)
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.verifyJoin(ctx, ss.ID, pid); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventSessionJoined{Session: *ss})
	return ss, nil
}

// verifyJoin fails only when another participant holds player 2. A failed
// re-read keeps the join that was written.
func (s *Service) verifyJoin(ctx context.Context, id, pid string) error {
	_ = sleep(ctx, s.joinSettle)

	cur, err := s.load(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "session: join not verified", "session", id, "error", err)
		return nil
	}

	if cur.Player2 == nil || cur.Player2.ParticipantID != pid {
		slog.WarnContext(ctx, "session: join overwritten by a concurrent write", "session", id, "status", cur.Status)
		return errors.Wrap(errors.ErrJoinConflict, "another write replaced this join: id=%s", id)
	}

	return nil
}

type StartFlipRequest struct {
	SessionID string
}

// StartFlip writes the flipping status, waits FlipDelay, draws the outcome and
// writes the completed record with every derived field set.
//
// Whoever runs StartFlip alone decides the result; the counterpart trusts it.
// Once flipping is written the flip runs to completion even if ctx ends, so a
// session is not left half flipped by a caller going away.
func (s *Service) StartFlip(ctx context.Context, req StartFlipRequest) (*domain.Session, error) {
	ss, err := s.load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if ss.Status != domain.StatusReady || ss.Player2 == nil {
		return nil, errors.Wrap(errors.ErrSessionNotReady, "session is not ready for flip: id=%s status=%s", ss.ID, ss.Status)
	}

	ss.Status = domain.StatusFlipping
	if err := s.store.Write(ctx, *ss); err != nil {
		return nil, errors.Store(err)
	}
	s.publish(ctx, domain.EventSessionFlipping{Session: *ss})

	ctx = context.WithoutCancel(ctx)
	_ = sleep(ctx, s.flipDelay)

	result, err := s.coin.Flip()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("flip: %w", err))
	}

	// The counterpart may have flipped concurrently; a completed record is final.
	if cur, err := s.load(ctx, ss.ID); err == nil && cur.Status == domain.StatusCompleted {
		return cur, nil
	}

	done := complete(*ss, result, s.clock())
	if err := s.store.Write(ctx, done); err != nil {
		return nil, errors.Store(err)
	}

	s.publish(ctx, domain.EventSessionCompleted{Session: done})
	return &done, nil
}

func complete(ss domain.Session, result domain.Choice, at time.Time) domain.Session {
	ss.Status = domain.StatusCompleted
	ss.Result = result
	ss.Winner = domain.DecideWinner(ss.Player1.Choice, result)

	w := ss.Player(ss.Winner)
	ss.WinnerName = w.Name
	ss.WinnerChoice = w.Choice
	ss.TotalPot = ss.Player1.Bet + ss.Player2.Bet
	ss.CompletedAt = at

	return ss
}

type CancelSessionRequest struct {
	SessionID string
}

// CancelSession withdraws a session nobody has joined yet.
func (s *Service) CancelSession(ctx context.Context, req CancelSessionRequest) (*domain.Session, error) {
	ss, err := s.load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if ss.Status != domain.StatusWaiting {
		return nil, errors.Wrap(errors.ErrSessionNotCancellable, "only waiting sessions can be cancelled: id=%s status=%s", ss.ID, ss.Status)
	}

	ss.Status = domain.StatusCancelled
	if err := s.store.Write(ctx, *ss); err != nil {
		return nil, errors.Store(err)
	}

	s.publish(ctx, domain.EventSessionCancelled{Session: *ss})
	return ss, nil
}

type GetSessionRequest struct {
	SessionID string
}

func (s *Service) GetSession(ctx context.Context, req GetSessionRequest) (*domain.Session, error) {
	return s.load(ctx, req.SessionID)
}

func (s *Service) load(ctx context.Context, id string) (*domain.Session, error) {
	ss, err := s.store.Read(ctx, id)
	switch {
	case stderrors.Is(err, kv.ErrNotFound):
		return nil, errors.Wrap(errors.ErrSessionNotFound, "session not found: id=%s", id)
	case stderrors.Is(err, ErrMalformed):
		return nil, errors.Data(err)
	case err != nil:
		return nil, errors.Store(err)
	}

	return ss, nil
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.eb == nil {
		return
	}
	s.eb.Publish(ctx, e)
}

// clock truncates to the millisecond precision the record stores.
func (s *Service) clock() time.Time {
	return time.UnixMilli(s.now().UnixMilli())
}

func participantID(id string) (string, error) {
	if id != "" {
		return id, nil
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate participant ID: %w", err)
	}
	return u.String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
