package participant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mutaician/p2p-coin-flip/internal/discovery"
	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/errors"
	"github.com/mutaician/p2p-coin-flip/internal/ledger"
	"github.com/mutaician/p2p-coin-flip/internal/session"
)

type Config struct {
	Session   *session.Service
	Store     *session.Store
	Discovery *discovery.Index
	Ledger    *ledger.Service

	// OnUpdate receives every snapshot of the current session, this
	// participant's own writes included. Snapshots of a session being created
	// or joined are held back until that operation succeeds; only the newest is
	// forwarded then, and none if it fails. It runs on the delivery goroutine.
	OnUpdate func(domain.Session)

	// ID is the participant id recorded on the seats it takes; generated when
	// empty.
	ID    string
	NewID func() (string, error)
}

// Participant is one local player. It occupies at most one session at a time
// and drives its view of that session from the store subscription.
//
// Lifecycle calls are serialized; listings are not.
type Participant struct {
	id        string
	svc       *session.Service
	store     *session.Store
	discovery *discovery.Index
	ledger    *ledger.Service
	onUpdate  func(domain.Session)
	newID     func() (string, error)

	op sync.Mutex
	// deliver orders OnUpdate calls between the subscription and enter.
	deliver sync.Mutex

	mu      sync.Mutex
	cursor  Cursor
	last    *domain.Session
	pending string
	held    []domain.Session
}

func New(c Config) (*Participant, error) {
	p := &Participant{
		id:        c.ID,
		svc:       c.Session,
		store:     c.Store,
		discovery: c.Discovery,
		ledger:    c.Ledger,
		onUpdate:  c.OnUpdate,
		newID:     c.NewID,
	}

	if p.id == "" {
		u, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("participant: generate id: %w", err)
		}
		p.id = u.String()
	}
	if p.newID == nil {
		p.newID = session.NewID
	}

	return p, nil
}

func (p *Participant) ID() string {
	return p.id
}

// CreateSession opens a session with this participant as player 1 and makes
// it current.
func (p *Participant) CreateSession(ctx context.Context, name string, bet int64, choice domain.Choice) (*domain.Session, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	if err := ValidateBet(bet); err != nil {
		return nil, err
	}
	if !choice.Valid() {
		return nil, errors.Validation("choice must be heads or tails: choice=%q", choice)
	}

	p.op.Lock()
	defer p.op.Unlock()

	id, err := p.newID()
	if err != nil {
		return nil, errors.Internal(err)
	}

	if err := p.watch(ctx, id); err != nil {
		return nil, err
	}

	ss, err := p.svc.CreateSession(ctx, session.CreateSessionRequest{
		SessionID:     id,
		Name:          name,
		Bet:           bet,
		Choice:        choice,
		ParticipantID: p.id,
	})
	if err != nil {
		p.unwatch(id)
		return nil, err
	}

	p.enter(*ss, domain.RolePlayer1)
	slog.InfoContext(ctx, "participant: created session", "session", ss.ID, "bet", ss.Player1.Bet, "choice", ss.Player1.Choice)

	return ss, nil
}

// JoinSession takes the player 2 seat of id and makes it current.
func (p *Participant) JoinSession(ctx context.Context, id, name string) (*domain.Session, error) {
	id, err := ValidateSessionID(id)
	if err != nil {
		return nil, err
	}
	name, err = ValidateName(name)
	if err != nil {
		return nil, err
	}

	p.op.Lock()
	defer p.op.Unlock()

	if err := p.watch(ctx, id); err != nil {
		return nil, err
	}

	ss, err := p.svc.JoinSession(ctx, session.JoinSessionRequest{
		SessionID:     id,
		Name:          name,
		ParticipantID: p.id,
	})
	if err != nil {
		p.unwatch(id)
		return nil, err
	}

	p.enter(*ss, domain.RolePlayer2)
	slog.InfoContext(ctx, "participant: joined session", "session", ss.ID, "host", ss.Player1.Name)

	return ss, nil
}

// StartFlip flips the current session. Either player may call it.
func (p *Participant) StartFlip(ctx context.Context) (*domain.Session, error) {
	p.op.Lock()
	defer p.op.Unlock()

	cur, err := p.requireCurrent()
	if err != nil {
		return nil, err
	}

	ss, err := p.svc.StartFlip(ctx, session.StartFlipRequest{SessionID: cur.SessionID})
	if err != nil {
		return nil, err
	}

	p.advance(*ss)
	return ss, nil
}

// CancelSession withdraws the current session and clears the cursor. On
// failure the cursor is kept.
func (p *Participant) CancelSession(ctx context.Context) (*domain.Session, error) {
	p.op.Lock()
	defer p.op.Unlock()

	cur, err := p.requireCurrent()
	if err != nil {
		return nil, err
	}

	ss, err := p.svc.CancelSession(ctx, session.CancelSessionRequest{SessionID: cur.SessionID})
	if err != nil {
		return nil, err
	}

	p.leave()
	return ss, nil
}

// Reset forgets the current session without touching the shared record.
func (p *Participant) Reset() {
	p.op.Lock()
	defer p.op.Unlock()

	p.leave()
}

// Current returns the cursor and the newest snapshot seen for it. The snapshot
// is nil when there is no current session.
func (p *Participant) Current() (Cursor, *domain.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil {
		return p.cursor, nil
	}

	ss := *p.last
	return p.cursor, &ss
}

func (p *Participant) ListOpenSessions(ctx context.Context) ([]domain.OpenSession, error) {
	return p.discovery.ListOpen(ctx)
}

func (p *Participant) RecentWinners(ctx context.Context, limit int) ([]domain.WinnerEntry, error) {
	return p.ledger.Recent(ctx, ledger.RecentRequest{Limit: limit})
}

// Close drops every subscription this participant holds.
func (p *Participant) Close() {
	p.op.Lock()
	defer p.op.Unlock()

	p.mu.Lock()
	p.cursor = Cursor{}
	p.last = nil
	p.pending = ""
	p.held = nil
	p.mu.Unlock()

	p.store.Close()
}

func (p *Participant) requireCurrent() (Cursor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.cursor.Active() {
		return Cursor{}, errors.Wrap(errors.ErrNoCurrentSession, "no current session")
	}
	return p.cursor, nil
}

// watch subscribes before the write so this participant's own write reaches
// OnUpdate through the subscription like any other.
func (p *Participant) watch(ctx context.Context, id string) error {
	p.mu.Lock()
	p.pending = id
	p.held = nil
	p.mu.Unlock()

	if err := p.store.Subscribe(ctx, id, p.observe); err != nil {
		p.unwatch(id)
		return errors.Store(err)
	}
	return nil
}

// unwatch drops the snapshots held for a failed operation and its
// subscription, unless it is the current session.
func (p *Participant) unwatch(id string) {
	p.mu.Lock()
	current := p.cursor.SessionID == id
	if p.pending == id {
		p.pending = ""
		p.held = nil
	}
	p.mu.Unlock()

	if !current {
		p.store.Unsubscribe(id)
	}
}

// enter makes ss current. The newest snapshot held while the operation was in
// flight is forwarded; older ones may predate the write that made ss.
func (p *Participant) enter(ss domain.Session, role domain.Role) {
	p.deliver.Lock()

	p.mu.Lock()
	prev := p.cursor.SessionID
	p.cursor = Cursor{SessionID: ss.ID, Role: role}

	var forward *domain.Session
	if p.pending == ss.ID && len(p.held) > 0 {
		if h := p.held[len(p.held)-1]; !regresses(&ss, h) {
			forward = &h
		}
	}
	p.pending = ""
	p.held = nil

	last := &ss
	if prev == ss.ID && regresses(p.last, ss) {
		last = p.last
	}
	if forward != nil && !regresses(last, *forward) {
		last = forward
	}
	p.last = last
	p.mu.Unlock()

	if forward != nil && p.onUpdate != nil {
		p.onUpdate(*forward)
	}
	p.deliver.Unlock()

	if prev != "" && prev != ss.ID {
		p.store.Unsubscribe(prev)
	}
}

func (p *Participant) leave() {
	p.mu.Lock()
	id := p.cursor.SessionID
	p.cursor = Cursor{}
	p.last = nil
	p.pending = ""
	p.held = nil
	p.mu.Unlock()

	if id != "" {
		p.store.Unsubscribe(id)
	}
}

// advance records ss as the newest snapshot of the current session and
// reports whether to forward it. Stale snapshots and other sessions are
// dropped; snapshots of the pending session are held for enter.
func (p *Participant) advance(ss domain.Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case ss.ID != "" && ss.ID == p.cursor.SessionID:
		if regresses(p.last, ss) {
			return false
		}
		p.last = &ss
		return true
	case ss.ID != "" && ss.ID == p.pending:
		p.held = append(p.held, ss)
		return false
	default:
		return false
	}
}

func (p *Participant) observe(ss domain.Session) {
	p.deliver.Lock()
	defer p.deliver.Unlock()

	if !p.advance(ss) {
		return
	}
	if p.onUpdate != nil {
		p.onUpdate(ss)
	}
}
