package domain

import (
	"time"
)

// Choice is a side of the coin.
type Choice string

const (
	Heads Choice = "heads"
	Tails Choice = "tails"
)

func (c Choice) Valid() bool {
	return c == Heads || c == Tails
}

// Opposite returns the complementary side. An invalid choice stays invalid.
func (c Choice) Opposite() Choice {
	switch c {
	case Heads:
		return Tails
	case Tails:
		return Heads
	default:
		return c
	}
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusReady     Status = "ready"
	StatusFlipping  Status = "flipping"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusWaiting:  {StatusReady, StatusCancelled},
	StatusReady:    {StatusFlipping},
	StatusFlipping: {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusReady, StatusFlipping, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next directly follows s in the lifecycle.
func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Role identifies a participant within a session.
type Role int

const (
	RoleNone    Role = 0
	RolePlayer1 Role = 1
	RolePlayer2 Role = 2
)

// Player is one side of a wager.
type Player struct {
	Name          string
	Bet           int64
	Choice        Choice
	ParticipantID string
}

// Session represents a single coin-flip wager between two participants.
//
// Result, Winner, WinnerName, WinnerChoice, TotalPot and CompletedAt are zero
// until Status is StatusCompleted.
type Session struct {
	ID        string
	Status    Status
	CreatedAt time.Time

	Player1 Player
	Player2 *Player

	Result       Choice
	Winner       Role
	WinnerName   string
	WinnerChoice Choice
	TotalPot     int64
	CompletedAt  time.Time
}

// Player returns the player occupying role r, or nil.
func (s *Session) Player(r Role) *Player {
	switch r {
	case RolePlayer1:
		return &s.Player1
	case RolePlayer2:
		return s.Player2
	default:
		return nil
	}
}

// Open reports whether the session can still be joined.
func (s *Session) Open() bool {
	return s.Status == StatusWaiting && s.Player2 == nil
}

// Expired reports whether the session is older than window at now.
func (s *Session) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(s.CreatedAt) >= window
}

// DecideWinner returns the winning role for result given player 1's choice.
func DecideWinner(player1 Choice, result Choice) Role {
	if player1 == result {
		return RolePlayer1
	}
	return RolePlayer2
}

// OpenSession is a discovery listing entry.
type OpenSession struct {
	ID        string
	HostName  string
	Bet       int64
	CreatedAt time.Time
}

// WinnerEntry is an immutable record of a completed session.
type WinnerEntry struct {
	SessionID    string
	WinnerName   string
	TotalPot     int64
	WinnerChoice Choice
	Result       Choice
	CompletedAt  time.Time
}

// NewWinnerEntry snapshots a completed session.
func NewWinnerEntry(s Session) WinnerEntry {
	return WinnerEntry{
		SessionID:    s.ID,
		WinnerName:   s.WinnerName,
		TotalPot:     s.TotalPot,
		WinnerChoice: s.WinnerChoice,
		Result:       s.Result,
		CompletedAt:  s.CompletedAt,
	}
}
