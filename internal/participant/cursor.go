package participant

import (
	"github.com/mutaician/p2p-coin-flip/internal/domain"
)

// Cursor is the participant's private view of which session it occupies.
// It is never replicated.
type Cursor struct {
	SessionID string
	Role      domain.Role
}

func (c Cursor) Active() bool {
	return c.SessionID != "" && c.Role != domain.RoleNone
}

// IsWinner reports whether ss is the cursor's session, completed, and won by
// the cursor's role.
func (c Cursor) IsWinner(ss domain.Session) bool {
	return c.Active() &&
		ss.ID == c.SessionID &&
		ss.Status == domain.StatusCompleted &&
		ss.Winner == c.Role
}

// Me returns the cursor's own player in ss.
func (c Cursor) Me(ss *domain.Session) *domain.Player {
	return ss.Player(c.Role)
}

// Opponent returns the other player in ss, or nil while the seat is empty.
func (c Cursor) Opponent(ss *domain.Session) *domain.Player {
	switch c.Role {
	case domain.RolePlayer1:
		return ss.Player2
	case domain.RolePlayer2:
		return &ss.Player1
	default:
		return nil
	}
}

var stage = map[domain.Status]int{
	domain.StatusWaiting:   0,
	domain.StatusReady:     1,
	domain.StatusCancelled: 1,
	domain.StatusFlipping:  2,
	domain.StatusCompleted: 3,
}

// regresses reports whether next moves backwards in the lifecycle from cur.
// Subscribers may see stale snapshots after newer ones.
func regresses(cur *domain.Session, next domain.Session) bool {
	if cur == nil || cur.ID != next.ID {
		return false
	}
	return stage[next.Status] < stage[cur.Status]
}
