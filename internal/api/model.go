package api

import (
	"time"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/participant"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Player struct {
		Name   string `json:"name"`
		Bet    int64  `json:"bet"`
		Choice string `json:"choice"`
		ID     string `json:"participant_id"`
	}

	Session struct {
		ID           string     `json:"id"`
		Status       string     `json:"status"`
		CreatedAt    time.Time  `json:"created_at"`
		Player1      Player     `json:"player1"`
		Player2      *Player    `json:"player2"`
		Result       string     `json:"result,omitempty"`
		Winner       int        `json:"winner,omitempty"`
		WinnerName   string     `json:"winner_name,omitempty"`
		WinnerChoice string     `json:"winner_choice,omitempty"`
		TotalPot     int64      `json:"total_pot,omitempty"`
		CompletedAt  *time.Time `json:"completed_at,omitempty"`
	}

	OpenSession struct {
		ID        string    `json:"id"`
		HostName  string    `json:"host_name"`
		Bet       int64     `json:"bet"`
		CreatedAt time.Time `json:"created_at"`
	}

	Winner struct {
		SessionID    string    `json:"session_id"`
		WinnerName   string    `json:"winner_name"`
		TotalPot     int64     `json:"total_pot"`
		WinnerChoice string    `json:"winner_choice"`
		Result       string    `json:"result"`
		CompletedAt  time.Time `json:"completed_at"`
	}

	Current struct {
		SessionID string   `json:"session_id,omitempty"`
		Role      int      `json:"role,omitempty"`
		IsWinner  bool     `json:"is_winner"`
		Session   *Session `json:"session"`
	}
)

func newPlayer(p domain.Player) Player {
	return Player{
		Name:   p.Name,
		Bet:    p.Bet,
		Choice: string(p.Choice),
		ID:     p.ParticipantID,
	}
}

func newSession(ss domain.Session) Session {
	s := Session{
		ID:        ss.ID,
		Status:    string(ss.Status),
		CreatedAt: ss.CreatedAt,
		Player1:   newPlayer(ss.Player1),
	}

	if ss.Player2 != nil {
		p2 := newPlayer(*ss.Player2)
		s.Player2 = &p2
	}

	if ss.Status == domain.StatusCompleted {
		completedAt := ss.CompletedAt
		s.Result = string(ss.Result)
		s.Winner = int(ss.Winner)
		s.WinnerName = ss.WinnerName
		s.WinnerChoice = string(ss.WinnerChoice)
		s.TotalPot = ss.TotalPot
		s.CompletedAt = &completedAt
	}

	return s
}

func newOpenSessions(open []domain.OpenSession) []OpenSession {
	out := make([]OpenSession, 0, len(open))
	for _, o := range open {
		out = append(out, OpenSession{
			ID:        o.ID,
			HostName:  o.HostName,
			Bet:       o.Bet,
			CreatedAt: o.CreatedAt,
		})
	}
	return out
}

func newWinners(entries []domain.WinnerEntry) []Winner {
	out := make([]Winner, 0, len(entries))
	for _, e := range entries {
		out = append(out, Winner{
			SessionID:    e.SessionID,
			WinnerName:   e.WinnerName,
			TotalPot:     e.TotalPot,
			WinnerChoice: string(e.WinnerChoice),
			Result:       string(e.Result),
			CompletedAt:  e.CompletedAt,
		})
	}
	return out
}

func newCurrent(cur participant.Cursor, ss *domain.Session) Current {
	c := Current{
		SessionID: cur.SessionID,
		Role:      int(cur.Role),
	}

	if ss != nil {
		view := newSession(*ss)
		c.Session = &view
		c.IsWinner = cur.IsWinner(*ss)
	}

	return c
}
