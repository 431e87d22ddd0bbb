package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/kv"
)

// Flat record fields. Every write carries all of them; null is "".
const (
	fieldID            = "id"
	fieldStatus        = "status"
	fieldCreatedAt     = "createdAt"
	fieldPlayer1Name   = "player1_name"
	fieldPlayer1Bet    = "player1_bet"
	fieldPlayer1Choice = "player1_choice"
	fieldPlayer1ID     = "player1_id"
	fieldPlayer2Name   = "player2_name"
	fieldPlayer2Bet    = "player2_bet"
	fieldPlayer2Choice = "player2_choice"
	fieldPlayer2ID     = "player2_id"
	fieldResult        = "result"
	fieldWinner        = "winner"
	fieldWinnerName    = "winnerName"
	fieldWinnerChoice  = "winnerChoice"
	fieldTotalPot      = "totalPot"
	fieldCompletedAt   = "completedAt"
)

var ErrMalformed = errors.New("session: malformed record")

func encode(s domain.Session) kv.Record {
	r := kv.Record{
		fieldID:            s.ID,
		fieldStatus:        string(s.Status),
		fieldCreatedAt:     formatMillis(s.CreatedAt),
		fieldPlayer1Name:   s.Player1.Name,
		fieldPlayer1Bet:    strconv.FormatInt(s.Player1.Bet, 10),
		fieldPlayer1Choice: string(s.Player1.Choice),
		fieldPlayer1ID:     s.Player1.ParticipantID,
		fieldPlayer2Name:   "",
		fieldPlayer2Bet:    "",
		fieldPlayer2Choice: "",
		fieldPlayer2ID:     "",
		fieldResult:        string(s.Result),
		fieldWinner:        "",
		fieldWinnerName:    s.WinnerName,
		fieldWinnerChoice:  string(s.WinnerChoice),
		fieldTotalPot:      "",
		fieldCompletedAt:   formatMillis(s.CompletedAt),
	}

	if p := s.Player2; p != nil {
		r[fieldPlayer2Name] = p.Name
		r[fieldPlayer2Bet] = strconv.FormatInt(p.Bet, 10)
		r[fieldPlayer2Choice] = string(p.Choice)
		r[fieldPlayer2ID] = p.ParticipantID
	}

	if s.Winner != domain.RoleNone {
		r[fieldWinner] = strconv.Itoa(int(s.Winner))
	}

	if s.Status == domain.StatusCompleted {
		r[fieldTotalPot] = strconv.FormatInt(s.TotalPot, 10)
	}

	return r
}

// decode rejects records a reader cannot safely act on. Replication may hand
// out partial or foreign values, so nothing here is trusted.
func decode(r kv.Record) (domain.Session, error) {
	var (
		s   domain.Session
		err error
	)

	s.ID = r[fieldID]
	if s.ID == "" {
		return s, fmt.Errorf("%w: missing id", ErrMalformed)
	}

	s.Status = domain.Status(r[fieldStatus])
	if !s.Status.Valid() {
		return s, fmt.Errorf("%w: id=%s: status %q", ErrMalformed, s.ID, r[fieldStatus])
	}

	if s.CreatedAt, err = parseMillis(r[fieldCreatedAt]); err != nil || s.CreatedAt.IsZero() {
		return s, fmt.Errorf("%w: id=%s: createdAt %q", ErrMalformed, s.ID, r[fieldCreatedAt])
	}

	if s.Player1, err = decodePlayer(r, fieldPlayer1Name, fieldPlayer1Bet, fieldPlayer1Choice, fieldPlayer1ID); err != nil {
		return s, fmt.Errorf("%w: id=%s: player1: %v", ErrMalformed, s.ID, err)
	}

	if r[fieldPlayer2Name] != "" {
		p, err := decodePlayer(r, fieldPlayer2Name, fieldPlayer2Bet, fieldPlayer2Choice, fieldPlayer2ID)
		if err != nil {
			return s, fmt.Errorf("%w: id=%s: player2: %v", ErrMalformed, s.ID, err)
		}
		s.Player2 = &p
	}

	if s.Status != domain.StatusCompleted {
		return s, nil
	}

	s.Result = domain.Choice(r[fieldResult])
	if !s.Result.Valid() {
		return s, fmt.Errorf("%w: id=%s: result %q", ErrMalformed, s.ID, r[fieldResult])
	}

	switch r[fieldWinner] {
	case "1":
		s.Winner = domain.RolePlayer1
	case "2":
		s.Winner = domain.RolePlayer2
	default:
		return s, fmt.Errorf("%w: id=%s: winner %q", ErrMalformed, s.ID, r[fieldWinner])
	}

	s.WinnerName = r[fieldWinnerName]
	s.WinnerChoice = domain.Choice(r[fieldWinnerChoice])
	if s.TotalPot, err = strconv.ParseInt(r[fieldTotalPot], 10, 64); err != nil {
		return s, fmt.Errorf("%w: id=%s: totalPot %q", ErrMalformed, s.ID, r[fieldTotalPot])
	}
	if s.CompletedAt, err = parseMillis(r[fieldCompletedAt]); err != nil {
		return s, fmt.Errorf("%w: id=%s: completedAt %q", ErrMalformed, s.ID, r[fieldCompletedAt])
	}

	return s, nil
}

func decodePlayer(r kv.Record, name, bet, choice, id string) (domain.Player, error) {
	p := domain.Player{
		Name:          r[name],
		Choice:        domain.Choice(r[choice]),
		ParticipantID: r[id],
	}

	if p.Name == "" {
		return p, errors.New("missing name")
	}
	if !p.Choice.Valid() {
		return p, fmt.Errorf("choice %q", r[choice])
	}

	b, err := strconv.ParseInt(r[bet], 10, 64)
	if err != nil || b < 1 {
		return p, fmt.Errorf("bet %q", r[bet])
	}
	p.Bet = b

	return p, nil
}

func formatMillis(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}

	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
