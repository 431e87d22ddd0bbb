package participant

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/errors"
	"github.com/mutaician/p2p-coin-flip/internal/session"
)

const (
	MinNameLength = 2
	MaxNameLength = 20

	MinBet = 1
	MaxBet = 1000
)

// ValidateName returns the trimmed name when its length is within bounds.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)

	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return "", errors.Validation("name must be %d to %d characters: length=%d", MinNameLength, MaxNameLength, n)
	}

	return name, nil
}

func ValidateBet(bet int64) error {
	if bet < MinBet || bet > MaxBet {
		return errors.Validation("bet must be between %d and %d: bet=%d", MinBet, MaxBet, bet)
	}

	return nil
}

// ParseBet reads a whole-number bet from user input.
func ParseBet(raw string) (int64, error) {
	bet, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, errors.Validation("bet must be a whole number: bet=%q", raw)
	}

	if err := ValidateBet(bet); err != nil {
		return 0, err
	}

	return bet, nil
}

// ValidateSessionID normalizes id to the uppercase form sessions are created
// with.
func ValidateSessionID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if len(id) != session.IDLength {
		return "", errors.Validation("session id must be exactly %d characters: id=%q", session.IDLength, id)
	}

	return id, nil
}

func ParseChoice(raw string) (domain.Choice, error) {
	c := domain.Choice(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", errors.Validation("choice must be heads or tails: choice=%q", raw)
	}

	return c, nil
}
