package participant_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/errors"
	"github.com/mutaician/p2p-coin-flip/internal/participant"
)

func TestValidateName(t *testing.T) {
	tests := map[string]struct {
		in    string
		want  string
		valid bool
	}{
		"length 1 is rejected":         {in: "A"},
		"length 2 is accepted":         {in: "Al", want: "Al", valid: true},
		"length 20 is accepted":        {in: strings.Repeat("a", 20), want: strings.Repeat("a", 20), valid: true},
		"length 21 is rejected":        {in: strings.Repeat("a", 21)},
		"surrounding space is trimmed": {in: "  Bob  ", want: "Bob", valid: true},
		"blank is rejected":            {in: "    "},
		"multibyte counts runes":       {in: "Zoë", want: "Zoë", valid: true},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := participant.ValidateName(tt.in)
			if !tt.valid {
				require.Error(t, err)
				assert.Equal(t, errors.KindValidation, errors.Convert(err).Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateBet(t *testing.T) {
	tests := map[int64]bool{
		0:    false,
		1:    true,
		500:  true,
		1000: true,
		1001: false,
		-5:   false,
	}

	for bet, valid := range tests {
		err := participant.ValidateBet(bet)
		if valid {
			assert.NoError(t, err, "bet=%d", bet)
		} else {
			assert.Error(t, err, "bet=%d", bet)
		}
	}
}

func TestParseBet(t *testing.T) {
	bet, err := participant.ParseBet(" 250 ")
	require.NoError(t, err)
	assert.Equal(t, int64(250), bet)

	for _, raw := range []string{"", "ten", "2.5", "0", "1001"} {
		_, err := participant.ParseBet(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestValidateSessionID(t *testing.T) {
	id, err := participant.ValidateSessionID(" abcd1234 ")
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", id)

	for _, raw := range []string{"ABCD123", "ABCD12345", ""} {
		_, err := participant.ValidateSessionID(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestParseChoice(t *testing.T) {
	c, err := participant.ParseChoice("HEADS")
	require.NoError(t, err)
	assert.Equal(t, domain.Heads, c)

	_, err = participant.ParseChoice("edge")
	assert.Error(t, err)
}
