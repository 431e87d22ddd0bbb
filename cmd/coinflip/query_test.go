package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutaician/p2p-coin-flip/internal/archive"
	"github.com/mutaician/p2p-coin-flip/internal/domain"
)

func init() {
	pterm.DisableStyling()
}

var now = time.UnixMilli(1_750_000_000_000)

func TestRenderOpenSessions(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderOpenSessions(&buf, []domain.OpenSession{
		{ID: "ABCD1234", HostName: "Alice", Bet: 50, CreatedAt: now.Add(-90 * time.Second)},
	}, now))

	out := buf.String()
	assert.Contains(t, out, "ABCD1234")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "1m30s")

	buf.Reset()
	require.NoError(t, renderOpenSessions(&buf, nil, now))
	assert.Equal(t, "no open sessions\n", buf.String())
}

func TestRenderWinners(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderWinners(&buf, []domain.WinnerEntry{
		{SessionID: "ABCD1234", WinnerName: "Bob", TotalPot: 100, WinnerChoice: domain.Tails, Result: domain.Tails, CompletedAt: now},
	}))

	out := buf.String()
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "100")
	assert.Contains(t, out, "tails")
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderHistory(&buf, []archive.Entry{
		{
			SessionID:   "ABCD1234",
			Player1:     "Alice",
			Player2:     "Bob",
			Bet:         decimal.NewFromInt(50),
			TotalPot:    decimal.NewFromInt(100),
			Result:      domain.Heads,
			WinnerName:  "Alice",
			CompletedAt: now,
		},
	}))

	out := buf.String()
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "100")
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "sessions", "winners", "sweep", "history"}, names)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}
