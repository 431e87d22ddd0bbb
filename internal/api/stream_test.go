package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutaician/p2p-coin-flip/internal/api"
)

func TestStream_ReplayAfter(t *testing.T) {
	s := api.NewStream(3)

	for _, name := range []string{"a", "b", "c", "d"} {
		s.Append(name, nil)
	}

	events := func(evs []api.StreamEvent) []string {
		var out []string
		for _, ev := range evs {
			out = append(out, ev.Event)
		}
		return out
	}

	assert.Equal(t, []string{"b", "c", "d"}, events(s.ReplayAfter("")))
	assert.Equal(t, []string{"d"}, events(s.ReplayAfter("3")))
	assert.Empty(t, s.ReplayAfter("4"))
	assert.Equal(t, []string{"b", "c", "d"}, events(s.ReplayAfter("junk")))
}

func TestStream_Subscribe(t *testing.T) {
	s := api.NewStream(0)

	ch := s.Subscribe()
	ev := s.Append("session.ready", "data")

	got := <-ch
	assert.Equal(t, ev, got)
	assert.Equal(t, "1", got.ID)

	s.Close()
	_, ok := <-ch
	require.False(t, ok, "close should end every subscriber")

	closed := s.Subscribe()
	_, ok = <-closed
	assert.False(t, ok)

	// Unsubscribing after close is a no-op.
	s.Unsubscribe(ch)
}
