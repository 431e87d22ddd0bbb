package telemetry_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutaician/p2p-coin-flip/internal/telemetry"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	l, err := telemetry.NewLogger(&buf, "warn", "json")
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept", "session", "ABCD1234")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "ABCD1234", rec["session"])
}

func TestNewLogger_Invalid(t *testing.T) {
	var buf bytes.Buffer

	_, err := telemetry.NewLogger(&buf, "loud", "text")
	assert.Error(t, err)

	_, err = telemetry.NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}
