package bridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilcell/vigil/internal/bus"
)

func TestBuildMessage(t *testing.T) {
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	msg, err := BuildMessage(bus.CLIOut, "[WHALE] BUY 2.5 BTC", at)
	require.NoError(t, err)

	assert.Equal(t, []byte(bus.CLIOut), msg.Key)
	assert.Equal(t, at, msg.Time)

	var rec AlertRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec))
	assert.Equal(t, bus.CLIOut, rec.Channel)
	assert.Equal(t, "[WHALE] BUY 2.5 BTC", rec.Content)
	assert.True(t, rec.Time.Equal(at))
}

func TestBuildMessageSameChannelSameKey(t *testing.T) {
	a, err := BuildMessage(bus.CLIOut, "first", time.Now())
	require.NoError(t, err)
	b, err := BuildMessage(bus.CLIOut, "second", time.Now())
	require.NoError(t, err)

	assert.Equal(t, a.Key, b.Key)
}
