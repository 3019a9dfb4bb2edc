package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vigil.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistoryOrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 15; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, s.SaveTurn("sess", role, fmt.Sprintf("turn-%d", i)))
	}
	require.NoError(t, s.SaveTurn("other", "user", "unrelated"))

	turns, err := s.History("sess", 10)
	require.NoError(t, err)
	require.Len(t, turns, 10)

	// Last 10 turns, oldest first.
	assert.Equal(t, "turn-5", turns[0].Content)
	assert.Equal(t, "turn-14", turns[9].Content)
	for _, turn := range turns {
		assert.Equal(t, "sess", turn.SessionID)
	}
}

func TestHistoryEmptySession(t *testing.T) {
	s := newTestStore(t)
	turns, err := s.History("nope", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAgentConfigLazyDefaults(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.AgentConfig("vigil")
	require.NoError(t, err)
	assert.Equal(t, "vigil", cfg.AgentID)
	assert.NotEmpty(t, cfg.SystemPrompt)
	assert.InDelta(t, 0.3, cfg.Temperature, 0.001)

	// Second read returns the persisted record.
	again, err := s.AgentConfig("vigil")
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestAgentConfigUnknownID(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.AgentConfig("mystery")
	require.NoError(t, err)
	assert.Equal(t, "Assistant", cfg.SystemPrompt)
	assert.InDelta(t, 0.7, cfg.Temperature, 0.001)
}

func TestAgentConfigReseedsShortPrompt(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertAgentConfig(AgentConfig{
		AgentID: "vigil", SystemPrompt: "short", Temperature: 0.9,
	}))

	cfg, err := s.AgentConfig("vigil")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(cfg.SystemPrompt), minPromptLen)
	// Edited temperature survives the prompt re-seed.
	assert.InDelta(t, 0.9, cfg.Temperature, 0.001)
}

func TestUpsertAgentConfig(t *testing.T) {
	s := newTestStore(t)

	long := make([]byte, minPromptLen+10)
	for i := range long {
		long[i] = 'x'
	}
	custom := AgentConfig{AgentID: "vigil", SystemPrompt: string(long), Temperature: 0.55}
	require.NoError(t, s.UpsertAgentConfig(custom))

	cfg, err := s.AgentConfig("vigil")
	require.NoError(t, err)
	assert.Equal(t, custom, cfg)
}

func TestTaskLog(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.LogTask("onchain", "scrape leaderboard", "completed"))
	require.NoError(t, s.LogTask("media", "sync videos", "completed"))

	entries, err := s.RecentTasks(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "media", entries[0].Agent)
	assert.Equal(t, "onchain", entries[1].Agent)
}

func TestWallets(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveWallet("0xabc", "+$1.2M"))
	require.NoError(t, s.SaveWallet("0xdef", "+$800k"))
	require.NoError(t, s.SaveWallet("0xabc", "+$1.5M")) // re-discovery updates pnl

	wallets, err := s.RecentWallets(10)
	require.NoError(t, err)
	require.Len(t, wallets, 2)

	byAddr := map[string]string{}
	for _, w := range wallets {
		byAddr[w.Address] = w.PnL
	}
	assert.Equal(t, "+$1.5M", byAddr["0xabc"])
}

func TestSnapshotDedupe(t *testing.T) {
	s := newTestStore(t)

	snap := Snapshot{
		Address:      "0xabc",
		AccountValue: 1000,
		Positions:    []Position{{Coin: "BTC", Size: 1.5, UnrealizedPnL: 200}},
	}
	require.NoError(t, s.SaveSnapshot(snap))
	require.NoError(t, s.SaveSnapshot(snap)) // identical state: no new row

	snaps, err := s.RecentSnapshots(10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "0xabc", snaps[0].Address)
	require.Len(t, snaps[0].Positions, 1)
	assert.Equal(t, "BTC", snaps[0].Positions[0].Coin)

	snap.AccountValue = 1100
	require.NoError(t, s.SaveSnapshot(snap))
	snaps, err = s.RecentSnapshots(10)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestSnapshotPrune(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < snapshotKeepPerWallet+5; i++ {
		require.NoError(t, s.SaveSnapshot(Snapshot{
			Address:      "0xabc",
			AccountValue: float64(i),
		}))
	}

	snaps, err := s.RecentSnapshots(100)
	require.NoError(t, err)
	assert.Len(t, snaps, snapshotKeepPerWallet)
}

func TestInsights(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveInsight(Insight{
		VideoID: "v1", Channel: "ChartChampions", Title: "BTC levels", Transcript: "support at...",
	}))
	require.NoError(t, s.SaveInsight(Insight{
		VideoID: "v1", Channel: "ChartChampions", Title: "duplicate", Transcript: "ignored",
	}))

	ok, err := s.HasInsight("v1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasInsight("v2")
	require.NoError(t, err)
	assert.False(t, ok)

	insights, err := s.RecentInsights(5)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "BTC levels", insights[0].Title)
}
