package monitor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookImbalance(t *testing.T) {
	book := L2Book{Levels: [][]BookLevel{
		{{Px: "100", Sz: "6"}, {Px: "99", Sz: "2"}},
		{{Px: "101", Sz: "1"}, {Px: "102", Sz: "1"}},
	}}

	imbalance, ok := BookImbalance(book, bookDepthLevels)
	require.True(t, ok)
	assert.InDelta(t, 0.6, imbalance, 1e-9)
}

func TestBookImbalanceRespectsDepth(t *testing.T) {
	book := L2Book{Levels: [][]BookLevel{
		{{Px: "100", Sz: "1"}, {Px: "99", Sz: "100"}},
		{{Px: "101", Sz: "1"}},
	}}

	imbalance, ok := BookImbalance(book, 1)
	require.True(t, ok)
	assert.InDelta(t, 0, imbalance, 1e-9)
}

func TestBookImbalanceThinBook(t *testing.T) {
	_, ok := BookImbalance(L2Book{}, bookDepthLevels)
	assert.False(t, ok)

	_, ok = BookImbalance(L2Book{Levels: [][]BookLevel{{}, {}}}, bookDepthLevels)
	assert.False(t, ok)
}

func TestSentimentLabel(t *testing.T) {
	assert.Equal(t, "BULLISH", SentimentLabel(0.5))
	assert.Equal(t, "BEARISH", SentimentLabel(-0.3))
	assert.Equal(t, "NEUTRAL", SentimentLabel(0.1))
	assert.Equal(t, "NEUTRAL", SentimentLabel(-0.2))
	assert.Equal(t, "NEUTRAL", SentimentLabel(0.2))
}

func TestWhaleAlerts(t *testing.T) {
	trades := []Trade{
		{Side: "B", Px: "100000", Sz: "1", TID: 1},    // $100k buy
		{Side: "A", Px: "100000", Sz: "0.1", TID: 2},  // $10k, below threshold
		{Side: "A", Px: "60000", Sz: "1", TID: 3},     // $60k sell
		{Side: "B", Px: "not-a-number", Sz: "1", TID: 4},
	}

	alerts := WhaleAlerts("BTC", trades, whaleThresholdUSD)
	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0], "BUY")
	assert.Contains(t, alerts[0], "BTC")
	assert.Contains(t, alerts[0], "$100.0k")
	assert.Contains(t, alerts[1], "SELL")
}

func TestWhaleAlertsWindow(t *testing.T) {
	trades := make([]Trade, tradeInspectWindow+5)
	for i := range trades {
		trades[i] = Trade{Side: "B", Px: "100000", Sz: "10", TID: int64(i)}
	}

	alerts := WhaleAlerts("BTC", trades, whaleThresholdUSD)
	assert.Len(t, alerts, tradeInspectWindow)
}

func TestTradesKey(t *testing.T) {
	assert.Empty(t, tradesKey(nil))

	a := []Trade{{TID: 1, Time: 10}, {TID: 2, Time: 11}}
	b := []Trade{{TID: 1, Time: 10}, {TID: 2, Time: 11}}
	c := []Trade{{TID: 3, Time: 12}, {TID: 1, Time: 10}}

	assert.Equal(t, tradesKey(a), tradesKey(b))
	assert.NotEqual(t, tradesKey(a), tradesKey(c))
}

func TestParseWalletSnapshot(t *testing.T) {
	raw := `{
		"clearinghouseState": {
			"marginSummary": {"accountValue": "125000.50"},
			"assetPositions": [
				{"position": {"coin": "BTC", "szi": "2.5", "entryPx": "95000", "unrealizedPnl": "1200.25", "leverage": {"value": 10}}},
				{"position": {"coin": "ETH", "szi": "0", "entryPx": "3000", "unrealizedPnl": "0", "leverage": {"value": 5}}},
				{"position": {"coin": "SOL", "szi": "-100", "entryPx": "150", "unrealizedPnl": "-300", "leverage": {"value": 0}}}
			]
		}
	}`
	var state walletState
	require.NoError(t, json.Unmarshal([]byte(raw), &state))

	snap := ParseWalletSnapshot("0xabc", state)
	assert.Equal(t, "0xabc", snap.Address)
	assert.InDelta(t, 125000.50, snap.AccountValue, 1e-9)

	// Flat ETH position dropped.
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, "BTC", snap.Positions[0].Coin)
	assert.Equal(t, 10, snap.Positions[0].Leverage)
	assert.Equal(t, "SOL", snap.Positions[1].Coin)
	assert.InDelta(t, -100, snap.Positions[1].Size, 1e-9)
	// Zero leverage normalized to 1.
	assert.Equal(t, 1, snap.Positions[1].Leverage)
}

func TestParseWalletSnapshotGarbageNumbers(t *testing.T) {
	var state walletState
	state.ClearinghouseState.MarginSummary.AccountValue = "??"

	snap := ParseWalletSnapshot("0xdef", state)
	assert.Zero(t, snap.AccountValue)
	assert.Empty(t, snap.Positions)
}
