package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vigilcell/vigil/internal/store"
)

// L2Book is the exchange order-book response: levels[0] bids, levels[1] asks.
type L2Book struct {
	Levels [][]BookLevel `json:"levels"`
}

// BookLevel is one price level of the order book.
type BookLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
}

// Trade is one entry of the recent-trades response.
type Trade struct {
	Coin string `json:"coin"`
	Side string `json:"side"`
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Time int64  `json:"time"`
	TID  int64  `json:"tid"`
}

// BookImbalance computes (bidVol-askVol)/total over the top depth levels.
// The second return is false when the book is too thin to judge.
func BookImbalance(book L2Book, depth int) (float64, bool) {
	if len(book.Levels) < 2 {
		return 0, false
	}
	sum := func(levels []BookLevel) float64 {
		var total float64
		for i, lvl := range levels {
			if i >= depth {
				break
			}
			total += parseFloat(lvl.Sz)
		}
		return total
	}
	bidVol := sum(book.Levels[0])
	askVol := sum(book.Levels[1])
	total := bidVol + askVol
	if total <= 0 {
		return 0, false
	}
	return (bidVol - askVol) / total, true
}

// SentimentLabel maps an imbalance value to its display label.
func SentimentLabel(imbalance float64) string {
	switch {
	case imbalance > imbalanceBullish:
		return "BULLISH"
	case imbalance < imbalanceBearish:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// WhaleAlerts formats an alert line for every trade above thresholdUSD, most
// recent first, bounded by the inspection window.
func WhaleAlerts(coin string, trades []Trade, thresholdUSD float64) []string {
	var alerts []string
	for i, trade := range trades {
		if i >= tradeInspectWindow {
			break
		}
		size := parseFloat(trade.Sz)
		price := parseFloat(trade.Px)
		usd := size * price
		if usd <= thresholdUSD {
			continue
		}
		side := "SELL"
		if trade.Side == "B" || strings.EqualFold(trade.Side, "buy") {
			side = "BUY"
		}
		alerts = append(alerts, fmt.Sprintf(
			"[WHALE] %s %.4f %s @ $%.0f ($%.1fk)", side, size, coin, price, usd/1000,
		))
	}
	return alerts
}

// tradesKey fingerprints the head of the trade list so unchanged responses
// are not re-alerted.
func tradesKey(trades []Trade) string {
	if len(trades) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range trades {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "%d:%d;", t.TID, t.Time)
	}
	return b.String()
}

// walletState is the websocket webData2 snapshot shape.
type walletState struct {
	ClearinghouseState struct {
		MarginSummary struct {
			AccountValue string `json:"accountValue"`
		} `json:"marginSummary"`
		AssetPositions []struct {
			Position struct {
				Coin          string `json:"coin"`
				Szi           string `json:"szi"`
				EntryPx       string `json:"entryPx"`
				UnrealizedPnl string `json:"unrealizedPnl"`
				Leverage      struct {
					Value int `json:"value"`
				} `json:"leverage"`
			} `json:"position"`
		} `json:"assetPositions"`
	} `json:"clearinghouseState"`
}

// ParseWalletSnapshot converts a webData2 payload into a store snapshot,
// dropping flat positions and unparseable numeric fields.
func ParseWalletSnapshot(address string, state walletState) store.Snapshot {
	snap := store.Snapshot{
		Address:      address,
		AccountValue: parseFloat(state.ClearinghouseState.MarginSummary.AccountValue),
	}
	for _, ap := range state.ClearinghouseState.AssetPositions {
		pos := ap.Position
		size := parseFloat(pos.Szi)
		if pos.Coin == "" || size == 0 {
			continue
		}
		snap.Positions = append(snap.Positions, store.Position{
			Coin:          pos.Coin,
			Size:          size,
			EntryPrice:    parseFloat(pos.EntryPx),
			UnrealizedPnL: parseFloat(pos.UnrealizedPnl),
			Leverage:      max(pos.Leverage.Value, 1),
		})
	}
	return snap
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
