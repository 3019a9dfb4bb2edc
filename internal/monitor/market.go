// Package monitor implements the background intelligence producers: the
// wallet websocket feed, the market poller, the external price fallback, and
// the media digester. Producers only push strings onto queue channels and
// write to the document store; they never call back into the orchestrator.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigilcell/vigil/internal/bus"
)

// MarketMonitor polls the exchange HTTP API for order-book and trade data,
// publishing sentiment and whale alerts, and maintains live mid prices.
type MarketMonitor struct {
	apiURL string
	coin   string
	queue  *bus.Queue
	client *http.Client

	running atomic.Bool

	midsMu sync.RWMutex
	mids   map[string]float64

	lastTradesKey     string
	lastSentimentTime time.Time
}

// Sentiment thresholds and throttles.
const (
	imbalanceBullish   = 0.2
	imbalanceBearish   = -0.2
	sentimentThrottle  = 5 * time.Second
	whaleThresholdUSD  = 50_000
	bookDepthLevels    = 10
	tradeInspectWindow = 10
)

// NewMarketMonitor creates a market monitor for one coin.
func NewMarketMonitor(apiURL, coin string, queue *bus.Queue) *MarketMonitor {
	return &MarketMonitor{
		apiURL: apiURL,
		coin:   coin,
		queue:  queue,
		client: &http.Client{Timeout: 10 * time.Second},
		mids:   make(map[string]float64),
	}
}

// Run polls until the context is cancelled or Stop is called.
func (m *MarketMonitor) Run(ctx context.Context) {
	m.running.Store(true)
	slog.Info("Market monitor started", "coin", m.coin)

	for m.running.Load() && ctx.Err() == nil {
		if err := m.poll(ctx); err != nil {
			slog.Error("Market poll failed", "error", err)
			sleepCtx(ctx, 10*time.Second)
			continue
		}
		// 2-5s with jitter, mimicking organic request cadence.
		sleepCtx(ctx, time.Duration(2000+rand.Intn(3000))*time.Millisecond)
	}
}

// Stop signals the polling loop to exit at its next check.
func (m *MarketMonitor) Stop() {
	m.running.Store(false)
}

// MidPrice returns the last observed mid price for a coin, or 0 when the
// feed has not produced one yet.
func (m *MarketMonitor) MidPrice(coin string) float64 {
	m.midsMu.RLock()
	defer m.midsMu.RUnlock()
	return m.mids[coin]
}

func (m *MarketMonitor) poll(ctx context.Context) error {
	var book L2Book
	if err := m.infoRequest(ctx, map[string]string{"type": "l2Book", "coin": m.coin}, &book); err != nil {
		return fmt.Errorf("l2 book: %w", err)
	}
	var trades []Trade
	if err := m.infoRequest(ctx, map[string]string{"type": "recentTrades", "coin": m.coin}, &trades); err != nil {
		return fmt.Errorf("recent trades: %w", err)
	}
	var mids map[string]string
	if err := m.infoRequest(ctx, map[string]string{"type": "allMids"}, &mids); err != nil {
		return fmt.Errorf("all mids: %w", err)
	}

	m.updateMids(mids)
	m.processBook(book)
	m.processTrades(trades)
	return nil
}

func (m *MarketMonitor) infoRequest(ctx context.Context, payload map[string]string, out any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (m *MarketMonitor) updateMids(raw map[string]string) {
	m.midsMu.Lock()
	defer m.midsMu.Unlock()
	for coin, s := range raw {
		if price, err := strconv.ParseFloat(s, 64); err == nil && price > 0 {
			m.mids[coin] = price
		}
	}
}

func (m *MarketMonitor) processBook(book L2Book) {
	if time.Since(m.lastSentimentTime) < sentimentThrottle {
		return
	}
	imbalance, ok := BookImbalance(book, bookDepthLevels)
	if !ok {
		return
	}
	label := SentimentLabel(imbalance)
	if label == "NEUTRAL" {
		return
	}
	alert := fmt.Sprintf("[MARKET] %s %s | Imbalance: %+.1f%%", m.coin, label, imbalance*100)
	if err := m.queue.Push(bus.CLIOut, alert); err != nil {
		slog.Error("Sentiment alert push failed", "error", err)
		return
	}
	m.lastSentimentTime = time.Now()
}

func (m *MarketMonitor) processTrades(trades []Trade) {
	key := tradesKey(trades)
	if key == "" || key == m.lastTradesKey {
		return
	}
	m.lastTradesKey = key

	for _, alert := range WhaleAlerts(m.coin, trades, whaleThresholdUSD) {
		if err := m.queue.Push(bus.CLIOut, alert); err != nil {
			slog.Error("Whale alert push failed", "error", err)
		}
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
