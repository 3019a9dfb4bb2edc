package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vigilcell/vigil/internal/bus"
	"github.com/vigilcell/vigil/internal/store"
)

var walletUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// WalletMonitor holds a webData2 websocket subscription against the exchange,
// rotating through the configured wallets so no address is watched on one
// connection for too long. Snapshots land in the store, alerts on the queue.
type WalletMonitor struct {
	wsURL   string
	wallets []string
	queue   *bus.Queue
	store   *store.Store

	running atomic.Bool
	index   int
}

// NewWalletMonitor creates a monitor over the given wallet addresses.
func NewWalletMonitor(wsURL string, wallets []string, queue *bus.Queue, st *store.Store) *WalletMonitor {
	return &WalletMonitor{
		wsURL:   wsURL,
		wallets: wallets,
		queue:   queue,
		store:   st,
	}
}

// Run cycles connections until the context is cancelled or Stop is called.
// Each connection watches one wallet for a few minutes, then rotates.
func (w *WalletMonitor) Run(ctx context.Context) {
	w.running.Store(true)
	slog.Info("Wallet monitor started", "wallets", len(w.wallets))

	for w.running.Load() && ctx.Err() == nil {
		wallet := w.currentWallet()
		if wallet == "" {
			slog.Error("No wallets configured for monitoring")
			sleepCtx(ctx, time.Minute)
			continue
		}

		if err := w.watch(ctx, wallet); err != nil && ctx.Err() == nil {
			slog.Error("Wallet feed error", "wallet", shortAddr(wallet), "error", err)
			// 5-15s before reconnecting, jittered.
			sleepCtx(ctx, time.Duration(5000+rand.Intn(10000))*time.Millisecond)
		}
		w.advance()
	}
}

// Stop signals the monitoring loop to exit after the current connection.
func (w *WalletMonitor) Stop() {
	w.running.Store(false)
}

func (w *WalletMonitor) currentWallet() string {
	if len(w.wallets) == 0 {
		return ""
	}
	return w.wallets[w.index%len(w.wallets)]
}

func (w *WalletMonitor) advance() {
	if len(w.wallets) <= 1 {
		return
	}
	// Occasionally skip ahead so the rotation is not strictly periodic.
	step := 1
	if rand.Float64() < 0.1 {
		step = 2
	}
	w.index = (w.index + step) % len(w.wallets)
}

func (w *WalletMonitor) watch(ctx context.Context, wallet string) error {
	conn, err := w.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{
		"method":       "subscribe",
		"subscription": map[string]string{"type": "webData2", "user": wallet},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	slog.Info("Watching wallet", "wallet", shortAddr(wallet))

	conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	// 3-8 minutes on one wallet, then rotate.
	deadline := time.Now().Add(time.Duration(3+rand.Intn(6)) * time.Minute)

	for w.running.Load() && ctx.Err() == nil && time.Now().Before(deadline) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var frame struct {
			Channel string      `json:"channel"`
			Data    walletState `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil || frame.Channel != "webData2" {
			continue
		}
		w.process(wallet, frame.Data)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

func (w *WalletMonitor) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(w.wsURL)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("User-Agent", walletUserAgents[rand.Intn(len(walletUserAgents))])
	headers.Set("Origin", "https://"+u.Host)
	headers.Set("Accept-Language", "en-US,en;q=0.9")
	headers.Set("Pragma", "no-cache")
	headers.Set("Cache-Control", "no-cache")

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second, EnableCompression: true}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, headers)
	return conn, err
}

func (w *WalletMonitor) process(wallet string, state walletState) {
	snap := ParseWalletSnapshot(wallet, state)

	if err := w.store.SaveSnapshot(snap); err != nil {
		slog.Warn("Snapshot save failed", "wallet", shortAddr(wallet), "error", err)
	}

	if snap.AccountValue <= 0 {
		return
	}
	w.push(fmt.Sprintf("[WALLET] %s Value: $%.2f", shortAddr(wallet), snap.AccountValue))
	for _, pos := range snap.Positions {
		marker := "+"
		if pos.UnrealizedPnL < 0 {
			marker = "-"
		}
		w.push(fmt.Sprintf("[POS] %s %s: %.4f | PnL: $%.2f", marker, pos.Coin, pos.Size, pos.UnrealizedPnL))
	}
}

func (w *WalletMonitor) push(msg string) {
	if err := w.queue.Push(bus.CLIOut, msg); err != nil {
		slog.Error("Wallet alert push failed", "error", err)
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10] + "..."
}
