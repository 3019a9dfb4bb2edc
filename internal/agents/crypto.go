package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/vigilcell/vigil/internal/bus"
	"github.com/vigilcell/vigil/internal/monitor"
	"github.com/vigilcell/vigil/internal/provider"
	"github.com/vigilcell/vigil/internal/scraper"
	"github.com/vigilcell/vigil/internal/store"
)

const cryptoAgentID = "onchain"

// CryptoAgent owns the wallet and market feeds and turns their accumulated
// observations into a synthesized alpha digest.
type CryptoAgent struct {
	store   *store.Store
	queue   *bus.Queue
	gateway *provider.Gateway

	wallets *monitor.WalletMonitor
	market  *monitor.MarketMonitor
	scraper *scraper.Scraper

	running atomic.Bool
}

// NewCryptoAgent wires the agent with its monitors and discovery scraper.
func NewCryptoAgent(st *store.Store, queue *bus.Queue, gateway *provider.Gateway,
	wallets *monitor.WalletMonitor, market *monitor.MarketMonitor, sc *scraper.Scraper) *CryptoAgent {
	return &CryptoAgent{
		store:   st,
		queue:   queue,
		gateway: gateway,
		wallets: wallets,
		market:  market,
		scraper: sc,
	}
}

func (a *CryptoAgent) ID() string { return cryptoAgentID }

func (a *CryptoAgent) Keywords() []string {
	return []string{"scrape", "discover", "wallets"}
}

// Start launches the wallet and market feeds and announces the agent.
func (a *CryptoAgent) Start(ctx context.Context) {
	if !a.running.CompareAndSwap(false, true) {
		return
	}
	slog.Info("Crypto agent starting")
	go a.wallets.Run(ctx)
	go a.market.Run(ctx)
	a.broadcast("On-chain desk online. Tracking institutional flows.")
}

// Stop shuts down the feeds.
func (a *CryptoAgent) Stop() {
	if !a.running.CompareAndSwap(true, false) {
		return
	}
	a.wallets.Stop()
	a.market.Stop()
}

// Context builds a digest of recent discoveries and whale positioning and
// asks the gateway to condense it. The raw digest is the fallback; callers
// always get something usable.
func (a *CryptoAgent) Context(ctx context.Context) string {
	raw, err := a.rawDigest()
	if err != nil {
		slog.Error("Alpha digest failed", "error", err)
		return "[Crypto Alpha Unavailable]\n"
	}
	if raw == "" {
		return "--- CRYPTO ALPHA ---\nNo significant on-chain shifts detected in current cycle.\n"
	}
	return fmt.Sprintf("--- CRYPTO ALPHA (Synthesized) ---\n%s\n", a.synthesize(ctx, raw))
}

func (a *CryptoAgent) rawDigest() (string, error) {
	var b strings.Builder

	wallets, err := a.store.RecentWallets(3)
	if err != nil {
		return "", err
	}
	if len(wallets) > 0 {
		b.WriteString("New High-Conviction Wallets:\n")
		for _, w := range wallets {
			pnl := w.PnL
			if pnl == "" {
				pnl = "N/A"
			}
			fmt.Fprintf(&b, "- %s (PnL: %s)\n", shorten(w.Address, 10), pnl)
		}
	}

	snapshots, err := a.store.RecentSnapshots(2)
	if err != nil {
		return "", err
	}
	if len(snapshots) > 0 {
		b.WriteString("\nActive Whale Positioning:\n")
		for _, s := range snapshots {
			fmt.Fprintf(&b, "- Wallet %s: Value $%.0f\n", shorten(s.Address, 8), s.AccountValue)
			for _, p := range s.Positions {
				side := "LONG"
				if p.Size < 0 {
					side = "SHORT"
				}
				fmt.Fprintf(&b, "  > %s %s ($%.0f uPNL)\n", p.Coin, side, p.UnrealizedPnL)
			}
		}
	}
	return b.String(), nil
}

func (a *CryptoAgent) synthesize(ctx context.Context, raw string) string {
	prompt := fmt.Sprintf(
		"ON-CHAIN RAW DATA:\n%s\n\nSynthesize this raw data into a concise alpha report. "+
			"Identify aggressive accumulation, recurring coin themes, or significant risk shifts. "+
			"Keep it under 80 words.", raw)

	reply := a.gateway.Chat(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: "You are an on-chain intelligence analyst. You track institutional footprints across perp exchanges. Cold, technical, no fluff."},
		{Role: provider.RoleUser, Content: prompt},
	})
	if strings.HasPrefix(reply, "[LLM Error]") {
		// Gateway exhausted: hand back the raw digest instead.
		if len(raw) > 500 {
			return raw[:500]
		}
		return raw
	}
	return reply
}

// ProcessTask handles delegated commands. Real work runs in the background;
// the returned string is the immediate acknowledgement.
func (a *CryptoAgent) ProcessTask(ctx context.Context, command string) string {
	cmd := strings.ToLower(command)

	if strings.Contains(cmd, "scrape") || strings.Contains(cmd, "discover") {
		go func() {
			if _, err := a.scraper.Discover(context.WithoutCancel(ctx)); err != nil {
				slog.Error("Wallet discovery failed", "error", err)
			}
		}()
		return "Scheduled deep scrape of the leaderboard. Discovery in progress."
	}

	if strings.Contains(cmd, "wallets") {
		count, err := a.store.WalletCount()
		if err != nil {
			slog.Error("Wallet count failed", "error", err)
			return "Wallet index unavailable right now."
		}
		return fmt.Sprintf("Currently tracking %d high-conviction wallets.", count)
	}

	return "Acknowledged. Monitoring the tape."
}

// LivePrice returns the latest mid price for a coin from the market feed,
// or 0 when the feed has no reading yet.
func (a *CryptoAgent) LivePrice(coin string) float64 {
	return a.market.MidPrice(coin)
}

func (a *CryptoAgent) broadcast(msg string) {
	if err := a.queue.Push(bus.CLIOut, "[ONCHAIN] "+msg); err != nil {
		slog.Error("Broadcast failed", "agent", cryptoAgentID, "error", err)
	}
}

func shorten(addr string, n int) string {
	if len(addr) <= n {
		return addr
	}
	return addr[:n] + "..."
}
