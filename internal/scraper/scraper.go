// Package scraper discovers high-signal wallet addresses from public
// leaderboard pages using a headless browser. Discovery is triggered on
// demand by the crypto agent; it is never part of the hot path.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/vigilcell/vigil/internal/store"
)

const (
	firstRange = 1
	lastRange  = 16

	pageTimeout = 60 * time.Second
	rangePause  = 2 * time.Second
)

var addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

// Scraper walks the leaderboard range pages and stores every wallet address
// found on them.
type Scraper struct {
	baseURL string
	store   *store.Store
}

// New creates a scraper for the given leaderboard base URL, e.g.
// "https://www.coinglass.com/hl/range".
func New(baseURL string, st *store.Store) *Scraper {
	return &Scraper{baseURL: baseURL, store: st}
}

// Discover launches a headless browser, scrapes every range page, and saves
// the unique addresses it finds. Per-range failures are logged and skipped.
// Returns the number of addresses saved.
func (s *Scraper) Discover(ctx context.Context) (int, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true)
	controlURL, err := l.Launch()
	if err != nil {
		return 0, fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return 0, fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	total := 0
	for rangeID := firstRange; rangeID <= lastRange; rangeID++ {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		saved, err := s.scrapeRange(ctx, browser, rangeID)
		if err != nil {
			slog.Error("Leaderboard range failed", "range", rangeID, "error", err)
		} else {
			total += saved
		}
		sleepCtx(ctx, rangePause)
	}
	slog.Info("Wallet discovery finished", "saved", total)
	return total, nil
}

func (s *Scraper) scrapeRange(ctx context.Context, browser *rod.Browser, rangeID int) (int, error) {
	url := fmt.Sprintf("%s/%d", s.baseURL, rangeID)
	slog.Info("Scraping leaderboard range", "url", url)

	pageCtx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	page, err := browser.Context(pageCtx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return 0, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return 0, fmt.Errorf("wait load: %w", err)
	}
	// Leaderboard rows render client-side.
	if _, err := page.Element("table"); err != nil {
		return 0, fmt.Errorf("no table rendered: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return 0, fmt.Errorf("read page: %w", err)
	}

	wallets := ExtractWallets(html)
	slog.Info("Range scraped", "range", rangeID, "wallets", len(wallets))

	saved := 0
	for _, w := range wallets {
		if err := s.store.SaveWallet(w.Address, w.PnL); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
