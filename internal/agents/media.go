package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vigilcell/vigil/internal/bus"
	"github.com/vigilcell/vigil/internal/monitor"
	"github.com/vigilcell/vigil/internal/store"
)

const mediaAgentID = "media"

const (
	digestInterval = time.Hour
	digestBackoff  = 10 * time.Minute
)

// MediaAgent digests trading content from a channel watchlist and surfaces
// the freshest insights as orchestrator context.
type MediaAgent struct {
	store     *store.Store
	queue     *bus.Queue
	digester  *monitor.MediaDigester
	watchlist []string

	running atomic.Bool
}

// NewMediaAgent creates the media agent over a channel watchlist.
func NewMediaAgent(st *store.Store, queue *bus.Queue, digester *monitor.MediaDigester, watchlist []string) *MediaAgent {
	return &MediaAgent{
		store:     st,
		queue:     queue,
		digester:  digester,
		watchlist: watchlist,
	}
}

func (a *MediaAgent) ID() string { return mediaAgentID }

func (a *MediaAgent) Keywords() []string {
	return []string{"sync", "refresh", "video", "media"}
}

// Start launches the hourly digestion loop.
func (a *MediaAgent) Start(ctx context.Context) {
	if !a.running.CompareAndSwap(false, true) {
		return
	}
	slog.Info("Media agent starting", "watchlist", len(a.watchlist))
	go a.digestLoop(ctx)
	a.broadcast("Media desk online. Scanning the tape.")
}

// Stop signals the digestion loop to exit.
func (a *MediaAgent) Stop() {
	a.running.Store(false)
}

func (a *MediaAgent) digestLoop(ctx context.Context) {
	for a.running.Load() && ctx.Err() == nil {
		if err := a.digestOnce(ctx); err != nil {
			slog.Error("Digestion pass failed", "error", err)
			sleepCtx(ctx, digestBackoff)
			continue
		}
		sleepCtx(ctx, digestInterval)
	}
}

func (a *MediaAgent) digestOnce(ctx context.Context) error {
	for _, channel := range a.watchlist {
		stored, err := a.digester.DigestChannel(ctx, channel)
		if err != nil {
			return err
		}
		if stored > 0 {
			a.broadcast(fmt.Sprintf("Digested %d new insights from @%s.", stored, channel))
		}
	}
	return nil
}

// Context formats the two most recent insights. Failures degrade to a
// placeholder so a broken media pipeline never blocks a reply.
func (a *MediaAgent) Context(ctx context.Context) string {
	var b strings.Builder
	b.WriteString("--- MEDIA INTEL ---\n")

	insights, err := a.store.RecentInsights(2)
	if err != nil {
		slog.Error("Media intel fetch failed", "error", err)
		b.WriteString("[Media Intel Unavailable]\n")
		return b.String()
	}
	if len(insights) == 0 {
		b.WriteString("No recent media insights captured.\n")
		return b.String()
	}

	for _, in := range insights {
		summary := in.Transcript
		if len(summary) > 300 {
			summary = summary[:300] + "..."
		}
		fmt.Fprintf(&b, "Source: @%s | Title: %s\nKey Insight: %s\n\n", in.Channel, in.Title, summary)
	}
	return b.String()
}

// ProcessTask triggers a manual re-digest on sync/refresh commands.
func (a *MediaAgent) ProcessTask(ctx context.Context, command string) string {
	cmd := strings.ToLower(command)
	if strings.Contains(cmd, "sync") || strings.Contains(cmd, "refresh") {
		go func() {
			if err := a.digestOnce(context.WithoutCancel(ctx)); err != nil {
				slog.Error("Manual digest failed", "error", err)
			}
		}()
		return "Manually triggering media refresh. Digesting new videos..."
	}
	return "Acknowledged. Watching the feed."
}

func (a *MediaAgent) broadcast(msg string) {
	if err := a.queue.Push(bus.CLIOut, "[MEDIA] "+msg); err != nil {
		slog.Error("Broadcast failed", "agent", mediaAgentID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
