// Package orchestrator runs the central dispatch loop: it pops inbound
// envelopes, gathers intelligence from the sub-agents in parallel, asks the
// LLM gateway for a response, and routes it back to the originating
// front-end. A single message failure never stops the loop.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vigilcell/vigil/internal/agents"
	"github.com/vigilcell/vigil/internal/bus"
	"github.com/vigilcell/vigil/internal/provider"
	"github.com/vigilcell/vigil/internal/store"
)

// orchestratorID keys the persisted configuration of the top-level agent.
const orchestratorID = "vigil"

const processingAck = "Processing... gathering intel."

const defaultHistoryN = 10

// PriceSource yields the latest in-memory mid price for a coin.
type PriceSource interface {
	LivePrice(coin string) float64
}

// SpotPricer is the external price fallback used when the live feed is cold.
type SpotPricer interface {
	SpotPrice(ctx context.Context) (float64, error)
}

// Config wires an orchestrator. Queue, Store, and Gateway are required;
// everything else degrades gracefully when absent.
type Config struct {
	Queue       *bus.Queue
	Store       *store.Store
	Gateway     *provider.Gateway
	Agents      []agents.Agent
	Prices      PriceSource
	Spot        SpotPricer
	Coin        string
	ProjectRoot string
	HistoryN    int
	IdleSleep   time.Duration
}

// Orchestrator is the supreme dispatch loop. One instance processes inbox
// messages strictly one at a time.
type Orchestrator struct {
	queue   *bus.Queue
	store   *store.Store
	gateway *provider.Gateway

	// agents keeps wiring order so delegation acks land in the prompt in a
	// stable sequence.
	agents []agents.Agent
	crypto agents.Agent
	media  agents.Agent

	prices      PriceSource
	spot        SpotPricer
	coin        string
	projectRoot string
	historyN    int
	idleSleep   time.Duration

	running atomic.Bool
}

// New builds an orchestrator from its wiring.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		queue:       cfg.Queue,
		store:       cfg.Store,
		gateway:     cfg.Gateway,
		agents:      cfg.Agents,
		prices:      cfg.Prices,
		spot:        cfg.Spot,
		coin:        cfg.Coin,
		projectRoot: cfg.ProjectRoot,
		historyN:    cfg.HistoryN,
		idleSleep:   cfg.IdleSleep,
	}
	if o.coin == "" {
		o.coin = "BTC"
	}
	if o.historyN <= 0 {
		o.historyN = defaultHistoryN
	}
	if o.idleSleep <= 0 {
		o.idleSleep = 100 * time.Millisecond
	}
	for _, a := range cfg.Agents {
		switch a.ID() {
		case "onchain":
			o.crypto = a
		case "media":
			o.media = a
		}
	}
	return o
}

// Run starts the sub-agents and processes the inbox until the context is
// cancelled or Stop is called.
func (o *Orchestrator) Run(ctx context.Context) {
	o.running.Store(true)
	slog.Info("Orchestrator online")

	for _, a := range o.agents {
		a.Start(ctx)
	}

	for o.running.Load() && ctx.Err() == nil {
		raw, err := o.queue.Pop(ctx, bus.Inbox, 0)
		if errors.Is(err, bus.ErrEmpty) {
			sleepCtx(ctx, o.idleSleep)
			continue
		}
		if err != nil {
			slog.Error("Inbox pop failed", "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}
		o.ProcessMessage(ctx, raw)
	}

	for _, a := range o.agents {
		a.Stop()
	}
	slog.Info("Orchestrator stopped")
}

// Stop signals the loop to exit after the current message.
func (o *Orchestrator) Stop() {
	o.running.Store(false)
}

// ProcessMessage handles one raw inbox payload end to end. Malformed
// payloads are dropped; all later failures are routed back to the source as
// an operational-failure string.
func (o *Orchestrator) ProcessMessage(ctx context.Context, raw string) {
	env, err := bus.ParseEnvelope(raw)
	if err != nil {
		// No reliably identified source, nothing to reply to.
		slog.Error("Malformed inbox payload dropped", "error", err)
		return
	}
	slog.Info("Command received", "source", env.Source, "session", env.SessionID)

	if err := o.handle(ctx, env); err != nil {
		slog.Error("Message processing failed", "source", env.Source, "error", err)
		o.route(env.Source, "Operational Failure: "+err.Error())
	}
}

func (o *Orchestrator) handle(ctx context.Context, env *bus.Envelope) error {
	if err := o.store.SaveTurn(env.SessionID, "user", env.Content); err != nil {
		// Persistence is best-effort here: the reply matters more.
		slog.Warn("User turn not persisted", "error", err)
	}

	if bus.Interactive(env.Source) {
		o.route(env.Source, processingAck)
	}

	intel := o.gatherIntel(ctx)

	history, err := o.store.History(env.SessionID, o.historyN)
	if err != nil {
		slog.Warn("History fetch failed", "error", err)
		history = nil
	}

	// AgentConfig hands back the built-in defaults alongside any error, so a
	// broken store degrades the persona, never the reply.
	cfg, err := o.store.AgentConfig(orchestratorID)
	if err != nil {
		slog.Warn("Agent config fetch failed, using defaults", "error", err)
	}

	intel += o.delegate(ctx, env.Content)

	if mentionsFiles(env.Content) {
		if fileCtx := FileContext(o.projectRoot, env.Content); fileCtx != "" {
			intel += "\n--- LOCAL PROJECT CONTEXT ---\n" + fileCtx
		}
	}

	messages := o.composePrompt(cfg.SystemPrompt, intel, history, env.Content)
	reply := o.gateway.ChatWithTemperature(ctx, messages, cfg.Temperature)

	if err := o.store.SaveTurn(env.SessionID, "assistant", reply); err != nil {
		slog.Warn("Assistant turn not persisted", "error", err)
	}

	o.route(env.Source, reply)
	return nil
}

// gatherIntel fans out over the three context accessors. Each branch owns
// its failures; a cold branch yields a placeholder, never an error.
func (o *Orchestrator) gatherIntel(ctx context.Context) string {
	var cryptoAlpha, mediaIntel, macro string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cryptoAlpha = o.agentContext(gctx, o.crypto, "[Crypto Alpha Unavailable]\n")
		return nil
	})
	g.Go(func() error {
		mediaIntel = o.agentContext(gctx, o.media, "[Media Intel Unavailable]\n")
		return nil
	})
	g.Go(func() error {
		macro = o.macroContext(gctx)
		return nil
	})
	g.Wait()

	return cryptoAlpha + "\n" + mediaIntel + "\n" + macro
}

func (o *Orchestrator) agentContext(ctx context.Context, a agents.Agent, placeholder string) string {
	if a == nil {
		return placeholder
	}
	return a.Context(ctx)
}

func (o *Orchestrator) delegate(ctx context.Context, content string) string {
	lower := strings.ToLower(content)

	var actions strings.Builder
	for _, a := range o.agents {
		if !matchesKeyword(lower, a.Keywords()) {
			continue
		}
		ack := a.ProcessTask(ctx, content)
		if err := o.store.LogTask(a.ID(), content, "completed"); err != nil {
			slog.Warn("Task log failed", "agent", a.ID(), "error", err)
		}
		fmt.Fprintf(&actions, "\n[%s Action]: %s\n", a.ID(), ack)
	}
	return actions.String()
}

// matchesKeyword looks for whole-word keyword hits so that e.g. "wallets"
// does not fire on "walletsnapshot".
func matchesKeyword(lower string, keywords []string) bool {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for _, k := range keywords {
		for _, w := range words {
			if w == k {
				return true
			}
		}
	}
	return false
}

// composePrompt assembles system + history + current turn. The current turn
// is appended only if it is not already the tail of the fetched history.
func (o *Orchestrator) composePrompt(systemPrompt, intel string, history []store.Turn, content string) []provider.Message {
	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{
		Role:    provider.RoleSystem,
		Content: systemPrompt + "\n\nCURRENT INTEL:\n" + intel,
	})
	for _, turn := range history {
		messages = append(messages, provider.Message{Role: turn.Role, Content: turn.Content})
	}

	appended := false
	for i := max(0, len(history)-2); i < len(history); i++ {
		if history[i].Content == content {
			appended = true
			break
		}
	}
	if !appended {
		messages = append(messages, provider.Message{Role: provider.RoleUser, Content: content})
	}
	return messages
}

// route pushes a response string to the source's output channel. Telegram
// and Slack sources get their JSON chat payloads on the shared bridge
// channels.
func (o *Orchestrator) route(source, content string) {
	channel := bus.OutChannel(source)

	var payload string
	switch {
	case strings.HasPrefix(source, "telegram:"):
		chatID, err := strconv.ParseInt(bus.SourceChatID(source), 10, 64)
		if err != nil {
			slog.Error("Bad telegram chat id", "source", source, "error", err)
			return
		}
		data, _ := json.Marshal(bus.ChatOut{ChatID: chatID, Content: content})
		payload = string(data)
	case strings.HasPrefix(source, "slack:"):
		data, _ := json.Marshal(bus.SlackOutMsg{Channel: bus.SourceChatID(source), Content: content})
		payload = string(data)
	default:
		payload = content
	}

	if err := o.queue.Push(channel, payload); err != nil {
		slog.Error("Response push failed", "channel", channel, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
