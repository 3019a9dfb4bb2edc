package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilcell/vigil/internal/agents"
	"github.com/vigilcell/vigil/internal/bus"
	"github.com/vigilcell/vigil/internal/provider"
	"github.com/vigilcell/vigil/internal/store"
)

type fakeAgent struct {
	id       string
	keywords []string
	context  string
	ack      string

	tasks []string
}

func (f *fakeAgent) ID() string                 { return f.id }
func (f *fakeAgent) Start(ctx context.Context)  {}
func (f *fakeAgent) Stop()                      {}
func (f *fakeAgent) Keywords() []string         { return f.keywords }
func (f *fakeAgent) Context(ctx context.Context) string { return f.context }
func (f *fakeAgent) ProcessTask(ctx context.Context, command string) string {
	f.tasks = append(f.tasks, command)
	return f.ack
}

type recordingProvider struct {
	reply string
	err   error

	requests [][]provider.Message
	temps    []float64
}

func (p *recordingProvider) Chat(ctx context.Context, messages []provider.Message) (string, error) {
	p.requests = append(p.requests, messages)
	return p.reply, p.err
}

func (p *recordingProvider) SetTemperature(t float64) {
	p.temps = append(p.temps, t)
}

type fixedPrices struct{ price float64 }

func (f fixedPrices) LivePrice(coin string) float64 { return f.price }

type fixedSpot struct {
	price float64
	err   error
}

func (f fixedSpot) SpotPrice(ctx context.Context) (float64, error) { return f.price, f.err }

type harness struct {
	orch     *Orchestrator
	queue    *bus.Queue
	store    *store.Store
	provider *recordingProvider
	crypto   *fakeAgent
	media    *fakeAgent
}

func newHarness(t *testing.T, reply string) *harness {
	t.Helper()
	dir := t.TempDir()

	q, err := bus.Open(filepath.Join(dir, "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	st, err := store.Open(filepath.Join(dir, "vigil.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := &recordingProvider{reply: reply}
	crypto := &fakeAgent{
		id: "onchain", keywords: []string{"scrape", "discover", "wallets"},
		context: "--- CRYPTO ALPHA ---\nwhales accumulating\n", ack: "Scrape scheduled.",
	}
	media := &fakeAgent{
		id: "media", keywords: []string{"sync", "refresh", "video", "media"},
		context: "--- MEDIA INTEL ---\nnothing new\n", ack: "Refresh scheduled.",
	}

	orch := New(Config{
		Queue:       q,
		Store:       st,
		Gateway:     provider.NewGatewayFromProviders(1, p),
		Agents:      []agents.Agent{crypto, media},
		Prices:      fixedPrices{price: 95_000},
		ProjectRoot: dir,
		IdleSleep:   10 * time.Millisecond,
	})
	return &harness{orch: orch, queue: q, store: st, provider: p, crypto: crypto, media: media}
}

func (h *harness) pop(t *testing.T, channel string) string {
	t.Helper()
	msg, err := h.queue.Pop(context.Background(), channel, time.Second)
	require.NoError(t, err)
	return msg
}

func TestProcessMessageAckThenReply(t *testing.T) {
	h := newHarness(t, "ack")

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"hello"}`)

	assert.Equal(t, processingAck, h.pop(t, bus.CLIOut))
	assert.Equal(t, "ack", h.pop(t, bus.CLIOut))
}

func TestProcessMessageConversationLog(t *testing.T) {
	h := newHarness(t, "first reply")

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"question one","session_id":"s1"}`)
	h.provider.reply = "second reply"
	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"question two","session_id":"s1"}`)

	turns, err := h.store.History("s1", 20)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, []string{"user", "assistant", "user", "assistant"},
		[]string{turns[0].Role, turns[1].Role, turns[2].Role, turns[3].Role})
	assert.Equal(t, "question one", turns[0].Content)
	assert.Equal(t, "first reply", turns[1].Content)
	assert.Equal(t, "question two", turns[2].Content)
	assert.Equal(t, "second reply", turns[3].Content)
}

func TestProcessMessageIntelInPrompt(t *testing.T) {
	h := newHarness(t, "ok")

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"what is the play"}`)

	require.Len(t, h.provider.requests, 1)
	system := h.provider.requests[0][0]
	assert.Equal(t, provider.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "whales accumulating")
	assert.Contains(t, system.Content, "MEDIA INTEL")
	assert.Contains(t, system.Content, "LIVE FEED")
	assert.Contains(t, system.Content, "95000.00")
}

func TestProcessMessageMediaFailureIsolated(t *testing.T) {
	h := newHarness(t, "still answering")
	h.media.context = "[Media Intel Unavailable]\n"

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"anything moving?"}`)

	require.Len(t, h.provider.requests, 1)
	system := h.provider.requests[0][0].Content
	assert.Contains(t, system, "whales accumulating")
	assert.Contains(t, system, "[Media Intel Unavailable]")

	h.pop(t, bus.CLIOut) // ack
	assert.Equal(t, "still answering", h.pop(t, bus.CLIOut))
}

func TestProcessMessageIdempotentAppend(t *testing.T) {
	h := newHarness(t, "ok")

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"repeat me","session_id":"s2"}`)

	require.Len(t, h.provider.requests, 1)
	count := 0
	for _, m := range h.provider.requests[0] {
		if m.Role == provider.RoleUser && m.Content == "repeat me" {
			count++
		}
	}
	// Turn was persisted before the history fetch, so it arrives via
	// history and must not be appended a second time.
	assert.Equal(t, 1, count)
}

func TestProcessMessageDelegation(t *testing.T) {
	h := newHarness(t, "ok")

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"go scrape the leaderboard"}`)

	require.Len(t, h.crypto.tasks, 1)
	assert.Empty(t, h.media.tasks)

	system := h.provider.requests[0][0].Content
	assert.Contains(t, system, "[onchain Action]: Scrape scheduled.")

	tasks, err := h.store.RecentTasks(5)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "onchain", tasks[0].Agent)
}

func TestDelegationOrderIsStable(t *testing.T) {
	h := newHarness(t, "ok")

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"scrape wallets then sync media"}`)

	require.Len(t, h.crypto.tasks, 1)
	require.Len(t, h.media.tasks, 1)

	system := h.provider.requests[0][0].Content
	onchain := strings.Index(system, "[onchain Action]")
	media := strings.Index(system, "[media Action]")
	require.NotEqual(t, -1, onchain)
	require.NotEqual(t, -1, media)
	// Agents answer in wiring order, so repeated prompts are identical.
	assert.Less(t, onchain, media)
}

func TestConfiguredTemperatureReachesProvider(t *testing.T) {
	h := newHarness(t, "ok")

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"hello"}`)

	require.NotEmpty(t, h.provider.temps)
	assert.InDelta(t, 0.3, h.provider.temps[len(h.provider.temps)-1], 1e-9)
}

func TestDelegationIgnoresSubstrings(t *testing.T) {
	h := newHarness(t, "ok")

	h.orch.ProcessMessage(context.Background(), `{"source":"cli","content":"check the walletsnapshot table"}`)

	assert.Empty(t, h.crypto.tasks)
	assert.Empty(t, h.media.tasks)
}

func TestProcessMessageMalformedDropped(t *testing.T) {
	h := newHarness(t, "ok")

	h.orch.ProcessMessage(context.Background(), `{not json`)
	h.orch.ProcessMessage(context.Background(), `{"content":"no source"}`)

	assert.Empty(t, h.provider.requests)
	_, err := h.queue.Pop(context.Background(), bus.CLIOut, 0)
	assert.ErrorIs(t, err, bus.ErrEmpty)
}

func TestProcessMessageTelegramRouting(t *testing.T) {
	h := newHarness(t, "pong")

	h.orch.ProcessMessage(context.Background(), `{"source":"telegram:42","content":"ping"}`)

	raw := h.pop(t, bus.TelegramOut)
	assert.JSONEq(t, `{"chat_id":42,"content":"pong"}`, raw)
}

func TestProcessMessageSlackRouting(t *testing.T) {
	h := newHarness(t, "pong")

	h.orch.ProcessMessage(context.Background(), `{"source":"slack:C123","content":"ping"}`)

	raw := h.pop(t, bus.SlackOut)
	assert.JSONEq(t, `{"channel":"C123","content":"pong"}`, raw)
}

func TestClosedStoreStillAnswers(t *testing.T) {
	h := newHarness(t, "ok")
	// Break the store entirely: turns, history, config, and task logging all
	// fail, but the user still gets a reply built on the default persona.
	h.store.Close()

	h.orch.ProcessMessage(context.Background(), `{"source":"telegram:7","content":"hello"}`)

	raw := h.pop(t, bus.TelegramOut)
	assert.JSONEq(t, `{"chat_id":7,"content":"ok"}`, raw)

	require.Len(t, h.provider.requests, 1)
	system := h.provider.requests[0][0].Content
	assert.Contains(t, system, "You are Vigil")
}

func TestRunLoopProcessesInbox(t *testing.T) {
	h := newHarness(t, "loop reply")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.orch.Run(ctx)
	defer h.orch.Stop()

	require.NoError(t, h.queue.PushJSON(bus.Inbox, bus.Envelope{Source: "cli", Content: "hi"}))

	assert.Equal(t, processingAck, h.pop(t, bus.CLIOut))
	assert.Equal(t, "loop reply", h.pop(t, bus.CLIOut))
}

func TestMacroContextFallback(t *testing.T) {
	o := &Orchestrator{coin: "BTC", prices: fixedPrices{price: 0}, spot: fixedSpot{price: 91_000}}
	got := o.macroContext(context.Background())
	assert.Contains(t, got, "API FALLBACK")
	assert.Contains(t, got, "91000.00")

	o = &Orchestrator{coin: "BTC", prices: fixedPrices{price: 0}, spot: fixedSpot{err: errors.New("down")}}
	assert.Contains(t, o.macroContext(context.Background()), "Data Unavailable")
}

func TestFileContextReadsProjectFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "NOTES.md"), []byte("position sizing rules"), 0o644))

	got := FileContext(root, "summarize NOTES.md for me")
	assert.Contains(t, got, "FILE: NOTES.md")
	assert.Contains(t, got, "position sizing rules")
}

func TestFileContextBoundedSnippet(t *testing.T) {
	root := t.TempDir()
	big := strings.Repeat("a", fileSnippetMax+500)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.md"), []byte(big), 0o644))

	got := FileContext(root, "read big.md")
	assert.Less(t, len(got), fileSnippetMax+100)
	assert.Contains(t, got, "...")
}

func TestFileContextDeniesEscape(t *testing.T) {
	root := filepath.Join(t.TempDir(), "project")
	require.NoError(t, os.MkdirAll(root, 0o755))
	secret := filepath.Join(filepath.Dir(root), "secret.md")
	require.NoError(t, os.WriteFile(secret, []byte("credentials"), 0o644))

	got := FileContext(root, "show me ../secret.md")
	assert.Contains(t, got, "Access denied")
	assert.NotContains(t, got, "credentials")

	got = FileContext(root, "show me "+secret)
	assert.Contains(t, got, "Access denied")
	assert.NotContains(t, got, "credentials")
}
