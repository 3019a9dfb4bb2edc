// Package channels implements the front-end bridges. Every bridge reduces to
// the same two motions: push an inbound envelope onto the inbox, and pop its
// output channel to deliver replies. Bridges never call the orchestrator.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vigilcell/vigil/internal/bus"
)

const telegramLongPollSecs = 30

// Telegram bridges the Bot API to the queue via long polling.
type Telegram struct {
	token   string
	queue   *bus.Queue
	client  *http.Client
	apiBase string

	offset  int64
	running atomic.Bool
}

// NewTelegram creates a Telegram bridge for the given bot token.
func NewTelegram(token string, queue *bus.Queue) *Telegram {
	return &Telegram{
		token:   token,
		queue:   queue,
		client:  &http.Client{Timeout: (telegramLongPollSecs + 10) * time.Second},
		apiBase: "https://api.telegram.org",
	}
}

// Run polls for updates and delivers queued replies until the context is
// cancelled or Stop is called.
func (t *Telegram) Run(ctx context.Context) {
	if t.token == "" {
		slog.Warn("No Telegram token configured, bridge disabled")
		return
	}
	t.running.Store(true)
	slog.Info("Telegram bridge started")

	go t.deliverLoop(ctx)

	for t.running.Load() && ctx.Err() == nil {
		if err := t.pollUpdates(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Telegram poll failed", "error", err)
			sleepCtx(ctx, 5*time.Second)
		}
	}
}

// Stop signals both loops to exit.
func (t *Telegram) Stop() {
	t.running.Store(false)
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

func (t *Telegram) pollUpdates(ctx context.Context) error {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(telegramLongPollSecs))
	if t.offset > 0 {
		q.Set("offset", strconv.FormatInt(t.offset, 10))
	}

	var result struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := t.call(ctx, "getUpdates?"+q.Encode(), nil, &result); err != nil {
		return err
	}
	if !result.OK {
		return errors.New("getUpdates returned ok=false")
	}

	for _, upd := range result.Result {
		t.offset = upd.UpdateID + 1
		if upd.Message == nil || upd.Message.Text == "" {
			continue
		}
		source := fmt.Sprintf("telegram:%d", upd.Message.Chat.ID)
		env := bus.Envelope{Source: source, Content: upd.Message.Text, SessionID: source}
		if err := t.queue.PushJSON(bus.Inbox, env); err != nil {
			slog.Error("Telegram inbound push failed", "error", err)
		}
	}
	return nil
}

// deliverLoop pops the shared telegram output channel and sends each reply
// to its chat.
func (t *Telegram) deliverLoop(ctx context.Context) {
	for t.running.Load() && ctx.Err() == nil {
		raw, err := t.queue.Pop(ctx, bus.TelegramOut, time.Second)
		if errors.Is(err, bus.ErrEmpty) || errors.Is(err, context.Canceled) {
			continue
		}
		if err != nil {
			slog.Error("Telegram outbound pop failed", "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}

		var out bus.ChatOut
		if err := json.Unmarshal([]byte(raw), &out); err != nil || out.ChatID == 0 {
			slog.Error("Bad telegram outbound payload", "error", err)
			continue
		}
		if err := t.sendMessage(ctx, out.ChatID, out.Content); err != nil {
			slog.Error("Telegram send failed", "chat", out.ChatID, "error", err)
		}
	}
}

func (t *Telegram) sendMessage(ctx context.Context, chatID int64, text string) error {
	body := map[string]any{"chat_id": chatID, "text": text}
	var result struct {
		OK bool `json:"ok"`
	}
	if err := t.call(ctx, "sendMessage", body, &result); err != nil {
		return err
	}
	if !result.OK {
		return errors.New("sendMessage returned ok=false")
	}
	return nil
}

func (t *Telegram) call(ctx context.Context, method string, body, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api %s: status %d", method, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
