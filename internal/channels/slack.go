package channels

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/vigilcell/vigil/internal/bus"
)

// Slack bridges socket-mode events to the queue. Direct messages and
// app mentions become inbox envelopes; replies are popped from the shared
// slack output channel and posted back.
type Slack struct {
	botToken string
	appToken string
	queue    *bus.Queue

	api     *slack.Client
	running atomic.Bool
}

// NewSlack creates a Slack bridge from a bot token and an app-level token.
func NewSlack(botToken, appToken string, queue *bus.Queue) *Slack {
	return &Slack{botToken: botToken, appToken: appToken, queue: queue}
}

// Run connects socket mode and serves events until the context is cancelled
// or Stop is called.
func (s *Slack) Run(ctx context.Context) {
	if s.botToken == "" || s.appToken == "" {
		slog.Warn("Slack tokens not configured, bridge disabled")
		return
	}
	s.running.Store(true)

	s.api = slack.New(s.botToken, slack.OptionAppLevelToken(s.appToken))
	client := socketmode.New(s.api)

	go s.eventLoop(ctx, client)
	go s.deliverLoop(ctx)

	slog.Info("Slack bridge started")
	if err := client.RunContext(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Slack socket mode exited", "error", err)
	}
	s.running.Store(false)
}

// Stop signals the delivery loop to exit; socket mode itself stops with the
// context passed to Run.
func (s *Slack) Stop() {
	s.running.Store(false)
}

func (s *Slack) eventLoop(ctx context.Context, client *socketmode.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-client.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			if evt.Request != nil {
				client.Ack(*evt.Request)
			}
			ev, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || ev.Type != slackevents.CallbackEvent {
				continue
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Slack) handleEvent(ev slackevents.EventsAPIEvent) {
	switch in := ev.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Only direct messages; channel chatter needs a mention.
		if in == nil || in.BotID != "" || in.Text == "" || in.ChannelType != "im" {
			return
		}
		s.forward(in.Channel, in.Text)
	case *slackevents.AppMentionEvent:
		if in == nil || in.Text == "" {
			return
		}
		s.forward(in.Channel, in.Text)
	}
}

func (s *Slack) forward(channel, text string) {
	source := "slack:" + channel
	env := bus.Envelope{Source: source, Content: text, SessionID: source}
	if err := s.queue.PushJSON(bus.Inbox, env); err != nil {
		slog.Error("Slack inbound push failed", "error", err)
	}
}

func (s *Slack) deliverLoop(ctx context.Context) {
	for s.running.Load() && ctx.Err() == nil {
		raw, err := s.queue.Pop(ctx, bus.SlackOut, time.Second)
		if errors.Is(err, bus.ErrEmpty) || errors.Is(err, context.Canceled) {
			continue
		}
		if err != nil {
			slog.Error("Slack outbound pop failed", "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}

		var out bus.SlackOutMsg
		if err := json.Unmarshal([]byte(raw), &out); err != nil || out.Channel == "" {
			slog.Error("Bad slack outbound payload", "error", err)
			continue
		}
		_, _, err = s.api.PostMessageContext(ctx, out.Channel, slack.MsgOptionText(out.Content, false))
		if err != nil {
			slog.Error("Slack send failed", "channel", out.Channel, "error", err)
		}
	}
}
