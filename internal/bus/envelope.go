package bus

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Channel naming convention. Every queue channel is prefixed so several
// deployments can share one database file without colliding.
const (
	// Prefix namespaces all vigil channels.
	Prefix = "vigil"
	// Inbox is the single channel consumed by the orchestrator.
	Inbox = Prefix + ":inbox"
	// TelegramOut carries ChatOut JSON for the Telegram bridge.
	TelegramOut = Prefix + ":telegram:out"
	// SlackOut carries ChatOut JSON for the Slack bridge.
	SlackOut = Prefix + ":slack:out"
	// CLIOut carries raw strings for the CLI (and TUI) front-end.
	CLIOut = Prefix + ":cli:out"
)

// Envelope is the payload convention on the inbox channel. Front-ends create
// one per user message; the orchestrator consumes it exactly once.
type Envelope struct {
	Source    string `json:"source"`
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
}

// ParseEnvelope decodes an inbox payload and applies defaults.
func ParseEnvelope(raw string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Source == "" {
		return nil, fmt.Errorf("envelope missing source")
	}
	if env.SessionID == "" {
		env.SessionID = "default"
	}
	env.Content = strings.TrimSpace(env.Content)
	return &env, nil
}

// ChatOut is the JSON payload on the shared Telegram output channel, where a
// single queue channel serves many chats. The chat id stays numeric to match
// the Bot API.
type ChatOut struct {
	ChatID  int64  `json:"chat_id"`
	Content string `json:"content"`
}

// SlackOutMsg is the JSON payload on the shared Slack output channel.
type SlackOutMsg struct {
	Channel string `json:"channel"`
	Content string `json:"content"`
}

// OutChannel maps an envelope source to its output channel. The TUI shares
// the CLI output channel; telegram:<chat> and slack:<chat> sources share
// their bridge's channel.
func OutChannel(source string) string {
	switch {
	case strings.HasPrefix(source, "telegram:"):
		return TelegramOut
	case strings.HasPrefix(source, "slack:"):
		return SlackOut
	case source == "tui":
		return CLIOut
	default:
		return Prefix + ":" + source + ":out"
	}
}

// SourceChatID extracts the chat id from a telegram:<id> or slack:<id>
// source, or "" when the source has no chat component.
func SourceChatID(source string) string {
	if i := strings.IndexByte(source, ':'); i >= 0 {
		return source[i+1:]
	}
	return ""
}

// Interactive reports whether the source expects an immediate processing
// acknowledgement before the full response arrives.
func Interactive(source string) bool {
	switch source {
	case "cli", "tui", "web":
		return true
	}
	return false
}
