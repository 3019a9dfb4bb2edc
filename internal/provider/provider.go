// Package provider implements the LLM gateway: an OpenAI-compatible chat
// client with endpoint/model failover.
package provider

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the interface for LLM chat backends.
type Provider interface {
	// Chat sends an ordered list of messages and returns the response text.
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
