package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vigilcell/vigil/internal/config"
)

// Gateway fans a chat request across an ordered list of providers with a
// bounded number of attempts per provider. Its Chat never returns an error:
// on total failure the descriptive failure text IS the response, so callers
// always have something to show the user.
type Gateway struct {
	providers   []Provider
	maxAttempts int
}

// NewGateway builds a Gateway from the LLM configuration: the primary
// endpoint first, then each configured fallback.
func NewGateway(cfg config.LLMConfig) *Gateway {
	providers := []Provider{
		NewOpenAIProvider(cfg.APIKey, cfg.APIBase, cfg.Model, cfg.Timeout),
	}
	for _, fb := range cfg.Fallbacks {
		providers = append(providers, NewOpenAIProvider(fb.APIKey, fb.APIBase, fb.Model, cfg.Timeout))
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Gateway{providers: providers, maxAttempts: attempts}
}

// NewGatewayFromProviders builds a Gateway over explicit providers.
func NewGatewayFromProviders(maxAttempts int, providers ...Provider) *Gateway {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Gateway{providers: providers, maxAttempts: maxAttempts}
}

// TemperatureSetter is implemented by providers whose sampling temperature
// can be adjusted.
type TemperatureSetter interface {
	SetTemperature(t float64)
}

// ChatWithTemperature applies the given sampling temperature to every
// provider that supports one, then chats. A negative temperature leaves
// provider defaults untouched.
func (g *Gateway) ChatWithTemperature(ctx context.Context, messages []Message, temperature float64) string {
	if temperature >= 0 {
		for _, p := range g.providers {
			if ts, ok := p.(TemperatureSetter); ok {
				ts.SetTemperature(temperature)
			}
		}
	}
	return g.Chat(ctx, messages)
}

// Chat tries each provider in order, up to maxAttempts times each, returning
// the first successful response. On total failure it returns a descriptive
// error string instead of an error.
func (g *Gateway) Chat(ctx context.Context, messages []Message) string {
	var lastErr error
	for i, p := range g.providers {
		for attempt := 1; attempt <= g.maxAttempts; attempt++ {
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
			response, err := p.Chat(ctx, messages)
			if err == nil {
				return response
			}
			lastErr = err
			slog.Warn("LLM request failed", "provider", i, "attempt", attempt, "error", err)
		}
	}
	return fmt.Sprintf("[LLM Error] all endpoints failed: %v. Is the model server running?", lastErr)
}
