package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// AgentConfig is the mutable per-agent configuration record.
type AgentConfig struct {
	AgentID      string  `json:"agent_id"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
}

// minPromptLen guards against configs whose prompt was truncated or blanked
// by an earlier edit; anything shorter is re-seeded from the built-in.
const minPromptLen = 150

// defaultAgentConfigs are the built-in configurations seeded on first access.
var defaultAgentConfigs = map[string]AgentConfig{
	"vigil": {
		AgentID: "vigil",
		SystemPrompt: "You are Vigil, the orchestrator of a market intelligence cell. " +
			"You have two subordinate analysts: an on-chain specialist tracking exchange wallets and " +
			"a media specialist digesting trading commentary. " +
			"Combine their reports with live market context to deliver decisive, concrete analysis. " +
			"Speak like a veteran desk head: direct, specific, no filler.",
		Temperature: 0.3,
	},
	"onchain": {
		AgentID: "onchain",
		SystemPrompt: "You are the on-chain intelligence analyst. You track large wallets and " +
			"derivatives positioning. Report in cold, data-driven terms focused on " +
			"institutional footprints. No speculation without numbers.",
		Temperature: 0.1,
	},
	"media": {
		AgentID: "media",
		SystemPrompt: "You are the narrative and sentiment analyst. You digest streams of market " +
			"commentary to surface retail traps and institutional pivots. Be sharp and " +
			"focused on market psychology.",
		Temperature: 0.4,
	},
}

// AgentConfig fetches an agent's configuration, lazily creating it from the
// built-in defaults on first access. Unknown agent ids get a generic record.
func (s *Store) AgentConfig(agentID string) (AgentConfig, error) {
	base, ok := defaultAgentConfigs[agentID]
	if !ok {
		base = AgentConfig{AgentID: agentID, SystemPrompt: "Assistant", Temperature: 0.7}
	}

	var cfg AgentConfig
	err := s.db.QueryRow(
		`SELECT agent_id, system_prompt, temperature FROM agent_configs WHERE agent_id = ?`,
		agentID,
	).Scan(&cfg.AgentID, &cfg.SystemPrompt, &cfg.Temperature)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := s.UpsertAgentConfig(base); err != nil {
			return base, err
		}
		return base, nil
	case err != nil:
		return base, fmt.Errorf("fetch agent config %s: %w", agentID, err)
	}

	if len(cfg.SystemPrompt) < minPromptLen && len(base.SystemPrompt) >= minPromptLen {
		cfg.SystemPrompt = base.SystemPrompt
		if err := s.UpsertAgentConfig(cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// UpsertAgentConfig creates or replaces an agent configuration.
func (s *Store) UpsertAgentConfig(cfg AgentConfig) error {
	_, err := s.db.Exec(
		`INSERT INTO agent_configs (agent_id, system_prompt, temperature, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(agent_id) DO UPDATE SET
			system_prompt = excluded.system_prompt,
			temperature = excluded.temperature,
			updated_at = CURRENT_TIMESTAMP`,
		cfg.AgentID, cfg.SystemPrompt, cfg.Temperature,
	)
	if err != nil {
		return fmt.Errorf("upsert agent config %s: %w", cfg.AgentID, err)
	}
	return nil
}
