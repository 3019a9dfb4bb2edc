package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name under $HOME.
	ConfigDir = ".vigil"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// envPrefix namespaces environment overrides (VIGIL_*).
	envPrefix = "VIGIL"
)

// ConfigPath returns the path to the config file. VIGIL_CONFIG overrides the
// default ~/.vigil/config.json location.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("VIGIL_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present), applies environment overrides,
// and fills unset fields with defaults. A missing file is not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, fmt.Errorf("resolve config path: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config back to its file, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// finalize resolves derived defaults that need the environment.
func (c *Config) finalize() error {
	if c.Paths.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		c.Paths.DataDir = filepath.Join(home, ConfigDir, "data")
	}
	if c.Paths.ProjectRoot == "" || c.Paths.ProjectRoot == "." {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working dir: %w", err)
		}
		c.Paths.ProjectRoot = wd
	}
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = DefaultConfig().Queue.PollInterval
	}
	if c.LLM.HistoryN <= 0 {
		c.LLM.HistoryN = DefaultConfig().LLM.HistoryN
	}
	return nil
}

// QueuePath returns the queue database location.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// StorePath returns the document store database location.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, "vigil.db")
}
