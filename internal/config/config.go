// Package config provides configuration types and loading for vigil.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Queue    QueueConfig    `json:"queue"`
	LLM      LLMConfig      `json:"llm"`
	Channels ChannelsConfig `json:"channels"`
	Monitors MonitorsConfig `json:"monitors"`
	Bridge   BridgeConfig   `json:"bridge"`
	Log      LogConfig      `json:"log"`
}

// PathsConfig groups filesystem locations.
type PathsConfig struct {
	// DataDir holds the queue and document store databases.
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	// ProjectRoot confines local-file context reads. Paths resolving
	// outside this root are rejected.
	ProjectRoot string `json:"projectRoot" envconfig:"PROJECT_ROOT"`
}

// QueueConfig groups message queue settings.
type QueueConfig struct {
	// PollInterval is the pop/idle polling interval.
	PollInterval time.Duration `json:"pollInterval" envconfig:"QUEUE_POLL_INTERVAL"`
}

// LLMEndpoint is one endpoint/model combination the gateway may try.
type LLMEndpoint struct {
	APIBase string `json:"apiBase"`
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
}

// LLMConfig groups LLM gateway settings.
type LLMConfig struct {
	APIBase string `json:"apiBase" envconfig:"LLM_API_BASE"`
	APIKey  string `json:"apiKey" envconfig:"LLM_API_KEY"`
	Model   string `json:"model" envconfig:"LLM_MODEL"`
	// Fallbacks are tried in order after the primary endpoint fails.
	Fallbacks []LLMEndpoint `json:"fallbacks,omitempty"`
	// MaxAttempts bounds retries per endpoint.
	MaxAttempts int           `json:"maxAttempts" envconfig:"LLM_MAX_ATTEMPTS"`
	Timeout     time.Duration `json:"timeout" envconfig:"LLM_TIMEOUT"`
	HistoryN    int           `json:"historyN" envconfig:"LLM_HISTORY_N"`
}

// ChannelsConfig contains all front-end bridge configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
	Web      WebConfig      `json:"web"`
}

// TelegramConfig configures the Telegram bridge.
type TelegramConfig struct {
	Enabled bool   `json:"enabled" envconfig:"TELEGRAM_ENABLED"`
	Token   string `json:"token" envconfig:"TELEGRAM_TOKEN"`
}

// SlackConfig configures the Slack bridge (socket mode).
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	BotToken string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	AppToken string `json:"appToken" envconfig:"SLACK_APP_TOKEN"`
}

// WebConfig configures the web front-end.
type WebConfig struct {
	Enabled bool   `json:"enabled" envconfig:"WEB_ENABLED"`
	Addr    string `json:"addr" envconfig:"WEB_ADDR"`
}

// MonitorsConfig groups the background intelligence producers.
type MonitorsConfig struct {
	// Wallets are the addresses the websocket monitor rotates through.
	Wallets []string `json:"wallets"`
	// Coin is the market the poller watches.
	Coin string `json:"coin" envconfig:"MONITOR_COIN"`
	// MarketAPIURL is the exchange info endpoint.
	MarketAPIURL string `json:"marketApiUrl" envconfig:"MARKET_API_URL"`
	// MarketWSURL is the exchange websocket endpoint.
	MarketWSURL string `json:"marketWsUrl" envconfig:"MARKET_WS_URL"`
	// PriceAPIURL is the external spot-price fallback.
	PriceAPIURL string `json:"priceApiUrl" envconfig:"PRICE_API_URL"`
	// MediaWatchlist lists channel handles the media agent digests.
	MediaWatchlist []string `json:"mediaWatchlist"`
	// LeaderboardURL is the base URL for wallet discovery scrapes.
	LeaderboardURL string `json:"leaderboardUrl" envconfig:"LEADERBOARD_URL"`
}

// BridgeConfig configures the optional Kafka alert mirror.
type BridgeConfig struct {
	Enabled bool   `json:"enabled" envconfig:"BRIDGE_ENABLED"`
	Brokers string `json:"brokers" envconfig:"BRIDGE_BROKERS"`
	Topic   string `json:"topic" envconfig:"BRIDGE_TOPIC"`
}

// LogConfig groups logging settings.
type LogConfig struct {
	Level string `json:"level" envconfig:"LOG_LEVEL"`
	Color bool   `json:"color" envconfig:"LOG_COLOR"`
}

// DefaultConfig returns a configuration that works with zero setup.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:     "", // resolved to ~/.vigil/data by Load
			ProjectRoot: ".",
		},
		Queue: QueueConfig{
			PollInterval: 100 * time.Millisecond,
		},
		LLM: LLMConfig{
			APIBase:     "http://localhost:8087/v1",
			Model:       "gemini-2.5-flash-lite",
			MaxAttempts: 2,
			Timeout:     30 * time.Second,
			HistoryN:    10,
		},
		Channels: ChannelsConfig{
			Web: WebConfig{Addr: ":8000"},
		},
		Monitors: MonitorsConfig{
			Coin:           "BTC",
			MarketAPIURL:   "https://api.hyperliquid.xyz/info",
			MarketWSURL:    "wss://api.hyperliquid.xyz/ws",
			PriceAPIURL:    "https://api.coindesk.com/v1/bpi/currentprice.json",
			MediaWatchlist: []string{"ChartChampions", "Glassnode"},
			LeaderboardURL: "https://www.coinglass.com/hl/range",
		},
		Bridge: BridgeConfig{
			Topic: "vigil.alerts",
		},
		Log: LogConfig{
			Level: "info",
			Color: true,
		},
	}
}
