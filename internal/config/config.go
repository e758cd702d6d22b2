package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Scrape  ScrapeConfig
	Chat    ChatConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type ScrapeConfig struct {
	MaxConcurrency int
	// URLLatency is the simulated per-URL scrape latency, as a
	// time.ParseDuration string.
	URLLatency string
}

type ChatConfig struct {
	// ResponseDelay is the simulated responder latency, as a
	// time.ParseDuration string.
	ResponseDelay string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Scrape: ScrapeConfig{
			MaxConcurrency: 4,
			URLLatency:     "200ms",
		},
		Chat: ChatConfig{
			ResponseDelay: "500ms",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/scrapedesk/config.json, with environment variables
// (SCRAPEDESK_*) overriding file values.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	if cfg.Scrape.MaxConcurrency < 1 {
		return Config{}, fmt.Errorf("invalid scrape.max_concurrency %d", cfg.Scrape.MaxConcurrency)
	}
	if _, err := time.ParseDuration(cfg.Scrape.URLLatency); err != nil {
		return Config{}, fmt.Errorf("invalid scrape.url_latency: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Chat.ResponseDelay); err != nil {
		return Config{}, fmt.Errorf("invalid chat.response_delay: %w", err)
	}

	return cfg, nil
}

// URLLatencyDuration returns the parsed simulated scrape latency.
func (c ScrapeConfig) URLLatencyDuration() time.Duration {
	d, err := time.ParseDuration(c.URLLatency)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// ResponseDelayDuration returns the parsed simulated responder latency.
func (c ChatConfig) ResponseDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.ResponseDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}
