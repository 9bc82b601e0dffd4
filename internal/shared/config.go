package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Handoff     HandoffConfig     `toml:"handoff"`
	Ranking     RankingConfig     `toml:"ranking"`
	Assembly    AssemblyConfig    `toml:"assembly"`
	Retry       RetryConfig       `toml:"retry"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	LLM     LLMConfig     `toml:"llm"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// LLMConfig points at an OpenRouter-compatible chat completion endpoint.
type LLMConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HandoffConfig selects the key/value backend that parks payloads across the OAuth redirect.
type HandoffConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	TTLMinutes    int    `toml:"ttl_minutes"`
}

// TTL returns the session lifetime, 15 minutes when unset.
func (h HandoffConfig) TTL() time.Duration {
	if h.TTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(h.TTLMinutes) * time.Minute
}

// RankingConfig tunes candidate retrieval and classification.
type RankingConfig struct {
	PageSize               int `toml:"page_size"`
	MaxPages               int `toml:"max_pages"`
	Concurrency            int `toml:"concurrency"`
	ClassifyTimeoutSeconds int `toml:"classify_timeout_seconds"`
	CacheTTLDays           int `toml:"cache_ttl_days"`
}

// AssemblyConfig tunes playlist assembly.
type AssemblyConfig struct {
	BatchSize      int `toml:"batch_size"`
	FallbackTracks int `toml:"fallback_tracks"`
	TrackPageSize  int `toml:"track_page_size"`
}

// RetryConfig bounds retries of transient upstream failures.
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults, and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.applyEnv(os.Getenv)
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports missing credentials needed by the search pipeline.
func (c *Config) Validate() error {
	var missing []string
	if c.Credentials.Spotify.ClientID == "" {
		missing = append(missing, "credentials.spotify.client_id")
	}
	if c.Credentials.Spotify.ClientSecret == "" {
		missing = append(missing, "credentials.spotify.client_secret")
	}
	if c.Credentials.LLM.APIKey == "" {
		missing = append(missing, "credentials.llm.api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"CONDUCTR_SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID},
		{"CONDUCTR_SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret},
		{"CONDUCTR_LLM_API_KEY", &c.Credentials.LLM.APIKey},
		{"CONDUCTR_REDIS_ADDR", &c.Handoff.RedisAddr},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(getenv(o.key)); v != "" {
			*o.target = v
		}
	}
}
