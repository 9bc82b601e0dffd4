package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./conductr.db" {
			t.Errorf("expected database path ./conductr.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Ranking.PageSize != 20 || config.Ranking.MaxPages != 3 || config.Ranking.Concurrency != 5 {
			t.Errorf("unexpected ranking defaults: %+v", config.Ranking)
		}

		if config.Assembly.BatchSize != 100 || config.Assembly.FallbackTracks != 4 {
			t.Errorf("unexpected assembly defaults: %+v", config.Assembly)
		}

		if config.Handoff.TTL() != 15*time.Minute {
			t.Errorf("expected handoff ttl 15m, got %s", config.Handoff.TTL())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[credentials.llm]
api_key = "sk-test"

[handoff]
redis_addr = "localhost:6379"
ttl_minutes = 5
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if config.Handoff.TTL() != 5*time.Minute {
			t.Errorf("expected ttl 5m, got %s", config.Handoff.TTL())
		}

		if config.Ranking.PageSize != 20 {
			t.Errorf("expected unset ranking keys to keep defaults, got page size %d", config.Ranking.PageSize)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		config.Credentials.LLM.APIKey = ""

		err := config.Validate()
		if !errors.Is(err, ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Environment overrides", func(t *testing.T) {
		config := DefaultConfig()
		env := map[string]string{
			"CONDUCTR_LLM_API_KEY": "sk-env",
			"CONDUCTR_REDIS_ADDR":  "redis:6379",
		}
		config.applyEnv(func(k string) string { return env[k] })

		if config.Credentials.LLM.APIKey != "sk-env" {
			t.Errorf("expected api key from env, got %q", config.Credentials.LLM.APIKey)
		}
		if config.Handoff.RedisAddr != "redis:6379" {
			t.Errorf("expected redis addr from env, got %q", config.Handoff.RedisAddr)
		}
		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("unset env var should not override client id, got %q", config.Credentials.Spotify.ClientID)
		}
	})
}
