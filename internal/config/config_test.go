package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
api:
  base_url: https://market.example.com
  send_rate: 2.5
chat:
  conversation_id: "42"
  user_id: buyer-7
connection:
  probe_interval: 20s
log:
  level: debug
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://market.example.com" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://market.example.com")
	}
	if cfg.API.SendRate != 2.5 {
		t.Errorf("API.SendRate = %v, want 2.5", cfg.API.SendRate)
	}
	if cfg.Chat.ConversationID != "42" || cfg.Chat.UserID != "buyer-7" {
		t.Errorf("Chat = %+v", cfg.Chat)
	}
	if cfg.Connection.ProbeInterval != 20*time.Second {
		t.Errorf("Connection.ProbeInterval = %v, want 20s", cfg.Connection.ProbeInterval)
	}
	if cfg.Connection.AckTimeout != 0 {
		t.Errorf("Connection.AckTimeout = %v, want unset before defaults", cfg.Connection.AckTimeout)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CHAT_API_KEY", "secret123")
	t.Setenv("TEST_CHAT_USER", "seller-3")

	yaml := `
api:
  api_key: ${TEST_CHAT_API_KEY}
chat:
  user_id: ${TEST_CHAT_USER}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.APIKey != "secret123" {
		t.Errorf("API.APIKey = %q, want %q", cfg.API.APIKey, "secret123")
	}
	if cfg.Chat.UserID != "seller-3" {
		t.Errorf("Chat.UserID = %q, want %q", cfg.Chat.UserID, "seller-3")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of missing file should fail")
	}

	path := writeTempFile(t, "api: [not, a, map")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load of invalid yaml error = %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
chat:
  conversation_id: c1
  user_id: u1
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("API.BaseURL = %q, want default %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Connection.ConnectTimeout != 10*time.Second {
		t.Errorf("Connection.ConnectTimeout = %v, want 10s", cfg.Connection.ConnectTimeout)
	}
	if cfg.Connection.ProbeInterval != 30*time.Second {
		t.Errorf("Connection.ProbeInterval = %v, want 30s", cfg.Connection.ProbeInterval)
	}
	if cfg.Connection.AckTimeout != 5*time.Second {
		t.Errorf("Connection.AckTimeout = %v, want 5s", cfg.Connection.AckTimeout)
	}
	if cfg.Connection.KeepAliveInterval != 5*time.Second {
		t.Errorf("Connection.KeepAliveInterval = %v, want 5s", cfg.Connection.KeepAliveInterval)
	}
	if cfg.Connection.ReconnectMax != 30*time.Second {
		t.Errorf("Connection.ReconnectMax = %v, want 30s", cfg.Connection.ReconnectMax)
	}
	if cfg.Connection.MaxAttempts != 3 {
		t.Errorf("Connection.MaxAttempts = %d, want 3", cfg.Connection.MaxAttempts)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "api:\n  base_url: ftp://files.example.com\n")

	_, err := LoadAndValidate(path)
	if err == nil || !strings.HasPrefix(err.Error(), "validate config: api.base_url") {
		t.Errorf("LoadAndValidate error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func(mod func(*ClientConfig)) ClientConfig {
		cfg := Default()
		mod(cfg)
		return *cfg
	}

	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr string
	}{
		{
			name:    "defaults",
			cfg:     valid(func(*ClientConfig) {}),
			wantErr: "",
		},
		{
			name:    "bad scheme",
			cfg:     valid(func(c *ClientConfig) { c.API.BaseURL = "ws://market.example.com" }),
			wantErr: `api.base_url must use http or https, got "ws://market.example.com"`,
		},
		{
			name:    "missing host",
			cfg:     valid(func(c *ClientConfig) { c.API.BaseURL = "https://" }),
			wantErr: "api.base_url must include a host",
		},
		{
			name:    "negative send rate",
			cfg:     valid(func(c *ClientConfig) { c.API.SendRate = -1 }),
			wantErr: "api.send_rate must be >= 0",
		},
		{
			name:    "zero write timeout",
			cfg:     valid(func(c *ClientConfig) { c.Connection.WriteTimeout = 0 }),
			wantErr: "connection.write_timeout must be > 0",
		},
		{
			name: "base exceeds max",
			cfg: valid(func(c *ClientConfig) {
				c.Connection.ReconnectBase = time.Minute
			}),
			wantErr: "connection.reconnect_base (1m0s) cannot exceed reconnect_max (30s)",
		},
		{
			name: "ack timeout not shorter than probe interval",
			cfg: valid(func(c *ClientConfig) {
				c.Connection.AckTimeout = 30 * time.Second
			}),
			wantErr: "connection.ack_timeout (30s) must be shorter than probe_interval (30s)",
		},
		{
			name:    "metrics path",
			cfg:     valid(func(c *ClientConfig) { c.Metrics.Path = "metrics" }),
			wantErr: `metrics.path must start with /, got "metrics"`,
		},
		{
			name:    "log level",
			cfg:     valid(func(c *ClientConfig) { c.Log.Level = "chatty" }),
			wantErr: `log.level: unknown level "chatty"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
