package config

import "time"

// ClientConfig is the root configuration for a chat client.
type ClientConfig struct {
	API        APIConfig        `yaml:"api"`
	Chat       ChatConfig       `yaml:"chat"`
	Connection ConnectionConfig `yaml:"connection"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// APIConfig holds the marketplace HTTP API settings. The socket endpoint
// is derived from BaseURL.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"` // sent as a bearer token when set
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	SendRate     float64       `yaml:"send_rate"` // messages per second, 0 disables limiting
	SendBurst    int           `yaml:"send_burst"`
}

// ChatConfig selects the conversation to join.
type ChatConfig struct {
	ConversationID string `yaml:"conversation_id"`
	UserID         string `yaml:"user_id"`
}

// ConnectionConfig holds socket supervisor settings.
type ConnectionConfig struct {
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ProbeInterval     time.Duration `yaml:"probe_interval"`
	AckTimeout        time.Duration `yaml:"ack_timeout"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ReconnectBase     time.Duration `yaml:"reconnect_base"`
	ReconnectMax      time.Duration `yaml:"reconnect_max"`
	MaxAttempts       int           `yaml:"max_attempts"`
}

// MetricsConfig holds the health and Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}
