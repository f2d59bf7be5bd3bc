package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL           = "http://localhost:8000"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryBackoff      = 1 * time.Second
	DefaultSendBurst         = 1
	DefaultConnectTimeout    = 10 * time.Second
	DefaultProbeInterval     = 30 * time.Second
	DefaultAckTimeout        = 5 * time.Second
	DefaultKeepAliveInterval = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultReconnectBase     = 1 * time.Second
	DefaultReconnectMax      = 30 * time.Second
	DefaultMaxAttempts       = 3
	DefaultMetricsAddr       = ":9090"
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
)

func (c *ClientConfig) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.SendBurst == 0 {
		c.API.SendBurst = DefaultSendBurst
	}

	// Connection defaults
	applyConnectionDefaults(&c.Connection)

	// Metrics defaults
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyConnectionDefaults(cc *ConnectionConfig) {
	if cc.ConnectTimeout == 0 {
		cc.ConnectTimeout = DefaultConnectTimeout
	}
	if cc.ProbeInterval == 0 {
		cc.ProbeInterval = DefaultProbeInterval
	}
	if cc.AckTimeout == 0 {
		cc.AckTimeout = DefaultAckTimeout
	}
	if cc.KeepAliveInterval == 0 {
		cc.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cc.WriteTimeout == 0 {
		cc.WriteTimeout = DefaultWriteTimeout
	}
	if cc.ReconnectBase == 0 {
		cc.ReconnectBase = DefaultReconnectBase
	}
	if cc.ReconnectMax == 0 {
		cc.ReconnectMax = DefaultReconnectMax
	}
	if cc.MaxAttempts == 0 {
		cc.MaxAttempts = DefaultMaxAttempts
	}
}
