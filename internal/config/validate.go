package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Validate checks that all required fields are set and values are valid.
// Chat identifiers are optional here; commands that need them check.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if u.Host == "" {
		return errors.New("api.base_url must include a host")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.SendRate < 0 {
		return errors.New("api.send_rate must be >= 0")
	}

	if err := c.Connection.validate("connection"); err != nil {
		return err
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

func (cc *ConnectionConfig) validate(prefix string) error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"connect_timeout", cc.ConnectTimeout},
		{"probe_interval", cc.ProbeInterval},
		{"ack_timeout", cc.AckTimeout},
		{"keepalive_interval", cc.KeepAliveInterval},
		{"write_timeout", cc.WriteTimeout},
		{"reconnect_base", cc.ReconnectBase},
		{"reconnect_max", cc.ReconnectMax},
	}
	for _, f := range positive {
		if f.d <= 0 {
			return fmt.Errorf("%s.%s must be > 0", prefix, f.name)
		}
	}
	if cc.ReconnectBase > cc.ReconnectMax {
		return fmt.Errorf("%s.reconnect_base (%v) cannot exceed reconnect_max (%v)", prefix, cc.ReconnectBase, cc.ReconnectMax)
	}
	if cc.AckTimeout >= cc.ProbeInterval {
		return fmt.Errorf("%s.ack_timeout (%v) must be shorter than probe_interval (%v)", prefix, cc.AckTimeout, cc.ProbeInterval)
	}
	if cc.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be >= 0", prefix)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}
