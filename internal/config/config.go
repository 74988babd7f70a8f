package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
		},
		Telephony: TelephonyConfig{
			Port:           5038,
			DialTimeoutMs:  3000,
			ReplyTimeoutMs: 2000,
			Retry: RetryConfig{
				MaxAttempts: 4,
				InitialMs:   250,
				Multiplier:  2,
				MaxMs:       5000,
			},
		},
		Poller: PollerConfig{
			IntervalMs:     5000,
			ProbeTimeoutMs: 2000,
			MaxInFlight:    8,
		},
		Session: SessionConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}
