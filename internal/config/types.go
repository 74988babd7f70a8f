package config

import "github.com/soyeahso/switchboard/internal/domain"

// Config is the root configuration for Switchboard.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Telephony TelephonyConfig `yaml:"telephony,omitempty"`
	Poller    PollerConfig    `yaml:"poller,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Directory DirectoryConfig `yaml:"directory,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// TelephonyConfig describes the connection to the telephony control plane.
type TelephonyConfig struct {
	Host           string      `yaml:"host"`
	Port           int         `yaml:"port,omitempty"`
	AuthToken      string      `yaml:"authToken,omitempty"`
	DialTimeoutMs  int         `yaml:"dialTimeoutMs,omitempty"`
	ReplyTimeoutMs int         `yaml:"replyTimeoutMs,omitempty"`
	Retry          RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig bounds retry behavior for transient telephony faults.
type RetryConfig struct {
	MaxAttempts int     `yaml:"maxAttempts,omitempty"`
	InitialMs   int     `yaml:"initialMs,omitempty"`
	Multiplier  float64 `yaml:"multiplier,omitempty"`
	MaxMs       int     `yaml:"maxMs,omitempty"`
}

// PollerConfig controls the presence sampling loop.
type PollerConfig struct {
	IntervalMs     int `yaml:"intervalMs,omitempty"`
	ProbeTimeoutMs int `yaml:"probeTimeoutMs,omitempty"`
	MaxInFlight    int `yaml:"maxInFlight,omitempty"`
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// DirectoryConfig supplies the agent directory. The directory is owned by an
// external system; this section is the read-only view Switchboard consumes.
type DirectoryConfig struct {
	Agents []domain.Agent `yaml:"agents,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}
