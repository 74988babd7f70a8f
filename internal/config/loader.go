package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Telephony.AuthToken = expandEnvVars(cfg.Telephony.AuthToken)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18790
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Telephony.Port == 0 {
		cfg.Telephony.Port = 5038
	}
	if cfg.Telephony.DialTimeoutMs == 0 {
		cfg.Telephony.DialTimeoutMs = 3000
	}
	if cfg.Telephony.ReplyTimeoutMs == 0 {
		cfg.Telephony.ReplyTimeoutMs = 2000
	}
	if cfg.Telephony.Retry.MaxAttempts == 0 {
		cfg.Telephony.Retry.MaxAttempts = 4
	}
	if cfg.Telephony.Retry.InitialMs == 0 {
		cfg.Telephony.Retry.InitialMs = 250
	}
	if cfg.Telephony.Retry.Multiplier == 0 {
		cfg.Telephony.Retry.Multiplier = 2
	}
	if cfg.Telephony.Retry.MaxMs == 0 {
		cfg.Telephony.Retry.MaxMs = 5000
	}
	if cfg.Poller.IntervalMs == 0 {
		cfg.Poller.IntervalMs = 5000
	}
	if cfg.Poller.ProbeTimeoutMs == 0 {
		cfg.Poller.ProbeTimeoutMs = 2000
	}
	if cfg.Poller.MaxInFlight == 0 {
		cfg.Poller.MaxInFlight = 8
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "sqlite"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = "pretty"
	}
}

// applyEnvOverrides reads SWITCHBOARD_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SWITCHBOARD_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("SWITCHBOARD_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("SWITCHBOARD_SWITCH_HOST"); v != "" {
		cfg.Telephony.Host = v
	}
	if v := os.Getenv("SWITCHBOARD_SWITCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Telephony.Port = port
		}
	}
	if v := os.Getenv("SWITCHBOARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
