package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}

	// Telephony validation
	if cfg.Telephony.Host == "" {
		issues = append(issues, ValidationIssue{
			Path:    "telephony.host",
			Message: "host is required",
		})
	}
	if cfg.Telephony.Port < 0 || cfg.Telephony.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "telephony.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Telephony.Port),
		})
	}
	if cfg.Telephony.Retry.MaxAttempts < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "telephony.retry.maxAttempts",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Telephony.Retry.MaxAttempts),
		})
	}
	if cfg.Telephony.Retry.Multiplier < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "telephony.retry.multiplier",
			Message: fmt.Sprintf("must be at least 1, got %g", cfg.Telephony.Retry.Multiplier),
		})
	}

	// Poller validation
	if cfg.Poller.IntervalMs < 100 {
		issues = append(issues, ValidationIssue{
			Path:    "poller.intervalMs",
			Message: fmt.Sprintf("must be at least 100, got %d", cfg.Poller.IntervalMs),
		})
	}
	if cfg.Poller.ProbeTimeoutMs < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "poller.probeTimeoutMs",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Poller.ProbeTimeoutMs),
		})
	}
	if cfg.Poller.MaxInFlight < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "poller.maxInFlight",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Poller.MaxInFlight),
		})
	}

	// Session validation
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	// Directory validation
	seen := make(map[string]bool, len(cfg.Directory.Agents))
	for i, a := range cfg.Directory.Agents {
		path := fmt.Sprintf("directory.agents[%d]", i)
		if a.ID == "" {
			issues = append(issues, ValidationIssue{Path: path + ".id", Message: "id is required"})
			continue
		}
		key := strings.ToLower(a.ID)
		if seen[key] {
			issues = append(issues, ValidationIssue{
				Path:    path + ".id",
				Message: fmt.Sprintf("duplicate agent id %q", a.ID),
			})
		}
		seen[key] = true
		if a.Routing.Extension == "" {
			issues = append(issues, ValidationIssue{
				Path:    path + ".routing.extension",
				Message: "extension is required",
			})
		}
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	return issues
}
