package config

import (
	"time"
)

// Config is the tool invocation core's configuration.
type Config struct {
	// Actions
	Actions ActionsConfig `json:"actions" mapstructure:"actions"`

	// Approval
	Approval ApprovalConfig `json:"approval" mapstructure:"approval"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ActionsConfig configures action-set loading and validation.
type ActionsConfig struct {
	// StorePath is the SQLite database holding action-set records.
	StorePath string `json:"store_path" mapstructure:"store_path"`
	// AllowlistPath is the JSON file of operator-allowed domains.
	AllowlistPath string `json:"allowlist_path" mapstructure:"allowlist_path"`
	// WatchAllowlist reloads the allow-list when the file changes.
	WatchAllowlist bool `json:"watch_allowlist" mapstructure:"watch_allowlist"`
	// EncryptionPassphrase derives the key for credential decryption.
	// Usually supplied via LIBRECHAT_ACTIONS_ENCRYPTION_PASSPHRASE.
	EncryptionPassphrase string `json:"encryption_passphrase" mapstructure:"encryption_passphrase"`
	// EncryptionSalt is the hex-encoded key derivation salt.
	EncryptionSalt string `json:"encryption_salt" mapstructure:"encryption_salt"`
}

// ApprovalConfig configures the human-in-the-loop handshake.
type ApprovalConfig struct {
	// Window is how long a gated call waits for a decision.
	Window time.Duration `json:"window" mapstructure:"window"`
	// SweepSchedule is the cron spec for evicting stale flows.
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Actions: ActionsConfig{
			WatchAllowlist: true,
		},
		Approval: ApprovalConfig{
			Window:        10 * time.Minute,
			SweepSchedule: "@every 1m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}
