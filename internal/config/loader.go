package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file, with LIBRECHAT_* environment
// variables taking precedence over file values.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".librechat", "librechat.json")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("LIBRECHAT")
	v.AutomaticEnv()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".librechat")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "librechat.log")
	}
	if cfg.Actions.StorePath == "" {
		cfg.Actions.StorePath = filepath.Join(cfg.DataDir, "actions.db")
	}
	if cfg.Actions.AllowlistPath == "" {
		cfg.Actions.AllowlistPath = filepath.Join(cfg.DataDir, "action-domains.json")
	}

	// Secrets come from the environment, never from the config file on
	// disk, unless explicitly placed there by the operator.
	if passphrase := os.Getenv("LIBRECHAT_ACTIONS_ENCRYPTION_PASSPHRASE"); passphrase != "" {
		cfg.Actions.EncryptionPassphrase = passphrase
	}
	if salt := os.Getenv("LIBRECHAT_ACTIONS_ENCRYPTION_SALT"); salt != "" {
		cfg.Actions.EncryptionSalt = salt
	}

	return cfg, nil
}
