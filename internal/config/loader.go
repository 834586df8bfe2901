package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"persai/pkg/logging"
)

const (
	userConfigDir  = ".config/persai"
	configFileName = "config.yaml"
)

// Environment variables recognized on top of the config file. Each one
// overrides the corresponding file setting when set.
const (
	EnvAuth         = "PERSAI_AUTH"
	EnvPersesURL    = "PERSES_API_URL"
	EnvCORSOrigins  = "PERSAI_CORS_ORIGINS"
	EnvDefaultModel = "PERSAI_DEFAULT_MODEL"
	EnvSystemPrompt = "PERSAI_SYSTEM_PROMPT"
	EnvLogLevel     = "LOG_LEVEL"
)

// DefaultConfigPath returns the per-user configuration directory.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from the specified directory. The directory
// should contain config.yaml; a missing file yields the defaults. Environment
// overrides are applied on top in both cases.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return applyEnvOverrides(config), nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return applyEnvOverrides(config), nil
}

// applyEnvOverrides folds the recognized environment variables into the
// loaded configuration.
func applyEnvOverrides(config Config) Config {
	if v, ok := os.LookupEnv(EnvAuth); ok {
		// Anything but an explicit "false" keeps auth on.
		config.Auth.Enabled = !strings.EqualFold(strings.TrimSpace(v), "false")
	}
	if v, ok := os.LookupEnv(EnvPersesURL); ok {
		config.Auth.PersesURL = v
	}
	if v, ok := os.LookupEnv(EnvCORSOrigins); ok {
		origins := v
		config.Server.CORSOrigins = &origins
	}
	if v, ok := os.LookupEnv(EnvDefaultModel); ok {
		config.Agent.DefaultModel = v
	}
	if v, ok := os.LookupEnv(EnvSystemPrompt); ok {
		config.Agent.SystemPrompt = v
	}
	return config
}
