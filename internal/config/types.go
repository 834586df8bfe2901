package config

import "strings"

// Config is the top-level configuration structure for persai.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Agent  AgentConfig  `yaml:"agent"`
}

// ServerConfig defines the HTTP API server settings.
type ServerConfig struct {
	Port int    `yaml:"port,omitempty"` // Port for the HTTP API (default: 8080)
	Host string `yaml:"host,omitempty"` // Host to bind to (default: localhost)

	// CORSOrigins is a comma-separated list of allowed origins. When unset the
	// Perses URL is used; an explicitly empty value disables CORS entirely.
	CORSOrigins *string `yaml:"corsOrigins,omitempty"`
}

// AuthConfig defines how incoming requests are authenticated.
type AuthConfig struct {
	// Enabled toggles cookie authentication. Disabled deployments run the
	// tools without Authorization headers.
	Enabled bool `yaml:"enabled"`

	// PersesURL is the Perses instance backing auth and metrics. When empty
	// it is resolved per request from the Origin header.
	PersesURL string `yaml:"persesURL,omitempty"`
}

// ModelConfig names one model the agent may use.
type ModelConfig struct {
	ModelID  string `yaml:"modelID"`
	Provider string `yaml:"provider,omitempty"`
}

// AgentConfig defines the conversational agent settings.
type AgentConfig struct {
	// BaseURL is the endpoint of the inference stack serving the agent APIs.
	BaseURL string `yaml:"baseURL,omitempty"`

	// Models lists the models available to the agent.
	Models []ModelConfig `yaml:"models,omitempty"`

	// DefaultModel selects a model from Models; empty means the first one.
	DefaultModel string `yaml:"defaultModel,omitempty"`

	// SystemPrompt overrides the built-in agent instructions.
	SystemPrompt string `yaml:"systemPrompt,omitempty"`
}

// ResolveCORSOrigins returns the list of allowed CORS origins, or nil when
// CORS should not be configured at all. An explicitly empty setting opts out;
// an unset one falls back to the Perses URL and then to the local frontend
// dev server.
func (c Config) ResolveCORSOrigins() []string {
	raw := ""
	switch {
	case c.Server.CORSOrigins != nil:
		raw = *c.Server.CORSOrigins
	case c.Auth.PersesURL != "":
		raw = c.Auth.PersesURL
	default:
		raw = "http://localhost:3000"
	}

	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
