package agent

import (
	"persai/internal/api"
	"persai/internal/config"
)

// defaultSystemPrompt is the built-in agent instruction set. It can be
// replaced via configuration or PERSAI_SYSTEM_PROMPT.
const defaultSystemPrompt = `You are a Prometheus expert, answering questions about Kubernetes and OpenShift cluster questions.

Make sure to use the available tools to get the list of available metrics.
DON'T USE metrics not received from the tools first.

ALERTS use "alertstate" label to indicate the firing state.

Try to use the metrics also to answer questions about the Kubernetes, if possible with the metrics.

Don't describe raw outputs of the time-series data. Provide only a human-readable summary.
`

// fallbackModel is used when the configuration names no models at all.
const fallbackModel = "gpt-4o-mini"

// SelectModel picks the model the agent runs with: the configured default if
// set, otherwise the first configured model, otherwise a fallback. A default
// that names a model missing from the configured list is a configuration
// error.
func SelectModel(cfg config.AgentConfig) (string, error) {
	model := cfg.DefaultModel
	if model == "" {
		if len(cfg.Models) > 0 {
			model = cfg.Models[0].ModelID
		} else {
			model = fallbackModel
		}
	}

	if len(cfg.Models) == 0 {
		return model, nil
	}

	for _, m := range cfg.Models {
		if m.ModelID == model {
			return model, nil
		}
	}
	return "", api.NewConfigurationError("model %s not available in configuration", model)
}

// SystemPrompt returns the configured system prompt, or the built-in one.
func SystemPrompt(cfg config.AgentConfig) string {
	if cfg.SystemPrompt != "" {
		return cfg.SystemPrompt
	}
	return defaultSystemPrompt
}
