package config

import (
	"encoding/json"
	"os"
)

// DefaultContextSize is assumed for models that do not declare a context
// window in the catalog.
const DefaultContextSize = 4096

// Model describes an entry in the model catalog.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	ContextSize int    `json:"context_size"`
}

// ModelsConfig holds the catalog of models the server accepts.
type ModelsConfig struct {
	models []Model
}

// NewModelsConfig loads the model catalog from a JSON file.
func NewModelsConfig(configPath string) (*ModelsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var models []Model
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, err
	}

	return &ModelsConfig{models: models}, nil
}

// NewModelsConfigFromList builds a catalog directly from a model list.
// Used by tests and embedded defaults.
func NewModelsConfigFromList(models []Model) *ModelsConfig {
	return &ModelsConfig{models: models}
}

// GetAvailableModels returns the catalog entries.
func (mc *ModelsConfig) GetAvailableModels() []Model {
	return mc.models
}

// IsValidModel reports whether a model ID is in the catalog.
func (mc *ModelsConfig) IsValidModel(modelID string) bool {
	for _, model := range mc.models {
		if model.ID == modelID {
			return true
		}
	}
	return false
}

// GetDefaultModel returns the first catalog entry.
func (mc *ModelsConfig) GetDefaultModel() string {
	if len(mc.models) > 0 {
		return mc.models[0].ID
	}
	// Fallback in case no models are configured (shouldn't happen)
	return "gpt-4o"
}

// ContextSize returns the context window for a model, or
// DefaultContextSize when the model is unknown or declares none.
func (mc *ModelsConfig) ContextSize(modelID string) int {
	for _, model := range mc.models {
		if model.ID == modelID && model.ContextSize > 0 {
			return model.ContextSize
		}
	}
	return DefaultContextSize
}
