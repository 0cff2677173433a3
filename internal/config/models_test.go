package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewModelsConfig_ValidConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "models.json")

	validJSON := `[
		{
			"id": "gpt-4o",
			"name": "GPT-4o",
			"provider": "OpenAI",
			"context_size": 4096
		},
		{
			"id": "gpt-4-turbo",
			"name": "GPT-4 Turbo",
			"provider": "OpenAI",
			"context_size": 128000
		}
	]`

	err := os.WriteFile(configPath, []byte(validJSON), 0644)
	if err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	config, err := NewModelsConfig(configPath)
	if err != nil {
		t.Fatalf("NewModelsConfig() error = %v, want nil", err)
	}

	models := config.GetAvailableModels()
	if len(models) != 2 {
		t.Errorf("GetAvailableModels() returned %d models, want 2", len(models))
	}
}

func TestNewModelsConfig_FileNotFound(t *testing.T) {
	config, err := NewModelsConfig("/nonexistent/path/models.json")
	if err == nil {
		t.Error("NewModelsConfig() error = nil, want error for nonexistent file")
	}

	if config != nil {
		t.Error("NewModelsConfig() returned non-nil config for nonexistent file")
	}
}

func TestNewModelsConfig_InvalidJSON(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.json")

	err := os.WriteFile(configPath, []byte(`{ this is not valid json }`), 0644)
	if err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	config, err := NewModelsConfig(configPath)
	if err == nil {
		t.Error("NewModelsConfig() error = nil, want error for invalid JSON")
	}

	if config != nil {
		t.Error("NewModelsConfig() returned non-nil config for invalid JSON")
	}
}

func TestModelsConfig_IsValidModel(t *testing.T) {
	config := NewModelsConfigFromList([]Model{
		{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", ContextSize: 4096},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: "OpenAI", ContextSize: 128000},
	})

	tests := []struct {
		name    string
		modelID string
		want    bool
	}{
		{
			name:    "valid model - first in list",
			modelID: "gpt-4o",
			want:    true,
		},
		{
			name:    "valid model - second in list",
			modelID: "gpt-4-turbo",
			want:    true,
		},
		{
			name:    "invalid model - not in list",
			modelID: "invalid/model",
			want:    false,
		},
		{
			name:    "invalid model - empty string",
			modelID: "",
			want:    false,
		},
		{
			name:    "invalid model - partial match",
			modelID: "gpt-4",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := config.IsValidModel(tt.modelID)
			if got != tt.want {
				t.Errorf("IsValidModel(%s) = %v, want %v", tt.modelID, got, tt.want)
			}
		})
	}
}

func TestModelsConfig_GetDefaultModel(t *testing.T) {
	tests := []struct {
		name   string
		config *ModelsConfig
		want   string
	}{
		{
			name: "default model from populated list",
			config: NewModelsConfigFromList([]Model{
				{ID: "first-model", Name: "First Model", Provider: "Provider", ContextSize: 8192},
				{ID: "second-model", Name: "Second Model", Provider: "Provider", ContextSize: 4096},
			}),
			want: "first-model",
		},
		{
			name:   "fallback model for empty list",
			config: NewModelsConfigFromList([]Model{}),
			want:   "gpt-4o",
		},
		{
			name:   "fallback model for nil list",
			config: NewModelsConfigFromList(nil),
			want:   "gpt-4o",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.config.GetDefaultModel()
			if got != tt.want {
				t.Errorf("GetDefaultModel() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestModelsConfig_ContextSize(t *testing.T) {
	config := NewModelsConfigFromList([]Model{
		{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", ContextSize: 4096},
		{ID: "no-window", Name: "No Window", Provider: "Test"},
	})

	tests := []struct {
		name    string
		modelID string
		want    int
	}{
		{
			name:    "declared context size",
			modelID: "gpt-4o",
			want:    4096,
		},
		{
			name:    "model without declared size falls back",
			modelID: "no-window",
			want:    DefaultContextSize,
		},
		{
			name:    "unknown model falls back",
			modelID: "mystery-model",
			want:    DefaultContextSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := config.ContextSize(tt.modelID)
			if got != tt.want {
				t.Errorf("ContextSize(%s) = %d, want %d", tt.modelID, got, tt.want)
			}
		})
	}
}
