package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		shouldSet    bool
		want         int
	}{
		{
			name:         "parses integer value",
			key:          "TEST_INT",
			defaultValue: 5,
			envValue:     "42",
			shouldSet:    true,
			want:         42,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_MISSING",
			defaultValue: 5,
			shouldSet:    false,
			want:         5,
		},
		{
			name:         "returns default on parse failure",
			key:          "TEST_INT_BAD",
			defaultValue: 5,
			envValue:     "not-a-number",
			shouldSet:    true,
			want:         5,
		},
		{
			name:         "parses negative value",
			key:          "TEST_INT_NEG",
			defaultValue: 5,
			envValue:     "-1",
			shouldSet:    true,
			want:         -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_requiresEmbeddingModel(t *testing.T) {
	t.Setenv("EMBEDDING_MODEL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail without EMBEDDING_MODEL")
	}
}

func TestLoad_defaults(t *testing.T) {
	t.Setenv("EMBEDDING_MODEL", "nomic-embed-text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.EmbeddingProvider != ProviderOpenAI {
		t.Errorf("EmbeddingProvider = %v, want %v", cfg.EmbeddingProvider, ProviderOpenAI)
	}
	if cfg.EmbeddingDimensions != 768 {
		t.Errorf("EmbeddingDimensions = %v, want 768", cfg.EmbeddingDimensions)
	}
	if cfg.EmbeddingTimeout != 30*time.Second {
		t.Errorf("EmbeddingTimeout = %v, want 30s", cfg.EmbeddingTimeout)
	}
	if cfg.RebuildMaxParagraphsPerMessage != -1 {
		t.Errorf("RebuildMaxParagraphsPerMessage = %v, want -1", cfg.RebuildMaxParagraphsPerMessage)
	}
	if cfg.RebuildProgressInterval != 10 {
		t.Errorf("RebuildProgressInterval = %v, want 10", cfg.RebuildProgressInterval)
	}
}

func TestLoad_rejectsNonPositiveDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("EMBEDDING_DIMENSIONS", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail with EMBEDDING_DIMENSIONS=0")
	}
}
