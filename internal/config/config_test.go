package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	SetDefaults()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadDefaults(t)

	if cfg.Server.Port != 8000 {
		t.Errorf("server.port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Ollama.Model != "qwen2.5:1.5b" {
		t.Errorf("ollama.model = %q, want %q", cfg.Ollama.Model, "qwen2.5:1.5b")
	}
	if !cfg.Ollama.FastMode {
		t.Error("ollama.fast_mode should default to true")
	}
	if cfg.Orchestrator.MaxIterations != 3 {
		t.Errorf("orchestrator.max_iterations = %d, want 3", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Orchestrator.MinImprovement != 0.05 {
		t.Errorf("orchestrator.min_improvement = %v, want 0.05", cfg.Orchestrator.MinImprovement)
	}
	if cfg.Orchestrator.PersistFloor != 0.6 {
		t.Errorf("orchestrator.persist_floor = %v, want 0.6", cfg.Orchestrator.PersistFloor)
	}
	if cfg.Memory.MinScore != 0.7 {
		t.Errorf("memory.min_score = %v, want 0.7", cfg.Memory.MinScore)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("retrieval.top_k = %d, want 3", cfg.Retrieval.TopK)
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		t.Error("server.allowed_origins should have defaults")
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	cfg := loadDefaults(t)
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config failed validation: %v", errs)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 0 },
			field:  "server.port",
		},
		{
			name:   "zero max iterations",
			mutate: func(c *Config) { c.Orchestrator.MaxIterations = 0 },
			field:  "orchestrator.max_iterations",
		},
		{
			name:   "min improvement above one",
			mutate: func(c *Config) { c.Orchestrator.MinImprovement = 1.5 },
			field:  "orchestrator.min_improvement",
		},
		{
			name:   "negative persist floor",
			mutate: func(c *Config) { c.Orchestrator.PersistFloor = -0.1 },
			field:  "orchestrator.persist_floor",
		},
		{
			name:   "empty ollama model",
			mutate: func(c *Config) { c.Ollama.Model = "" },
			field:  "ollama.model",
		},
		{
			name:   "overlap not smaller than chunk size",
			mutate: func(c *Config) { c.Retrieval.ChunkOverlap = c.Retrieval.ChunkSize },
			field:  "retrieval.chunk_overlap",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			field:  "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error for field %q, got %v", tt.field, errs)
			}
		})
	}
}

func TestValidationErrors_ErrorString(t *testing.T) {
	errs := ValidationErrors{
		{Field: "server.port", Value: 0, Message: "must be between 1 and 65535"},
		{Field: "logging.level", Value: "verbose", Message: "must be one of: debug, info, warn, error"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("expected error count header, got %q", msg)
	}
	if !strings.Contains(msg, "server.port") || !strings.Contains(msg, "logging.level") {
		t.Errorf("expected both fields in message, got %q", msg)
	}

	single := ValidationErrors{errs[0]}
	if single.Error() != errs[0].Error() {
		t.Errorf("single error string = %q, want %q", single.Error(), errs[0].Error())
	}
}
