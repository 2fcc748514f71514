package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "orchestrator.max_iterations")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateOllama()...)
	errs = append(errs, c.validateOrchestrator()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateServer() []ValidationError {
	var errs []ValidationError
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: "must be between 1 and 65535",
		})
	}
	if c.Server.ReadTimeoutSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout_seconds",
			Value:   c.Server.ReadTimeoutSeconds,
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateOllama() []ValidationError {
	var errs []ValidationError
	if c.Ollama.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Value:   c.Ollama.URL,
			Message: "must not be empty",
		})
	}
	if c.Ollama.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.model",
			Value:   c.Ollama.Model,
			Message: "must not be empty",
		})
	}
	if c.Ollama.TimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "ollama.timeout_seconds",
			Value:   c.Ollama.TimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	return errs
}

func (c *Config) validateOrchestrator() []ValidationError {
	var errs []ValidationError
	if c.Orchestrator.MaxIterations < 1 {
		errs = append(errs, ValidationError{
			Field:   "orchestrator.max_iterations",
			Value:   c.Orchestrator.MaxIterations,
			Message: "must be at least 1",
		})
	}
	if c.Orchestrator.MinImprovement < 0 || c.Orchestrator.MinImprovement > 1 {
		errs = append(errs, ValidationError{
			Field:   "orchestrator.min_improvement",
			Value:   c.Orchestrator.MinImprovement,
			Message: "must be between 0 and 1",
		})
	}
	if c.Orchestrator.PersistFloor < 0 || c.Orchestrator.PersistFloor > 1 {
		errs = append(errs, ValidationError{
			Field:   "orchestrator.persist_floor",
			Value:   c.Orchestrator.PersistFloor,
			Message: "must be between 0 and 1",
		})
	}
	if c.Orchestrator.EventBuffer < 1 {
		errs = append(errs, ValidationError{
			Field:   "orchestrator.event_buffer",
			Value:   c.Orchestrator.EventBuffer,
			Message: "must be at least 1",
		})
	}
	if c.Orchestrator.SendTimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "orchestrator.send_timeout_seconds",
			Value:   c.Orchestrator.SendTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	return errs
}

func (c *Config) validateRetrieval() []ValidationError {
	var errs []ValidationError
	if c.Retrieval.ChunkSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.chunk_size",
			Value:   c.Retrieval.ChunkSize,
			Message: "must be at least 1",
		})
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		errs = append(errs, ValidationError{
			Field:   "retrieval.chunk_overlap",
			Value:   c.Retrieval.ChunkOverlap,
			Message: "must be non-negative and smaller than chunk_size",
		})
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.top_k",
			Value:   c.Retrieval.TopK,
			Message: "must be at least 1",
		})
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	return errs
}
