// Package errors provides centralized error definitions and error handling
// utilities for the Chakra codebase. It defines the error taxonomy the
// orchestration core is built around, error constructors with context
// wrapping, and classification helpers.
//
// # Error Types
//
// Four domain error types cover the failure modes of a refinement session:
//   - AdapterError: a remote agent call (generate/critique/improve/score/
//     retrieve) errored or timed out; recovered per round
//   - StreamError: the event stream consumer disconnected or stalled;
//     the session is abandoned cleanly
//   - ConfigError: a malformed request or invalid configuration value;
//     surfaced immediately, no rounds attempted
//   - PersistenceError: a background store write failed; swallowed and
//     logged, never surfaced to the client
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewAdapterError("yantra", "generate", cause)
//	err := errors.NewConfigError("max_iterations", "must be at least 1")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrStreamStalled) { ... }
//	if errors.IsAdapterFailure(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Adapter-related sentinel errors
var (
	// ErrGenerationFailed indicates the generation agent produced no usable text.
	ErrGenerationFailed = New("generation failed")
	// ErrEmptyResponse indicates an agent call succeeded but returned empty text.
	ErrEmptyResponse = New("agent returned empty response")
	// ErrBackendUnavailable indicates the model backend could not be reached.
	ErrBackendUnavailable = New("model backend unavailable")
)

// Stream-related sentinel errors
var (
	// ErrStreamTerminated indicates the client disconnected or cancelled the session.
	ErrStreamTerminated = New("stream terminated by consumer")
	// ErrStreamStalled indicates the consumer failed to drain events within the
	// bounded send window.
	ErrStreamStalled = New("stream consumer stalled")
)

// Request and configuration sentinel errors
var (
	// ErrInvalidRequest indicates request validation failed.
	ErrInvalidRequest = New("invalid request")
	// ErrEmptyTask indicates a session request carried no task text.
	ErrEmptyTask = New("task must not be empty")
)

// Persistence sentinel errors
var (
	// ErrMemoryUnavailable indicates the durable memory store could not be opened.
	ErrMemoryUnavailable = New("memory store unavailable")
	// ErrAnalyticsUnavailable indicates the analytics backend is not connected.
	ErrAnalyticsUnavailable = New("analytics backend unavailable")
)

// baseError provides common functionality for all error types.
type baseError struct {
	message string
	cause   error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// AdapterError represents a failed call to one of the capability adapters.
// Adapter failures are recovered locally inside a round and never abort the
// session; the round executor substitutes degraded output instead.
//
// Example:
//
//	err := errors.NewAdapterError("agni", "improve", cause)
//	fmt.Println(err) // "adapter agni: improve: <cause>"
type AdapterError struct {
	baseError
	Agent string // adapter name, e.g. "yantra", "sutra", "agni"
	Op    string // operation, e.g. "generate", "critique", "improve", "score"
}

// NewAdapterError creates an AdapterError for the named agent and operation.
func NewAdapterError(agent, op string, cause error) *AdapterError {
	return &AdapterError{
		baseError: baseError{message: op, cause: cause},
		Agent:     agent,
		Op:        op,
	}
}

func (e *AdapterError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("adapter %s: %s: %v", e.Agent, e.Op, e.cause)
	}
	return fmt.Sprintf("adapter %s: %s failed", e.Agent, e.Op)
}

// Is reports whether target is an AdapterError or matches the wrapped cause.
func (e *AdapterError) Is(target error) bool {
	if _, ok := target.(*AdapterError); ok {
		return true
	}
	return e.is(target)
}

// StreamError represents a failure of the event stream transport: the
// consumer went away or stopped draining events.
type StreamError struct {
	baseError
	SessionID string
}

// NewStreamError creates a StreamError wrapping the transport cause.
func NewStreamError(message string, cause error) *StreamError {
	return &StreamError{baseError: baseError{message: message, cause: cause}}
}

// WithSessionID adds the session identifier to the error context.
func (e *StreamError) WithSessionID(id string) *StreamError {
	e.SessionID = id
	return e
}

func (e *StreamError) Error() string {
	prefix := "stream error"
	if e.SessionID != "" {
		prefix = fmt.Sprintf("stream error [session=%s]", e.SessionID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is reports whether target is a StreamError or matches the wrapped cause.
func (e *StreamError) Is(target error) bool {
	if _, ok := target.(*StreamError); ok {
		return true
	}
	return e.is(target)
}

// ConfigError represents an invalid request field or configuration value.
// Configuration errors are the only failures surfaced to the client before
// any round is attempted.
type ConfigError struct {
	baseError
	Field string
	Value any
}

// NewConfigError creates a ConfigError for the named field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		baseError: baseError{message: message, cause: ErrInvalidRequest},
		Field:     field,
	}
}

// WithValue attaches the offending value to the error context.
func (e *ConfigError) WithValue(v any) *ConfigError {
	e.Value = v
	return e
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("config %s: %s (got: %v)", e.Field, e.message, e.Value)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.message)
}

// Is reports whether target is a ConfigError or matches the wrapped cause.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	return e.is(target)
}

// PersistenceError represents a failed background write to the memory store
// or the analytics backend. These are logged by the dispatcher and discarded.
type PersistenceError struct {
	baseError
	Op string // e.g. "memory.store", "analytics.record"
}

// NewPersistenceError creates a PersistenceError for the named operation.
func NewPersistenceError(op string, cause error) *PersistenceError {
	return &PersistenceError{
		baseError: baseError{message: op, cause: cause},
		Op:        op,
	}
}

func (e *PersistenceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("persistence %s failed", e.Op)
}

// Is reports whether target is a PersistenceError or matches the wrapped cause.
func (e *PersistenceError) Is(target error) bool {
	if _, ok := target.(*PersistenceError); ok {
		return true
	}
	return e.is(target)
}

// IsAdapterFailure reports whether err is (or wraps) an AdapterError.
// Adapter failures are recovered within a round; the loop continues.
func IsAdapterFailure(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}

// IsStreamTerminated reports whether err indicates the consumer is gone:
// either an explicit StreamError or one of the stream sentinels.
func IsStreamTerminated(err error) bool {
	if err == nil {
		return false
	}
	var se *StreamError
	if errors.As(err, &se) {
		return true
	}
	return errors.Is(err, ErrStreamTerminated) || errors.Is(err, ErrStreamStalled)
}

// IsConfiguration reports whether err is (or wraps) a ConfigError.
func IsConfiguration(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, ErrInvalidRequest)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsRetryable reports whether the error is transient: a backend that was
// unreachable or a store that was briefly unavailable may succeed on retry.
// Configuration errors and terminated streams are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsConfiguration(err) || IsStreamTerminated(err) {
		return false
	}
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrMemoryUnavailable) ||
		errors.Is(err, ErrAnalyticsUnavailable)
}
