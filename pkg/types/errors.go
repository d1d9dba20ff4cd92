package types

import (
	"errors"
	"fmt"
	"strings"
)

// Backend lifecycle errors.
var (
	ErrDetached         = errors.New("backend is detached")
	ErrAlreadyAttached  = errors.New("backend is already attached")
	ErrInvalidNamespace = errors.New("invalid storage namespace")
)

// Entity operation errors.
var (
	ErrNotFound               = errors.New("entity not found")
	ErrInvalidID              = errors.New("invalid entity ID")
	ErrConcurrentModification = errors.New("entity was modified concurrently")
	ErrUnsupportedValue       = errors.New("unsupported value type")
)

// ConfigError reports a malformed or incomplete domain configuration.
// Field is the attribute path (e.g. "fields[2].key").
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// FieldError is a single field-level rule violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Message }

// ValidationError carries every violation found for one entity.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// Messages returns the violation messages in the order they were found.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return msgs
}

// HasField reports whether any violation refers to the given field key.
func (e *ValidationError) HasField(key string) bool {
	for _, fe := range e.Errors {
		if fe.Field == key {
			return true
		}
	}
	return false
}

// AsValidationError unwraps err to a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
