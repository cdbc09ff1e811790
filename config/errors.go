package config

import (
	"errors"
	"strings"

	"maestro/config/validation"
)

var (
	// ErrNoActiveModel means no config carries the fields its provider needs.
	ErrNoActiveModel = errors.New("no active model configured: add an API key (or an Ollama base URL) to at least one model")

	// ErrInvalidConfigList is wrapped by every ValidationError.
	ErrInvalidConfigList = errors.New("invalid model config list")

	// ErrCorruptPersistedState is logged when stored configs cannot be used.
	// LoadConfigs recovers from it and never returns it.
	ErrCorruptPersistedState = errors.New("corrupt persisted model configs")

	// ErrUndecryptable means the stored keys do not open with the configured
	// secret. The stored value is kept and Edit refuses to overwrite it.
	ErrUndecryptable = errors.New("stored model configs cannot be decrypted with the configured secret")
)

// ValidationError lists every field problem found by SaveConfigs.
type ValidationError struct {
	Fields []validation.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return ErrInvalidConfigList.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfigList
}
