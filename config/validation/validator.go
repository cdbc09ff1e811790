package validation

import (
	"fmt"
	"strings"

	"maestro/config/models"
	"maestro/internal/providers"
)

// FieldError describes one problem with one entry of a config list.
type FieldError struct {
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("entry %d (%s): %s %s", e.Index, e.ID, e.Field, e.Message)
	}
	return fmt.Sprintf("entry %d: %s %s", e.Index, e.Field, e.Message)
}

// Validator checks the structural rules every stored config list obeys.
// Whether an entry is usable (has its credentials) is not checked here.
type Validator struct{}

// NewValidator creates a new Validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateList returns every field problem of the list; nil means valid.
func (v *Validator) ValidateList(configs []models.ModelConfig) []FieldError {
	var errs []FieldError
	seen := make(map[string]int, len(configs))

	for i, c := range configs {
		errs = append(errs, v.validateEntry(i, c)...)

		if c.ID == "" {
			continue
		}
		if first, dup := seen[c.ID]; dup {
			errs = append(errs, FieldError{
				Index:   i,
				ID:      c.ID,
				Field:   "id",
				Message: fmt.Sprintf("duplicates entry %d", first),
			})
			continue
		}
		seen[c.ID] = i
	}
	return errs
}

func (v *Validator) validateEntry(i int, c models.ModelConfig) []FieldError {
	var errs []FieldError
	add := func(field, msg string) {
		errs = append(errs, FieldError{Index: i, ID: c.ID, Field: field, Message: msg})
	}

	if c.ID == "" {
		add("id", "is required")
	}
	if !providers.Known(c.Provider) {
		add("provider", fmt.Sprintf("%q is not one of %s", c.Provider, providerList()))
	}
	if c.ModelID == "" {
		add("modelId", "is required")
	}
	if c.Label == "" {
		add("label", "is required")
	}
	return errs
}

func providerList() string {
	names := providers.List()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
