package validation

import (
	"fmt"
	"strings"
	"unicode"

	"maestro/internal/providers"
	"maestro/internal/utils"
)

// maxLabelLength bounds labels so they fit the TUI list.
const maxLabelLength = 50

// InputValidator validates values typed by a user in the CLI or TUI forms.
// It is stricter than Validator, which only guards stored data.
type InputValidator struct {
}

// NewInputValidator creates a new InputValidator
func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateLabel checks if a label is valid
func (iv *InputValidator) ValidateLabel(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("label cannot be empty")
	}
	if strings.ContainsAny(label, "<>\"'&\\") {
		return fmt.Errorf("label contains invalid characters")
	}
	if len([]rune(label)) > maxLabelLength {
		return fmt.Errorf("label is too long (max %d characters)", maxLabelLength)
	}
	return nil
}

// ValidateModelName checks if a model id is valid; ids like
// "meta-llama/Llama-3-8b-chat-hf" or "llama3:8b" are allowed.
func (iv *InputValidator) ValidateModelName(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if strings.IndexFunc(model, unicode.IsSpace) >= 0 {
		return fmt.Errorf("model name cannot contain spaces")
	}
	if strings.ContainsAny(model, "<>\"'&\\") {
		return fmt.Errorf("model name contains invalid characters")
	}
	return nil
}

// ValidateAPIKey rejects keys with embedded whitespace, the usual sign of a
// bad paste.
func (iv *InputValidator) ValidateAPIKey(key string) error {
	if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return fmt.Errorf("API key cannot contain whitespace")
	}
	return nil
}

// ValidateURL checks if a URL is valid; empty is allowed.
func (iv *InputValidator) ValidateURL(url string) error {
	if url != "" && !utils.ValidateURL(url) {
		return fmt.Errorf("invalid URL format")
	}
	return nil
}

// ValidateProvider checks the provider name against the supported set.
func (iv *InputValidator) ValidateProvider(name string) error {
	if !providers.Known(providers.Name(name)) {
		return fmt.Errorf("unknown provider %q (supported: %s)", name, providerList())
	}
	return nil
}
