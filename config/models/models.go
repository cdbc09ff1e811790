package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"maestro/internal/providers"
	"maestro/internal/utils"
)

// ModelConfig is one provider credential set the registry can hand out.
// Slice order is both the display order and the rotation order.
type ModelConfig struct {
	ID       string         `json:"id"`
	Provider providers.Name `json:"provider"`
	ModelID  string         `json:"modelId"`
	APIKey   string         `json:"apiKey,omitempty"`
	BaseURL  string         `json:"baseURL,omitempty"`
	Label    string         `json:"label"`
}

// IsActive reports whether the config carries every field its provider needs.
func (c ModelConfig) IsActive() bool {
	return providers.Satisfied(c.Provider, c.ModelID, c.APIKey, c.BaseURL)
}

// Masked returns a copy safe for display.
func (c ModelConfig) Masked() ModelConfig {
	c.APIKey = utils.MaskAPIKey(c.APIKey)
	return c
}

// NewID returns a fresh opaque config id.
func NewID() string {
	return uuid.NewString()
}

// MaskAll masks every entry of a list.
func MaskAll(configs []ModelConfig) []ModelConfig {
	out := make([]ModelConfig, len(configs))
	for i, c := range configs {
		out[i] = c.Masked()
	}
	return out
}

// ErrUnknownMaskedKey is returned for a masked apiKey that does not mask the
// stored key of the same id. Saving it would replace a real key with its mask.
var ErrUnknownMaskedKey = errors.New("masked apiKey does not match a stored key")

// RestoreMaskedKeys returns incoming with fresh ids for entries that have
// none. An entry whose key is the mask of the stored key for the same id gets
// the stored key back, so a masked list can be edited and sent back. Any
// other masked key is rejected.
func RestoreMaskedKeys(current, incoming []ModelConfig) ([]ModelConfig, error) {
	stored := make(map[string]string, len(current))
	for _, c := range current {
		stored[c.ID] = c.APIKey
	}
	out := make([]ModelConfig, len(incoming))
	for i, c := range incoming {
		if key, ok := stored[c.ID]; ok && c.ID != "" && utils.IsMaskOf(c.APIKey, key) {
			c.APIKey = key
		} else if utils.LooksMasked(c.APIKey) {
			return nil, fmt.Errorf("entry %d (%s): %w", i, c.Label, ErrUnknownMaskedKey)
		}
		if c.ID == "" {
			c.ID = NewID()
		}
		out[i] = c
	}
	return out, nil
}
