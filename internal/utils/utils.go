package utils

import "strings"

// maskMarker separates the visible head and tail of a masked secret.
const maskMarker = "****"

// MaskAPIKey masks the API key for display. Empty keys stay empty so callers
// can tell "not set" apart from "set but hidden".
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return maskMarker
	}
	return key[:4] + maskMarker + key[len(key)-4:]
}

// IsMaskOf reports whether masked is what MaskAPIKey produces for key.
func IsMaskOf(masked, key string) bool {
	return key != "" && masked == MaskAPIKey(key)
}

// LooksMasked reports whether s contains the mask marker.
func LooksMasked(s string) bool {
	return strings.Contains(s, maskMarker)
}
