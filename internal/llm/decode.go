package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// extractJSON strips markdown fences and surrounding chatter from a model
// answer, returning the outermost JSON object.
func extractJSON(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		if nl := strings.IndexByte(t, '\n'); nl >= 0 {
			t = t[nl+1:]
		} else {
			t = strings.TrimPrefix(t, "```")
		}
		t = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
	}
	if gjson.Valid(t) {
		return t
	}

	start, end := strings.IndexByte(t, '{'), strings.LastIndexByte(t, '}')
	if start >= 0 && end > start && gjson.Valid(t[start:end+1]) {
		return t[start : end+1]
	}
	return t
}

func decode(ref ModelRef, schema *Schema, text string, out any) error {
	doc := extractJSON(text)
	if doc == "" {
		return formatError(ref, "empty response", nil)
	}
	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			return formatError(ref, err.Error(), err)
		}
	} else if !gjson.Valid(doc) {
		return formatError(ref, "response is not valid JSON", nil)
	}
	if out == nil {
		return nil
	}
	if err := json.UnmarshalFromString(doc, out); err != nil {
		return formatError(ref, "failed to decode response: "+err.Error(), err)
	}
	return nil
}
