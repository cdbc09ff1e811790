package llm

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON schema types understood by Schema.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Schema is the subset of JSON Schema every provider can enforce or be told
// about: typed objects, arrays, strings with optional enums, numbers, booleans.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Object builds an object schema; every name in required must be a property.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// Array builds an array schema.
func Array(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

// String builds a string schema.
func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

// Enum builds a string schema restricted to values.
func Enum(description string, values ...string) *Schema {
	return &Schema{Type: TypeString, Description: description, Enum: values}
}

// Boolean builds a boolean schema.
func Boolean(description string) *Schema {
	return &Schema{Type: TypeBoolean, Description: description}
}

// JSON returns the schema document.
func (s *Schema) JSON() []byte {
	data, _ := json.Marshal(s)
	return data
}

// Genai converts the schema for Gemini's structured output.
func (s *Schema) Genai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       s.Items.Genai(),
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeString:
		out.Type = genai.TypeString
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.Genai()
		}
	}
	return out
}

// Validate checks that doc conforms to the schema. Properties not declared
// by the schema are allowed.
func (s *Schema) Validate(doc string) error {
	if !gjson.Valid(doc) {
		return fmt.Errorf("response is not valid JSON")
	}
	return s.validate("$", gjson.Parse(doc))
}

func (s *Schema) validate(path string, v gjson.Result) error {
	switch s.Type {
	case TypeObject:
		if !v.IsObject() {
			return fmt.Errorf("%s: expected object", path)
		}
		present := make(map[string]bool)
		var err error
		v.ForEach(func(key, value gjson.Result) bool {
			present[key.Str] = true
			if prop, ok := s.Properties[key.Str]; ok {
				err = prop.validate(path+"."+key.Str, value)
			}
			return err == nil
		})
		if err != nil {
			return err
		}
		for _, r := range s.Required {
			if !present[r] {
				return fmt.Errorf("%s: missing required property %q", path, r)
			}
		}
	case TypeArray:
		if !v.IsArray() {
			return fmt.Errorf("%s: expected array", path)
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range v.Array() {
			if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	case TypeString:
		if v.Type != gjson.String {
			return fmt.Errorf("%s: expected string", path)
		}
		if len(s.Enum) > 0 && !contains(s.Enum, v.Str) {
			return fmt.Errorf("%s: %q is not one of %s", path, v.Str, strings.Join(s.Enum, ", "))
		}
	case TypeNumber, TypeInteger:
		if v.Type != gjson.Number {
			return fmt.Errorf("%s: expected number", path)
		}
		if s.Type == TypeInteger && v.Num != float64(int64(v.Num)) {
			return fmt.Errorf("%s: expected integer", path)
		}
	case TypeBoolean:
		if v.Type != gjson.True && v.Type != gjson.False {
			return fmt.Errorf("%s: expected boolean", path)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
