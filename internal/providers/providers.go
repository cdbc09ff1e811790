package providers

import (
	"errors"
	"fmt"
	"sort"
)

// Name identifies a provider variant.
type Name string

// Supported providers. The set is closed: a config naming anything else is invalid.
const (
	Google   Name = "google"
	OpenAI   Name = "openai"
	Together Name = "together"
	Ollama   Name = "ollama"
)

// Field names a connection field a provider may require.
type Field string

const (
	FieldModelID Field = "modelId"
	FieldAPIKey  Field = "apiKey"
	FieldBaseURL Field = "baseURL"
)

// Provider defines the standard interface for LLM providers
type Provider interface {
	// Name returns the provider's name (e.g., "google", "ollama")
	Name() Name
	// DisplayName returns the human readable provider name
	DisplayName() string
	// DefaultBaseURL returns the default base URL for the provider, empty when the SDK decides
	DefaultBaseURL() string
	// DefaultModel returns the suggested model for new configs
	DefaultModel() string
	// Requires lists the fields that must be non-empty for a config to be usable
	Requires() []Field
	// NormalizeConfig normalizes the base URL (e.g., strip trailing slash)
	NormalizeConfig(baseURL string) string
}

// registry stores all registered providers
var registry = make(map[Name]Provider)

// Register registers a new provider
func Register(provider Provider) {
	registry[provider.Name()] = provider
}

// Get returns a provider by name
func Get(name Name) (Provider, error) {
	provider, ok := registry[name]
	if !ok {
		return nil, errors.New("unknown provider: " + string(name))
	}
	return provider, nil
}

// Known reports whether name is one of the supported providers.
func Known(name Name) bool {
	_, ok := registry[name]
	return ok
}

// List returns all registered provider names in a stable order
func List() []Name {
	var list []Name
	for name := range registry {
		list = append(list, name)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// Satisfied reports whether every field the provider requires is present.
// Unknown providers are never satisfied.
func Satisfied(name Name, modelID, apiKey, baseURL string) bool {
	provider, err := Get(name)
	if err != nil {
		return false
	}
	values := map[Field]string{
		FieldModelID: modelID,
		FieldAPIKey:  apiKey,
		FieldBaseURL: baseURL,
	}
	for _, f := range provider.Requires() {
		if values[f] == "" {
			return false
		}
	}
	return true
}

// Missing returns the required fields that are empty, in declaration order.
func Missing(name Name, modelID, apiKey, baseURL string) ([]Field, error) {
	provider, err := Get(name)
	if err != nil {
		return nil, err
	}
	values := map[Field]string{
		FieldModelID: modelID,
		FieldAPIKey:  apiKey,
		FieldBaseURL: baseURL,
	}
	var missing []Field
	for _, f := range provider.Requires() {
		if values[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing, nil
}

// keyedProvider covers the hosted providers that authenticate with an API key.
type keyedProvider struct {
	name         Name
	displayName  string
	baseURL      string
	defaultModel string
}

func (p *keyedProvider) Name() Name { return p.name }

func (p *keyedProvider) DisplayName() string { return p.displayName }

func (p *keyedProvider) DefaultBaseURL() string { return p.baseURL }

func (p *keyedProvider) DefaultModel() string { return p.defaultModel }

func (p *keyedProvider) Requires() []Field {
	return []Field{FieldAPIKey, FieldModelID}
}

func (p *keyedProvider) NormalizeConfig(baseURL string) string {
	return trimTrailingSlash(baseURL)
}

// OllamaProvider talks to a self-hosted Ollama server; it needs an address, not a key.
type OllamaProvider struct{}

func (p *OllamaProvider) Name() Name { return Ollama }

func (p *OllamaProvider) DisplayName() string { return "Ollama (Local)" }

func (p *OllamaProvider) DefaultBaseURL() string { return "http://localhost:11434" }

func (p *OllamaProvider) DefaultModel() string { return "llama3" }

func (p *OllamaProvider) Requires() []Field {
	return []Field{FieldModelID, FieldBaseURL}
}

func (p *OllamaProvider) NormalizeConfig(baseURL string) string {
	return trimTrailingSlash(baseURL)
}

func trimTrailingSlash(baseURL string) string {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return baseURL
}

// NewGoogleProvider returns the Gemini API provider.
func NewGoogleProvider() Provider {
	return &keyedProvider{name: Google, displayName: "Google", defaultModel: "gemini-2.0-flash"}
}

// NewOpenAIProvider returns the OpenAI provider.
func NewOpenAIProvider() Provider {
	return &keyedProvider{name: OpenAI, displayName: "OpenAI", baseURL: "https://api.openai.com/v1", defaultModel: "gpt-4o"}
}

// NewTogetherProvider returns the Together AI provider, which speaks the OpenAI wire format.
func NewTogetherProvider() Provider {
	return &keyedProvider{
		name:         Together,
		displayName:  "Together AI",
		baseURL:      "https://api.together.xyz/v1",
		defaultModel: "meta-llama/Llama-3-8b-chat-hf",
	}
}

// MustGet returns a provider or panics; for use with the built-in constants only.
func MustGet(name Name) Provider {
	p, err := Get(name)
	if err != nil {
		panic(fmt.Sprintf("providers: %v", err))
	}
	return p
}

func init() {
	Register(NewGoogleProvider())
	Register(NewOpenAIProvider())
	Register(NewTogetherProvider())
	Register(&OllamaProvider{})
}
