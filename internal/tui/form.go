package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"maestro/config/models"
	"maestro/config/validation"
	"maestro/internal/providers"
)

// FormField represents the index of each form field
const (
	FormFieldProvider = iota
	FormFieldModelID
	FormFieldAPIKey
	FormFieldBaseURL
	FormFieldLabel
	FormFieldCount // Total number of fields
)

// FormData represents the data collected from the form
type FormData struct {
	Provider string
	ModelID  string
	APIKey   string
	BaseURL  string
	Label    string
}

var inputValidator = validation.NewInputValidator()

// Validate checks the typed values. Missing connection fields are allowed:
// such a config is saved but stays inactive.
func (f *FormData) Validate() error {
	provider := strings.TrimSpace(f.Provider)
	if err := inputValidator.ValidateProvider(provider); err != nil {
		return err
	}
	if err := inputValidator.ValidateModelName(f.ModelID); err != nil {
		return err
	}
	if err := inputValidator.ValidateAPIKey(strings.TrimSpace(f.APIKey)); err != nil {
		return err
	}
	if err := inputValidator.ValidateURL(strings.TrimSpace(f.BaseURL)); err != nil {
		return err
	}
	return inputValidator.ValidateLabel(f.Label)
}

// Apply copies the form values onto cfg, keeping its id.
func (f *FormData) Apply(cfg models.ModelConfig) models.ModelConfig {
	name := providers.Name(strings.TrimSpace(f.Provider))
	cfg.Provider = name
	cfg.ModelID = strings.TrimSpace(f.ModelID)
	cfg.APIKey = strings.TrimSpace(f.APIKey)
	cfg.BaseURL = strings.TrimSpace(f.BaseURL)
	if p, err := providers.Get(name); err == nil {
		cfg.BaseURL = p.NormalizeConfig(cfg.BaseURL)
	}
	cfg.Label = strings.TrimSpace(f.Label)
	return cfg
}

// Form styles
var (
	formLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(14)

	formFocusedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	formErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	formHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 40
	in.Prompt = ""
	return in
}

// FormInputs creates and initializes form input fields
func FormInputs() []textinput.Model {
	inputs := make([]textinput.Model, FormFieldCount)

	inputs[FormFieldProvider] = newInput("google | openai | together | ollama", 32)
	inputs[FormFieldModelID] = newInput("gemini-2.0-flash", 128)
	inputs[FormFieldAPIKey] = newInput("API key", 256)
	inputs[FormFieldAPIKey].EchoMode = textinput.EchoPassword
	inputs[FormFieldAPIKey].EchoCharacter = '•'
	inputs[FormFieldBaseURL] = newInput("https://api.example.com", 256)
	inputs[FormFieldLabel] = newInput("My model", 64)

	inputs[FormFieldProvider].Focus()
	return inputs
}

// GetFormData extracts FormData from form inputs
func GetFormData(inputs []textinput.Model) FormData {
	return FormData{
		Provider: inputs[FormFieldProvider].Value(),
		ModelID:  inputs[FormFieldModelID].Value(),
		APIKey:   inputs[FormFieldAPIKey].Value(),
		BaseURL:  inputs[FormFieldBaseURL].Value(),
		Label:    inputs[FormFieldLabel].Value(),
	}
}

// SetFormData populates form inputs with existing data
func SetFormData(inputs []textinput.Model, data FormData) {
	inputs[FormFieldProvider].SetValue(data.Provider)
	inputs[FormFieldModelID].SetValue(data.ModelID)
	inputs[FormFieldAPIKey].SetValue(data.APIKey)
	inputs[FormFieldBaseURL].SetValue(data.BaseURL)
	inputs[FormFieldLabel].SetValue(data.Label)
}

// FormDataFrom fills a form from a stored config.
func FormDataFrom(cfg models.ModelConfig) FormData {
	return FormData{
		Provider: string(cfg.Provider),
		ModelID:  cfg.ModelID,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Label:    cfg.Label,
	}
}

// ApplySuggestions fills the model id and base URL with the defaults of the
// provider now typed in the form, when moving from prev. Values the user
// typed themselves are kept; values that were prev's defaults are replaced.
func ApplySuggestions(inputs []textinput.Model, prev providers.Name) providers.Name {
	next := providers.Name(strings.TrimSpace(inputs[FormFieldProvider].Value()))
	if next == prev {
		return prev
	}
	p, err := providers.Get(next)
	if err != nil {
		return prev
	}

	var oldModel, oldURL string
	if old, err := providers.Get(prev); err == nil {
		oldModel, oldURL = old.DefaultModel(), old.DefaultBaseURL()
	}
	if v := inputs[FormFieldModelID].Value(); v == "" || v == oldModel {
		inputs[FormFieldModelID].SetValue(p.DefaultModel())
	}
	if v := inputs[FormFieldBaseURL].Value(); v == "" || v == oldURL {
		inputs[FormFieldBaseURL].SetValue(p.DefaultBaseURL())
	}
	return next
}

// FormLabels returns the labels for each form field
func FormLabels() []string {
	return []string{
		"Provider:",
		"Model ID:",
		"API Key:",
		"Base URL:",
		"Label:",
	}
}

// FormHints returns the hint text for each form field
func FormHints() []string {
	return []string{
		"one of " + strings.Join(providerNames(), ", "),
		"model id sent to the provider",
		"required for hosted providers, unused by ollama",
		"required for ollama, optional otherwise",
		"display name, at most 50 characters",
	}
}

func providerNames() []string {
	list := providers.List()
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = string(n)
	}
	return out
}

// RenderForm renders the form view with inputs
func RenderForm(inputs []textinput.Model, focusIndex int, title string, errorMsg string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", 50)))
	b.WriteString("\n\n")

	labels := FormLabels()
	hints := FormHints()

	for i, input := range inputs {
		if i == focusIndex {
			b.WriteString(formFocusedStyle.Render(labels[i]))
		} else {
			b.WriteString(formLabelStyle.Render(labels[i]))
		}
		b.WriteString(" ")
		b.WriteString(input.View())
		b.WriteString("\n")

		if i == focusIndex {
			b.WriteString(formLabelStyle.Render(""))
			b.WriteString(" ")
			b.WriteString(formHintStyle.Render(hints[i]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if errorMsg != "" {
		b.WriteString("\n")
		b.WriteString(formErrorStyle.Render("✗ " + errorMsg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", 50)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Tab/↓: next │ Shift+Tab/↑: previous │ Enter: save │ Esc: cancel"))

	return b.String()
}

// NextFormField moves focus to the next form field
func NextFormField(inputs []textinput.Model, currentFocus int) int {
	inputs[currentFocus].Blur()
	nextFocus := (currentFocus + 1) % len(inputs)
	inputs[nextFocus].Focus()
	return nextFocus
}

// PrevFormField moves focus to the previous form field
func PrevFormField(inputs []textinput.Model, currentFocus int) int {
	inputs[currentFocus].Blur()
	prevFocus := currentFocus - 1
	if prevFocus < 0 {
		prevFocus = len(inputs) - 1
	}
	inputs[prevFocus].Focus()
	return prevFocus
}
