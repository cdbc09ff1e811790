package llm

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompt is a named text template rendered into Request.Prompt.
type Prompt struct {
	name string
	tmpl *template.Template
}

// MustPrompt parses text; it panics on a malformed template, so it is meant
// for package-level prompt definitions.
func MustPrompt(name, text string) *Prompt {
	tmpl := template.Must(template.New(name).Option("missingkey=error").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(text))
	return &Prompt{name: name, tmpl: tmpl}
}

// Name returns the prompt name.
func (p *Prompt) Name() string { return p.name }

// Render executes the template with data.
func (p *Prompt) Render(data any) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", p.name, err)
	}
	return b.String(), nil
}
