package maestro

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"maestro/config/models"
	"maestro/internal/llm"
)

var (
	ErrEmptyDescription = errors.New("system description cannot be empty")
	ErrUnknownLayer     = errors.New("unknown MAESTRO layer")
)

// Selector hands out the model to use for the next call.
type Selector interface {
	Next() (models.ModelConfig, error)
}

// Generator runs the model-backed flows. Every call selects a fresh model,
// so consecutive calls rotate through the active configs.
type Generator struct {
	selector Selector
	invoker  llm.Invoker
	log      *logrus.Entry
}

// NewGenerator creates a Generator.
func NewGenerator(selector Selector, invoker llm.Invoker, log *logrus.Entry) *Generator {
	if log == nil {
		log = logrus.WithField("component", "maestro")
	}
	return &Generator{selector: selector, invoker: invoker, log: log}
}

// Result carries the label of the model that produced an answer.
type Result[T any] struct {
	Value T
	Model string
}

func (g *Generator) run(ctx context.Context, prompt *llm.Prompt, schema *llm.Schema, data any, out any) (string, error) {
	text, err := prompt.Render(data)
	if err != nil {
		return "", err
	}
	cfg, err := g.selector.Next()
	if err != nil {
		return "", err
	}
	ref := llm.RefFromConfig(cfg)
	g.log.WithFields(logrus.Fields{"flow": prompt.Name(), "model": cfg.Label}).Info("running flow")

	if err := g.invoker.Invoke(ctx, ref, llm.Request{Name: prompt.Name(), Prompt: text, Schema: schema}, out); err != nil {
		return cfg.Label, err
	}
	return cfg.Label, nil
}

// GenerateThreats asks the next model for 2-3 threats in layer. layer may be
// a layer id or name; the threats carry the layer name.
func (g *Generator) GenerateThreats(ctx context.Context, description, layer string) (Result[[]Threat], error) {
	if strings.TrimSpace(description) == "" {
		return Result[[]Threat]{}, ErrEmptyDescription
	}
	layerName := strings.TrimSpace(layer)
	if l, ok := FindLayer(layer); ok {
		layerName = l.Name
	}
	if layerName == "" {
		return Result[[]Threat]{}, fmt.Errorf("%w: empty", ErrUnknownLayer)
	}

	var out struct {
		ThreatModel []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Risk        string `json:"risk"`
		} `json:"threatModel"`
	}
	label, err := g.run(ctx, threatModelPrompt, threatModelSchema, map[string]string{
		"SystemDescription": description,
		"Layer":             layerName,
	}, &out)
	if err != nil {
		return Result[[]Threat]{Model: label}, err
	}

	threats := make([]Threat, 0, len(out.ThreatModel))
	for _, t := range out.ThreatModel {
		risk, err := ParseRiskLevel(t.Risk)
		if err != nil {
			return Result[[]Threat]{Model: label}, fmt.Errorf("model returned threat %q: %w", t.Name, err)
		}
		threats = append(threats, Threat{
			ID:              NewThreatID(),
			Name:            t.Name,
			Description:     t.Description,
			Risk:            risk,
			Layer:           layerName,
			Vulnerabilities: []string{},
			AttackVectors:   []string{},
			Mitigations:     []string{},
			Tags:            []string{},
		})
	}
	return Result[[]Threat]{Value: threats, Model: label}, nil
}

// GenerateDiagram asks the next model for the architecture graph of the
// system. Links to unknown nodes are dropped.
func (g *Generator) GenerateDiagram(ctx context.Context, description string) (Result[Diagram], error) {
	if strings.TrimSpace(description) == "" {
		return Result[Diagram]{}, ErrEmptyDescription
	}

	var d Diagram
	label, err := g.run(ctx, diagramPrompt, diagramSchema, map[string]string{"SystemDescription": description}, &d)
	if err != nil {
		return Result[Diagram]{Model: label}, err
	}
	if dropped := d.Clean(); len(dropped) > 0 {
		g.log.WithField("dropped", dropped).Warn("removed invalid diagram elements")
	}
	return Result[Diagram]{Value: d, Model: label}, nil
}

// GenerateLayerPrompt asks the next model to write a threat-analysis prompt
// for one layer. Unlike GenerateThreats the layer must be one of the seven.
func (g *Generator) GenerateLayerPrompt(ctx context.Context, description, layer, templates string) (Result[string], error) {
	if strings.TrimSpace(description) == "" {
		return Result[string]{}, ErrEmptyDescription
	}
	l, ok := FindLayer(layer)
	if !ok {
		return Result[string]{}, fmt.Errorf("%w: %q", ErrUnknownLayer, layer)
	}

	var out struct {
		Prompt string `json:"prompt"`
	}
	label, err := g.run(ctx, layerPromptPrompt, layerPromptSchema, map[string]string{
		"SystemDescription": description,
		"Layer":             l.Name,
		"ThreatTemplates":   templates,
	}, &out)
	if err != nil {
		return Result[string]{Model: label}, err
	}
	return Result[string]{Value: out.Prompt, Model: label}, nil
}
