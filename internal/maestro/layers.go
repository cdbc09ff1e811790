// Package maestro holds the MAESTRO threat-model taxonomy, the model-backed
// generation flows and the persisted workspace.
package maestro

import "strings"

// LayerAll marks threats that span every layer.
const LayerAll = "All"

// Layer is one of the seven MAESTRO layers.
type Layer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var layers = []Layer{
	{ID: "foundation-models", Name: "Foundation Models", Description: "Core AI models and their architectures."},
	{ID: "data-operations", Name: "Data Operations", Description: "Data pipelines, storage, and processing."},
	{ID: "agent-frameworks", Name: "Agent Frameworks", Description: "Frameworks for building agents."},
	{ID: "deployment-infrastructure", Name: "Deployment & Infrastructure", Description: "Hosting infrastructure for agents."},
	{ID: "evaluation-observability", Name: "Evaluation & Observability", Description: "Monitoring, logging, and evaluation."},
	{ID: "security-compliance", Name: "Security & Compliance", Description: "Security controls and compliance."},
	{ID: "agent-ecosystem", Name: "Agent Ecosystem", Description: "Interactions with other systems."},
}

// Layers returns the layers in taxonomy order.
func Layers() []Layer {
	out := make([]Layer, len(layers))
	copy(out, layers)
	return out
}

// FindLayer looks a layer up by id or name, ignoring case.
func FindLayer(s string) (Layer, bool) {
	s = strings.TrimSpace(s)
	for _, l := range layers {
		if strings.EqualFold(l.ID, s) || strings.EqualFold(l.Name, s) {
			return l, true
		}
	}
	return Layer{}, false
}

// layerOrder returns the taxonomy position of a layer name, -1 if unknown.
func layerOrder(name string) int {
	for i, l := range layers {
		if l.Name == name {
			return i
		}
	}
	return -1
}
