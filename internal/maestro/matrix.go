package maestro

import "unicode/utf16"

// Likelihood is the row axis of the risk matrix.
type Likelihood string

const (
	LikelihoodLow    Likelihood = "Low"
	LikelihoodMedium Likelihood = "Medium"
	LikelihoodHigh   Likelihood = "High"
)

// Likelihoods lists the matrix rows from least to most likely.
var Likelihoods = []Likelihood{LikelihoodLow, LikelihoodMedium, LikelihoodHigh}

// LikelihoodOf is a placeholder estimate derived from the threat name; it
// only spreads threats over the rows until real likelihood data exists. The
// name is measured in UTF-16 code units so browser clients place threats in
// the same rows.
func LikelihoodOf(t Threat) Likelihood {
	n := len(utf16.Encode([]rune(t.Name)))
	return Likelihoods[n%len(Likelihoods)]
}

// RiskMatrix buckets threats by likelihood and risk.
type RiskMatrix struct {
	cells map[Likelihood]map[RiskLevel][]Threat
}

// BuildRiskMatrix places every threat with a known risk level.
func BuildRiskMatrix(threats []Threat) *RiskMatrix {
	m := &RiskMatrix{cells: make(map[Likelihood]map[RiskLevel][]Threat)}
	for _, l := range Likelihoods {
		m.cells[l] = make(map[RiskLevel][]Threat)
	}
	for _, t := range threats {
		if _, err := ParseRiskLevel(string(t.Risk)); err != nil {
			continue
		}
		l := LikelihoodOf(t)
		m.cells[l][t.Risk] = append(m.cells[l][t.Risk], t)
	}
	return m
}

// Count returns the number of threats at one likelihood and risk.
func (m *RiskMatrix) Count(l Likelihood, r RiskLevel) int {
	return len(m.cells[l][r])
}

// Total is the number of threats placed in the matrix.
func (m *RiskMatrix) Total() int {
	n := 0
	for _, row := range m.cells {
		for _, c := range row {
			n += len(c)
		}
	}
	return n
}

// LayerGroup is the threats of one layer.
type LayerGroup struct {
	Layer   string   `json:"layer"`
	Threats []Threat `json:"threats"`
}

// GroupByLayer groups threats by layer: taxonomy layers first in taxonomy
// order, then any other layer (such as "All") in first-seen order. Empty
// groups are omitted.
func GroupByLayer(threats []Threat) []LayerGroup {
	byLayer := make(map[string][]Threat)
	var others []string
	for _, t := range threats {
		if _, ok := byLayer[t.Layer]; !ok && layerOrder(t.Layer) < 0 {
			others = append(others, t.Layer)
		}
		byLayer[t.Layer] = append(byLayer[t.Layer], t)
	}

	var groups []LayerGroup
	for _, l := range layers {
		if ts := byLayer[l.Name]; len(ts) > 0 {
			groups = append(groups, LayerGroup{Layer: l.Name, Threats: ts})
		}
	}
	for _, name := range others {
		groups = append(groups, LayerGroup{Layer: name, Threats: byLayer[name]})
	}
	return groups
}
