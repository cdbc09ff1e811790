package maestro

import (
	"fmt"

	"github.com/google/uuid"
)

// RiskLevel grades a threat.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// RiskLevels lists the levels from least to most severe.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// ParseRiskLevel accepts exactly the level names the threat model schema allows.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for _, r := range RiskLevels {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid risk level %q", s)
}

// Threat is one entry of the threat model.
type Threat struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Vulnerabilities []string  `json:"vulnerabilities"`
	AttackVectors   []string  `json:"attackVectors"`
	Risk            RiskLevel `json:"risk"`
	Mitigations     []string  `json:"mitigations"`
	Tags            []string  `json:"tags"`
	Layer           string    `json:"layer"`
}

// NewThreatID returns a fresh threat id.
func NewThreatID() string {
	return "threat-" + uuid.NewString()
}

// InitialThreats seeds a new workspace.
func InitialThreats() []Threat {
	return []Threat{{
		ID:          "threat-1",
		Name:        "Cross-Layer Information Leakage",
		Description: "Sensitive data or system-level details from one layer are inadvertently exposed in the outputs or logs of another layer, potentially revealing vulnerabilities or confidential information.",
		Vulnerabilities: []string{
			"Insufficient data sanitization between layers",
			"Verbose logging",
		},
		AttackVectors: []string{
			"Probing agent with specific inputs to trigger revealing error messages",
			"Gaining access to system logs",
		},
		Risk: RiskHigh,
		Mitigations: []string{
			"Implement strict data filtering and redaction at layer boundaries.",
			"Configure logging levels to avoid exposing sensitive details in production.",
		},
		Tags:  []string{"data-leakage", "system-wide"},
		Layer: LayerAll,
	}}
}

// DefaultSystemDescription seeds a new workspace.
const DefaultSystemDescription = `An autonomous financial research agent designed to help investors.

Core Functionality:
- The agent ingests real-time financial news from various online sources (APIs, RSS feeds).
- It uses a fine-tuned Large Language Model (LLM) based on a public finance-specific model to analyze sentiment and summarize articles.
- The agent has access to a "tool" which is a Python function that connects to a vector database (Pinecone) containing historical stock performance data.
- Based on the news analysis and historical data, the agent can autonomously decide to execute trades via an external brokerage API (e.g., Alpaca).
- All actions, decisions, and data sources are logged for auditability.

Technical Stack:
- Agent Framework: LangChain
- Foundation Model: Fine-tuned Llama 3 hosted on a private VPC in GCP.
- Data Operations: Pinecone for vector search, PostgreSQL for storing user data and trade history.
- Deployment: The agent runs in a Docker container on Google Kubernetes Engine (GKE).
- External Integrations: Alpaca API for trading, various news APIs.`
