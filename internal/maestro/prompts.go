package maestro

import "maestro/internal/llm"

var threatModelPrompt = llm.MustPrompt("threat-model", `You are an expert AI security analyst specializing in threat modeling for complex AI agent systems using the MAESTRO framework.

Your task is to analyze the provided system description and identify potential threats within the specified MAESTRO layer.

Generate a list of 2-3 detailed and specific threats. For each threat, provide a name, a comprehensive description, and assess its risk level (Low, Medium, High, or Critical).

System Description:
{{.SystemDescription}}

MAESTRO Layer to Analyze:
{{.Layer}}

Return the output as a JSON object containing a 'threatModel' array. Each object in the array should represent a single threat and have 'name', 'description', and 'risk' fields. Ensure your analysis is directly relevant to the provided system and layer.`)

var threatModelSchema = llm.Object(map[string]*llm.Schema{
	"threatModel": llm.Array(llm.Object(map[string]*llm.Schema{
		"name":        llm.String("The name of the threat."),
		"description": llm.String("A detailed description of the threat."),
		"risk":        llm.Enum("The assessed risk level of the threat.", "Low", "Medium", "High", "Critical"),
	}, "name", "description", "risk")),
}, "threatModel")

var diagramPrompt = llm.MustPrompt("architecture-diagram", `You are an expert system architect. Your task is to create a graph data structure in JSON format based on the provided system description.

System Description:
{{.SystemDescription}}

Instructions:
1.  Analyze the system description to identify all key components.
2.  Categorize each component into one of the following types: 'user', 'agent', 'container', 'database', 'external', 'service'.
3.  Create a node for each component with a unique 'id', a concise 'label', and its 'type'.
4.  Identify the relationships and data flows between these components.
5.  Create a link for each relationship, specifying the 'source' and 'target' node ids, and optionally a short 'label'.
6.  Ensure that the 'id' fields are short, camelCased, and unique.
7.  Return a single JSON object with two keys: "nodes" and "links". Do not include any explanations.

Example Output Format:
{
  "nodes": [
    { "id": "investor", "label": "Investor", "type": "user" },
    { "id": "agentUi", "label": "Agent UI", "type": "container" },
    { "id": "newsApi", "label": "News API", "type": "external" }
  ],
  "links": [
    { "source": "investor", "target": "agentUi" },
    { "source": "agentUi", "target": "newsApi", "label": "fetches news" }
  ]
}`)

var diagramSchema = llm.Object(map[string]*llm.Schema{
	"nodes": llm.Array(llm.Object(map[string]*llm.Schema{
		"id":    llm.String("Unique identifier for the node."),
		"label": llm.String("The display name of the node. Keep it concise."),
		"type":  llm.Enum("The category of the node.", "user", "agent", "container", "database", "external", "service"),
	}, "id", "label", "type")),
	"links": llm.Array(llm.Object(map[string]*llm.Schema{
		"source": llm.String("The id of the source node."),
		"target": llm.String("The id of the target node."),
		"label":  llm.String("An optional label describing the interaction."),
	}, "source", "target")),
}, "nodes", "links")

var layerPromptPrompt = llm.MustPrompt("layer-prompt", `You are an expert security analyst specializing in AI agent systems. Your task is to write a prompt for a large language model that will be used to identify potential threats and vulnerabilities in a specific MAESTRO layer of an AI agent system.

MAESTRO Layer: {{.Layer}}

System Description: {{.SystemDescription}}

Threat Templates: {{.ThreatTemplates}}

Agentic AI Risk Factors:
- Non-Determinism: How might the non-deterministic nature of AI models lead to unpredictable behavior and security vulnerabilities?
- Agent Autonomy: How does the agent's ability to make decisions and take actions without human intervention increase the attack surface?
- Dynamic Nature of Agent Identity: How do dynamically changing agent identities and verifiable credentials impact trust and authentication?
- Unintended Tool Use: How can agents use tools incorrectly or maliciously, even without explicit malicious intent?
- Message Injection: How can attackers inject malicious content into messages to manipulate agent behavior?
- Data Poisoning: How can compromised data sources or malicious data injected during task execution impact decision-making?
- Cross-Layer Attacks: How can vulnerabilities in one MAESTRO layer be exploited to compromise another?
- Multi-Agent Interactions: How can unintended consequences arise when multiple agents interact, especially given their autonomy and changing identities?
- Emergent Behavior: How might unexpected and potentially harmful behaviors emerge from complex interactions between agents and their environment?

Write a clear, concise and specific prompt that elicits a comprehensive threat model for the specified layer, covering risks unique to AI agent systems that a traditional security assessment might miss.

Return a JSON object with a single "prompt" field.`)

var layerPromptSchema = llm.Object(map[string]*llm.Schema{
	"prompt": llm.String("The generated prompt."),
}, "prompt")
