package a2a

// AgentCard describes an agent's capabilities.
type AgentCard struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	URL          string       `json:"url"`
	Version      string       `json:"version"`
	Skills       []AgentSkill `json:"skills,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
}

// AgentSkill describes a single capability of the agent.
type AgentSkill struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
}

// Capabilities lists transport features and protocol extensions.
type Capabilities struct {
	Streaming  bool        `json:"streaming"`
	Extensions []Extension `json:"extensions,omitempty"`
}

// Extension declares support for a protocol extension on an agent card.
type Extension struct {
	// URI is the extension identifier.
	URI string `json:"uri"`

	// Description explains what the extension enables.
	Description string `json:"description,omitempty"`

	// Required indicates callers must activate the extension to use the agent.
	Required bool `json:"required"`
}
