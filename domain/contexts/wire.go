package contexts

import (
	"time"
)

// ProjectRef identifies the project an envelope belongs to
type ProjectRef struct {
	ID          string `json:"id"`
	Environment string `json:"environment"`
}

// UserRef identifies the user an envelope is attributed to
type UserRef struct {
	ID string `json:"id"`
}

// AgentRef identifies the agent an envelope is attributed to
type AgentRef struct {
	ID string `json:"id"`
}

// ConversationRef identifies the conversation an envelope belongs to
type ConversationRef struct {
	ID string `json:"id"`
}

// Envelope is the MCP wire projection of a context entry. The content
// object carries exactly one type-tagged sub-object matching Type.
type Envelope struct {
	ID           string                 `json:"id"`
	Timestamp    string                 `json:"timestamp"`
	Type         string                 `json:"type"`
	Source       string                 `json:"source"`
	Project      ProjectRef             `json:"project"`
	User         *UserRef               `json:"user,omitempty"`
	Agent        *AgentRef              `json:"agent,omitempty"`
	Conversation *ConversationRef       `json:"conversation,omitempty"`
	Content      map[string]interface{} `json:"content"`
	Metadata     map[string]interface{} `json:"metadata"`
	Tags         []string               `json:"tags"`
}

// ToWireFormat projects the entry into the MCP envelope
func (e *Entry) ToWireFormat() Envelope {
	key, payload := e.Content.WirePayload()

	environment := ""
	if env, ok := e.Metadata["environment"].(string); ok {
		environment = env
	}

	envelope := Envelope{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Type:      string(e.Content.Type()),
		Source:    e.Source,
		Project: ProjectRef{
			ID:          e.ProjectID,
			Environment: environment,
		},
		Content:  map[string]interface{}{key: payload},
		Metadata: e.Metadata,
		Tags:     e.Tags,
	}
	if envelope.Metadata == nil {
		envelope.Metadata = make(map[string]interface{})
	}
	if envelope.Tags == nil {
		envelope.Tags = []string{}
	}

	if e.UserID != "" {
		envelope.User = &UserRef{ID: e.UserID}
	}
	if e.AgentID != "" {
		envelope.Agent = &AgentRef{ID: e.AgentID}
	}
	if conv, ok := e.Content.Conversation(); ok && conv != nil {
		envelope.Conversation = &ConversationRef{ID: conv.ID}
	}

	return envelope
}
