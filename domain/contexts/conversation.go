package contexts

import (
	"time"

	pkgerrors "contexthub-backend/pkg/errors"
)

// AgentType identifies the kind of AI agent on the other end of a session
type AgentType string

const (
	AgentWindsurf AgentType = "windsurf"
	AgentClaude   AgentType = "claude"
	AgentCursor   AgentType = "cursor"
	AgentReplit   AgentType = "replit"
	AgentChatGPT  AgentType = "chatgpt"
	AgentCustom   AgentType = "custom"
)

// KnownAgentTypes lists every recognized agent type
var KnownAgentTypes = []AgentType{
	AgentWindsurf, AgentClaude, AgentCursor, AgentReplit, AgentChatGPT, AgentCustom,
}

// Valid reports whether the agent type is one of the known kinds
func (t AgentType) Valid() bool {
	for _, known := range KnownAgentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Agent describes a registered AI agent
type Agent struct {
	ID           string    `json:"id"`
	Type         AgentType `json:"type"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

// NewAgent creates an agent, defaulting unknown types to custom
func NewAgent(id string, agentType AgentType, name string, capabilities []string) (*Agent, error) {
	if id == "" {
		return nil, pkgerrors.NewInvalidArgumentError("agent id cannot be empty")
	}
	if !agentType.Valid() {
		agentType = AgentCustom
	}
	return &Agent{
		ID:           id,
		Type:         agentType,
		Name:         name,
		Capabilities: capabilities,
	}, nil
}

// MessageRole identifies who produced a conversation message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ConversationMessage is one turn in an agent conversation
type ConversationMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Conversation is an ordered exchange between a user and an agent.
// The whole conversation is stored as the content of a single context
// entry, not as one entry per message.
type Conversation struct {
	ID        string                `json:"id"`
	AgentID   string                `json:"agent_id"`
	UserID    string                `json:"user_id,omitempty"`
	ProjectID string                `json:"project_id"`
	Messages  []ConversationMessage `json:"messages"`
}

// NewConversation creates an empty conversation
func NewConversation(id, agentID, userID, projectID string) (*Conversation, error) {
	if id == "" {
		return nil, pkgerrors.NewInvalidArgumentError("conversation id cannot be empty")
	}
	if agentID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("conversation agent_id cannot be empty")
	}
	if projectID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("conversation project_id cannot be empty")
	}
	return &Conversation{
		ID:        id,
		AgentID:   agentID,
		UserID:    userID,
		ProjectID: projectID,
		Messages:  []ConversationMessage{},
	}, nil
}

// AddMessage appends a turn to the conversation
func (c *Conversation) AddMessage(role MessageRole, content string, at time.Time) {
	c.Messages = append(c.Messages, ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
}

// LastMessage returns the most recent turn, if any
func (c *Conversation) LastMessage() (ConversationMessage, bool) {
	if len(c.Messages) == 0 {
		return ConversationMessage{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}
