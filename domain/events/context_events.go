package events

import (
	"time"
)

// Event type names used on the bus and on the EventBridge detail-type
const (
	TypeEntryStored            = "context.entry_stored"
	TypeArtifactVersionCreated = "context.artifact_versioned"
	TypeRelationshipCreated    = "context.relationship_created"
	TypeSummaryCreated         = "context.summary_created"
	TypeToolExecuted           = "mcp.tool_executed"
	TypeResourceCreated        = "mcp.resource_created"
)

// EntryStored is raised when any context entry is persisted
type EntryStored struct {
	BaseEvent
	EntryID     string `json:"entry_id"`
	ProjectID   string `json:"project_id"`
	EntryType   string `json:"entry_type"`
	ContentType string `json:"content_type"`
	UserID      string `json:"user_id,omitempty"`
	AgentID     string `json:"agent_id,omitempty"`
}

// NewEntryStored creates an EntryStored event
func NewEntryStored(entryID, projectID, entryType, contentType, userID, agentID string, timestamp time.Time) EntryStored {
	return EntryStored{
		BaseEvent: BaseEvent{
			AggregateID: entryID,
			EventType:   TypeEntryStored,
			Timestamp:   timestamp,
			Version:     1,
		},
		EntryID:     entryID,
		ProjectID:   projectID,
		EntryType:   entryType,
		ContentType: contentType,
		UserID:      userID,
		AgentID:     agentID,
	}
}

// ArtifactVersionCreated is raised when a new artifact version is stored
type ArtifactVersionCreated struct {
	BaseEvent
	EntryID         string `json:"entry_id"`
	ProjectID       string `json:"project_id"`
	ArtifactName    string `json:"artifact_name"`
	ArtifactVersion int    `json:"artifact_version"`
	ParentVersionID string `json:"parent_version_id,omitempty"`
}

// NewArtifactVersionCreated creates an ArtifactVersionCreated event
func NewArtifactVersionCreated(entryID, projectID, name string, version int, parentVersionID string, timestamp time.Time) ArtifactVersionCreated {
	return ArtifactVersionCreated{
		BaseEvent: BaseEvent{
			AggregateID: entryID,
			EventType:   TypeArtifactVersionCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		EntryID:         entryID,
		ProjectID:       projectID,
		ArtifactName:    name,
		ArtifactVersion: version,
		ParentVersionID: parentVersionID,
	}
}

// RelationshipCreated is raised when two entries are linked
type RelationshipCreated struct {
	BaseEvent
	RelationshipID   string `json:"relationship_id"`
	SourceID         string `json:"source_id"`
	TargetID         string `json:"target_id"`
	RelationshipType string `json:"relationship_type"`
}

// NewRelationshipCreated creates a RelationshipCreated event
func NewRelationshipCreated(relationshipID, sourceID, targetID, relType string, timestamp time.Time) RelationshipCreated {
	return RelationshipCreated{
		BaseEvent: BaseEvent{
			AggregateID: relationshipID,
			EventType:   TypeRelationshipCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		RelationshipID:   relationshipID,
		SourceID:         sourceID,
		TargetID:         targetID,
		RelationshipType: relType,
	}
}

// SummaryCreated is raised when a summary entry is stored
type SummaryCreated struct {
	BaseEvent
	EntryID            string   `json:"entry_id"`
	ProjectID          string   `json:"project_id"`
	SummarizedEntryIDs []string `json:"summarized_entry_ids"`
}

// NewSummaryCreated creates a SummaryCreated event
func NewSummaryCreated(entryID, projectID string, summarizedIDs []string, timestamp time.Time) SummaryCreated {
	return SummaryCreated{
		BaseEvent: BaseEvent{
			AggregateID: entryID,
			EventType:   TypeSummaryCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		EntryID:            entryID,
		ProjectID:          projectID,
		SummarizedEntryIDs: summarizedIDs,
	}
}

// ToolExecuted is raised after an MCP tool invocation completes
type ToolExecuted struct {
	BaseEvent
	Tool         string `json:"tool"`
	ConnectionID string `json:"connection_id,omitempty"`
	Status       string `json:"status"`
	DurationMs   int64  `json:"duration_ms"`
}

// NewToolExecuted creates a ToolExecuted event
func NewToolExecuted(tool, connectionID, status string, durationMs int64, timestamp time.Time) ToolExecuted {
	return ToolExecuted{
		BaseEvent: BaseEvent{
			AggregateID: tool,
			EventType:   TypeToolExecuted,
			Timestamp:   timestamp,
			Version:     1,
		},
		Tool:         tool,
		ConnectionID: connectionID,
		Status:       status,
		DurationMs:   durationMs,
	}
}

// ResourceCreated is raised when an MCP resource is registered
type ResourceCreated struct {
	BaseEvent
	URI          string `json:"uri"`
	ResourceType string `json:"resource_type"`
	ConnectionID string `json:"connection_id,omitempty"`
}

// NewResourceCreated creates a ResourceCreated event
func NewResourceCreated(uri, resourceType, connectionID string, timestamp time.Time) ResourceCreated {
	return ResourceCreated{
		BaseEvent: BaseEvent{
			AggregateID: uri,
			EventType:   TypeResourceCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		URI:          uri,
		ResourceType: resourceType,
		ConnectionID: connectionID,
	}
}
