package contexts

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "contexthub-backend/pkg/errors"
)

// RelationshipType defines the kind of directed edge between two entries
type RelationshipType string

const (
	RelCausedBy    RelationshipType = "caused_by"
	RelPartOf      RelationshipType = "part_of"
	RelRelatedTo   RelationshipType = "related_to"
	RelDependsOn   RelationshipType = "depends_on"
	RelReferences  RelationshipType = "references"
	RelFixedBy     RelationshipType = "fixed_by"
	RelTriggeredBy RelationshipType = "triggered_by"
	RelSummarizes  RelationshipType = "summarizes"
)

// KnownRelationshipTypes lists every recognized relationship type
var KnownRelationshipTypes = []RelationshipType{
	RelCausedBy, RelPartOf, RelRelatedTo, RelDependsOn,
	RelReferences, RelFixedBy, RelTriggeredBy, RelSummarizes,
}

// Valid reports whether the relationship type is one of the known kinds
func (t RelationshipType) Valid() bool {
	for _, known := range KnownRelationshipTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Direction selects which edges a traversal follows
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Valid reports whether the direction is recognized
func (d Direction) Valid() bool {
	switch d {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	}
	return false
}

// Relationship is a directed typed edge between two context entries.
// Duplicate edges with different types between the same pair are legal.
// Endpoint existence is not validated here; producers own that.
type Relationship struct {
	ID        string                 `json:"id"`
	SourceID  string                 `json:"source_id"`
	TargetID  string                 `json:"target_id"`
	Type      RelationshipType       `json:"relationship_type"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewRelationship creates a directed edge from source to target
func NewRelationship(sourceID, targetID string, relType RelationshipType, metadata map[string]interface{}) (*Relationship, error) {
	if sourceID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("relationship source_id cannot be empty")
	}
	if targetID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("relationship target_id cannot be empty")
	}
	if !relType.Valid() {
		return nil, pkgerrors.NewInvalidArgumentError("unknown relationship type: " + string(relType))
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &Relationship{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      relType,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Related pairs a traversal result with the edge type that reached it
type Related struct {
	Type  RelationshipType `json:"relationship_type"`
	Entry *Entry           `json:"entry"`
}
