package ports

import (
	"context"

	"contexthub-backend/domain/contexts"
	"contexthub-backend/domain/events"
)

// EntryQuery narrows project timeline reads
type EntryQuery struct {
	ProjectID string
	EntryType contexts.EntryType
	Limit     int
	Offset    int
}

// EntryRepository defines the interface for entry persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type EntryRepository interface {
	// Save persists an entry. Entries are immutable; saving an existing
	// ID is a conflict.
	Save(ctx context.Context, entry *contexts.Entry) error

	// GetByID retrieves an entry by its ID, nil when absent
	GetByID(ctx context.Context, id string) (*contexts.Entry, error)

	// GetByProject retrieves entries for a project ordered newest first.
	// A zero EntryType matches all entry types.
	GetByProject(ctx context.Context, query EntryQuery) ([]*contexts.Entry, error)

	// GetLatestArtifact retrieves the highest-version artifact entry for
	// a name within a project, nil when the name is unknown
	GetLatestArtifact(ctx context.Context, projectID, name string) (*contexts.Entry, error)

	// GetArtifactByVersion retrieves one specific version, nil when the
	// version does not exist
	GetArtifactByVersion(ctx context.Context, projectID, name string, version int) (*contexts.Entry, error)

	// GetArtifactVersions retrieves all versions of a named artifact
	// ordered by version ascending
	GetArtifactVersions(ctx context.Context, projectID, name string) ([]*contexts.Entry, error)

	// NextArtifactVersion atomically allocates the next version number
	// for a named artifact within a project
	NextArtifactVersion(ctx context.Context, projectID, name string) (int, error)
}

// RelationshipRepository defines the interface for relationship persistence
type RelationshipRepository interface {
	// Save persists a relationship
	Save(ctx context.Context, rel *contexts.Relationship) error

	// GetBySource retrieves relationships whose source is the entry.
	// An empty relType matches all relationship types.
	GetBySource(ctx context.Context, entryID string, relType contexts.RelationshipType) ([]*contexts.Relationship, error)

	// GetByTarget retrieves relationships whose target is the entry
	GetByTarget(ctx context.Context, entryID string, relType contexts.RelationshipType) ([]*contexts.Relationship, error)
}

// SearchQuery describes a content search within a project
type SearchQuery struct {
	ProjectID string
	Text      string
	Tags      []string
	Limit     int
}

// Searcher finds entries by content and tags. Implementations may be
// backed by a scan, an index, or an external search service.
type Searcher interface {
	Search(ctx context.Context, query SearchQuery) ([]*contexts.Entry, error)
}

// EventPublisher publishes domain events to interested consumers
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// Cache provides read-through caching for immutable entries
type Cache interface {
	Get(ctx context.Context, key string) (*contexts.Entry, bool)
	Set(ctx context.Context, key string, entry *contexts.Entry)
	Delete(ctx context.Context, key string)
}
