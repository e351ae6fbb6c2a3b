package contexts

import (
	"time"

	"github.com/google/uuid"

	domainconfig "contexthub-backend/domain/config"
	pkgerrors "contexthub-backend/pkg/errors"
)

// EntryType classifies a context entry in the event-sourced store
type EntryType string

const (
	// EntryTypeEvent is an immutable fact; never updated or deleted
	EntryTypeEvent EntryType = "event"
	// EntryTypeArtifact is versioned content; new versions append, old ones remain
	EntryTypeArtifact EntryType = "artifact"
	// EntryTypeSummary compresses other entries by reference, never by replacement
	EntryTypeSummary EntryType = "summary"
)

// Valid reports whether the entry type is one of the known kinds
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeEvent, EntryTypeArtifact, EntryTypeSummary:
		return true
	}
	return false
}

// Entry is the atomic unit of the context store
type Entry struct {
	ID        string                 `json:"id"`
	EntryType EntryType              `json:"entry_type"`
	Timestamp time.Time              `json:"timestamp"`
	ProjectID string                 `json:"project_id"`
	UserID    string                 `json:"user_id,omitempty"`
	AgentID   string                 `json:"agent_id,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Content   Content                `json:"content"`
	Tags      []string               `json:"tags,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`

	// Artifact-only fields. Version is strictly increasing per
	// (project_id, artifact_name); ParentVersionID links the chain.
	ArtifactName    string `json:"artifact_name,omitempty"`
	Version         int    `json:"version,omitempty"`
	ParentVersionID string `json:"parent_version_id,omitempty"`

	// Summary-only field
	SummarizedEntryIDs []string `json:"summarized_entry_ids,omitempty"`
}

// NewEventEntry creates an immutable event entry
func NewEventEntry(projectID string, content Content, opts ...EntryOption) (*Entry, error) {
	entry, err := newEntry(EntryTypeEvent, projectID, content, opts...)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// NewArtifactEntry creates one version of a named artifact. Version
// allocation is the store's responsibility; the caller passes the
// version and parent the store computed under its serialization point.
func NewArtifactEntry(projectID, name string, version int, parentVersionID string, content Content, opts ...EntryOption) (*Entry, error) {
	if name == "" {
		return nil, pkgerrors.NewInvalidArgumentError("artifact name cannot be empty")
	}
	if version < 1 {
		return nil, pkgerrors.NewInvalidArgumentError("artifact version must be positive")
	}

	entry, err := newEntry(EntryTypeArtifact, projectID, content, opts...)
	if err != nil {
		return nil, err
	}
	entry.ArtifactName = name
	entry.Version = version
	entry.ParentVersionID = parentVersionID
	return entry, nil
}

// NewSummaryEntry creates a summary referencing the entries it compresses.
// The referenced entries are never altered or removed.
func NewSummaryEntry(projectID string, content Content, entryIDs []string, opts ...EntryOption) (*Entry, error) {
	if len(entryIDs) == 0 {
		return nil, pkgerrors.NewInvalidArgumentError("summary must reference at least one entry")
	}
	if len(entryIDs) > domainconfig.MaxSummarizedIDs {
		return nil, pkgerrors.NewInvalidArgumentError("summary references too many entries")
	}

	entry, err := newEntry(EntryTypeSummary, projectID, content, opts...)
	if err != nil {
		return nil, err
	}
	entry.SummarizedEntryIDs = append([]string(nil), entryIDs...)
	return entry, nil
}

func newEntry(entryType EntryType, projectID string, content Content, opts ...EntryOption) (*Entry, error) {
	if projectID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("project_id cannot be empty")
	}
	if content.IsZero() {
		return nil, pkgerrors.NewInvalidArgumentError("content cannot be empty")
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		EntryType: entryType,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID,
		Content:   content,
		Tags:      []string{},
		Metadata:  make(map[string]interface{}),
	}

	for _, opt := range opts {
		opt(entry)
	}

	if len(entry.Tags) > domainconfig.MaxTagCount {
		return nil, pkgerrors.NewInvalidArgumentError("too many tags")
	}
	for _, tag := range entry.Tags {
		if tag == "" || len(tag) > domainconfig.MaxTagLength {
			return nil, pkgerrors.NewInvalidArgumentError("invalid tag")
		}
	}

	return entry, nil
}

// EntryOption customizes optional entry fields at construction time
type EntryOption func(*Entry)

// WithUserID attributes the entry to a user
func WithUserID(userID string) EntryOption {
	return func(e *Entry) { e.UserID = userID }
}

// WithAgentID attributes the entry to an agent
func WithAgentID(agentID string) EntryOption {
	return func(e *Entry) { e.AgentID = agentID }
}

// WithSource records which producer created the entry
func WithSource(source string) EntryOption {
	return func(e *Entry) { e.Source = source }
}

// WithTags sets the entry's tag set
func WithTags(tags []string) EntryOption {
	return func(e *Entry) { e.Tags = append([]string(nil), tags...) }
}

// WithMetadata sets free-form metadata on the entry
func WithMetadata(metadata map[string]interface{}) EntryOption {
	return func(e *Entry) {
		if metadata != nil {
			e.Metadata = metadata
		}
	}
}

// WithTimestamp overrides the entry timestamp, for producers replaying
// facts that happened earlier than ingestion.
func WithTimestamp(ts time.Time) EntryOption {
	return func(e *Entry) { e.Timestamp = ts.UTC() }
}

// HasTag reports whether the entry carries the given tag
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasAllTags reports whether the entry's tag set is a superset of the given tags
func (e *Entry) HasAllTags(tags []string) bool {
	for _, tag := range tags {
		if !e.HasTag(tag) {
			return false
		}
	}
	return true
}

// IsArtifact reports whether the entry is an artifact version
func (e *Entry) IsArtifact() bool {
	return e.EntryType == EntryTypeArtifact
}
