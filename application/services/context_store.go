package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"contexthub-backend/application/ports"
	"contexthub-backend/domain/config"
	"contexthub-backend/domain/contexts"
	"contexthub-backend/domain/events"
	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/extensions"
	"contexthub-backend/pkg/observability"
)

// ContextStore is the persistence service for context entries. All
// writes are append-only; stored entries are never mutated.
type ContextStore struct {
	entries   ports.EntryRepository
	relations ports.RelationshipRepository
	searcher  ports.Searcher
	publisher ports.EventPublisher
	cache     ports.Cache
	hooks     *extensions.HookManager
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *zap.Logger

	// versionMu serializes version allocation per (project, artifact
	// name) within this process. The repository's conditional write is
	// the cross-process guard.
	versionMu sync.Map
}

// StoreOption configures the context store
type StoreOption func(*ContextStore)

// WithHooks runs entry lifecycle hooks around every persisted entry
func WithHooks(hooks *extensions.HookManager) StoreOption {
	return func(s *ContextStore) { s.hooks = hooks }
}

// NewContextStore creates a new context store service
func NewContextStore(
	entries ports.EntryRepository,
	relations ports.RelationshipRepository,
	searcher ports.Searcher,
	publisher ports.EventPublisher,
	cache ports.Cache,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
	opts ...StoreOption,
) *ContextStore {
	s := &ContextStore{
		entries:   entries,
		relations: relations,
		searcher:  searcher,
		publisher: publisher,
		cache:     cache,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreEvent persists an immutable event entry and returns it
func (s *ContextStore) StoreEvent(ctx context.Context, projectID string, content contexts.Content, opts ...contexts.EntryOption) (*contexts.Entry, error) {
	entry, err := contexts.NewEventEntry(projectID, content, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.saveEntry(ctx, "store_event", entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// StoreArtifact persists a new version of a named artifact. The version
// number is allocated atomically; concurrent callers for the same name
// receive distinct consecutive versions.
func (s *ContextStore) StoreArtifact(ctx context.Context, projectID, name string, content contexts.Content, opts ...contexts.EntryOption) (*contexts.Entry, error) {
	if name == "" {
		return nil, pkgerrors.NewInvalidArgumentError("artifact name is required")
	}

	mu := s.lockFor(projectID, name)
	mu.Lock()
	defer mu.Unlock()

	version, err := s.entries.NextArtifactVersion(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	parentVersionID := ""
	if version > 1 {
		parent, err := s.entries.GetArtifactByVersion(ctx, projectID, name, version-1)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			parentVersionID = parent.ID
		}
	}

	entry, err := contexts.NewArtifactEntry(projectID, name, version, parentVersionID, content, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.saveEntry(ctx, "store_artifact", entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewArtifactVersionCreated(entry.ID, projectID, name, version, parentVersionID, entry.Timestamp))
	return entry, nil
}

// CreateSummary persists a summary entry referencing the summarized
// entries by ID. The referenced entries are left untouched.
func (s *ContextStore) CreateSummary(ctx context.Context, projectID string, content contexts.Content, entryIDs []string, opts ...contexts.EntryOption) (*contexts.Entry, error) {
	if len(entryIDs) > config.MaxSummarizedIDs {
		return nil, pkgerrors.NewInvalidArgumentError("too many summarized entry ids")
	}
	for _, id := range entryIDs {
		existing, err := s.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, pkgerrors.NewNotFoundError("entry " + id)
		}
	}

	entry, err := contexts.NewSummaryEntry(projectID, content, entryIDs, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.saveEntry(ctx, "create_summary", entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewSummaryCreated(entry.ID, projectID, entryIDs, entry.Timestamp))
	return entry, nil
}

// GetEntry retrieves an entry by ID, nil when absent
func (s *ContextStore) GetEntry(ctx context.Context, id string) (*contexts.Entry, error) {
	if id == "" {
		return nil, pkgerrors.NewInvalidArgumentError("entry id is required")
	}

	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx, id); ok {
			return entry, nil
		}
	}

	start := time.Now()
	entry, err := s.entries.GetByID(ctx, id)
	s.recordOp(ctx, "get_entry", start, err)
	if err != nil {
		return nil, err
	}
	if entry != nil && s.cache != nil {
		s.cache.Set(ctx, id, entry)
	}
	return entry, nil
}

// GetEntriesByProject lists entries for a project ordered newest first
func (s *ContextStore) GetEntriesByProject(ctx context.Context, projectID string, entryType contexts.EntryType, limit, offset int) ([]*contexts.Entry, error) {
	if projectID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("project id is required")
	}
	if entryType != "" && !entryType.Valid() {
		return nil, pkgerrors.NewInvalidArgumentError("unknown entry type: " + string(entryType))
	}
	if limit <= 0 {
		limit = config.DefaultListLimit
	}
	if limit > config.MaxListLimit {
		limit = config.MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	start := time.Now()
	result, err := s.entries.GetByProject(ctx, ports.EntryQuery{
		ProjectID: projectID,
		EntryType: entryType,
		Limit:     limit,
		Offset:    offset,
	})
	s.recordOp(ctx, "list_project", start, err)
	return result, err
}

// GetArtifactByName retrieves a named artifact. Version 0 means latest.
// Returns nil when the name or the requested version does not exist.
func (s *ContextStore) GetArtifactByName(ctx context.Context, projectID, name string, version int) (*contexts.Entry, error) {
	if projectID == "" || name == "" {
		return nil, pkgerrors.NewInvalidArgumentError("project id and artifact name are required")
	}
	if version < 0 {
		return nil, pkgerrors.NewInvalidArgumentError("version must not be negative")
	}

	start := time.Now()
	var entry *contexts.Entry
	var err error
	if version == 0 {
		entry, err = s.entries.GetLatestArtifact(ctx, projectID, name)
	} else {
		entry, err = s.entries.GetArtifactByVersion(ctx, projectID, name, version)
	}
	s.recordOp(ctx, "get_artifact", start, err)
	return entry, err
}

// GetArtifactHistory returns the ordered version chain of an artifact
func (s *ContextStore) GetArtifactHistory(ctx context.Context, projectID, name string) ([]*contexts.ArtifactVersion, error) {
	if projectID == "" || name == "" {
		return nil, pkgerrors.NewInvalidArgumentError("project id and artifact name are required")
	}
	versions, err := s.entries.GetArtifactVersions(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	chain, chainErr := contexts.BuildVersionChain(versions)
	if chainErr != nil {
		s.logger.Warn("Artifact version chain inconsistent",
			zap.String("projectID", projectID),
			zap.String("artifact", name),
			zap.Error(chainErr),
		)
	}
	return chain, nil
}

// CreateRelationship links two existing entries with a typed edge
func (s *ContextStore) CreateRelationship(ctx context.Context, sourceID, targetID string, relType contexts.RelationshipType, metadata map[string]interface{}) (*contexts.Relationship, error) {
	rel, err := contexts.NewRelationship(sourceID, targetID, relType, metadata)
	if err != nil {
		return nil, err
	}

	for _, id := range []string{sourceID, targetID} {
		existing, err := s.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, pkgerrors.NewNotFoundError("entry " + id)
		}
	}

	start := time.Now()
	err = s.relations.Save(ctx, rel)
	s.recordOp(ctx, "create_relationship", start, err)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Relationship created",
		zap.String("relationshipID", rel.ID),
		zap.String("source", sourceID),
		zap.String("target", targetID),
		zap.String("type", string(relType)),
	)
	s.publish(ctx, events.NewRelationshipCreated(rel.ID, sourceID, targetID, string(relType), rel.CreatedAt))
	return rel, nil
}

// GetRelatedEntries traverses the relationship graph one hop from the
// entry. An empty relType matches all relationship types.
func (s *ContextStore) GetRelatedEntries(ctx context.Context, entryID string, relType contexts.RelationshipType, direction contexts.Direction) ([]contexts.Related, error) {
	if entryID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("entry id is required")
	}
	if relType != "" && !relType.Valid() {
		return nil, pkgerrors.NewInvalidArgumentError("unknown relationship type: " + string(relType))
	}
	if direction == "" {
		direction = contexts.DirectionBoth
	}
	if !direction.Valid() {
		return nil, pkgerrors.NewInvalidArgumentError("unknown direction: " + string(direction))
	}

	related := make([]contexts.Related, 0)
	// Duplicate edges of different types between the same pair are
	// legal and each one is returned, so dedupe is per relationship.
	seen := make(map[string]bool)

	collect := func(rels []*contexts.Relationship, pick func(*contexts.Relationship) string) error {
		for _, rel := range rels {
			if seen[rel.ID] {
				continue
			}
			otherID := pick(rel)
			entry, err := s.GetEntry(ctx, otherID)
			if err != nil {
				return err
			}
			if entry == nil {
				s.logger.Warn("Relationship references missing entry",
					zap.String("relationshipID", rel.ID),
					zap.String("entryID", otherID),
				)
				continue
			}
			seen[rel.ID] = true
			related = append(related, contexts.Related{Type: rel.Type, Entry: entry})
		}
		return nil
	}

	if direction == contexts.DirectionOutgoing || direction == contexts.DirectionBoth {
		rels, err := s.relations.GetBySource(ctx, entryID, relType)
		if err != nil {
			return nil, err
		}
		if err := collect(rels, func(r *contexts.Relationship) string { return r.TargetID }); err != nil {
			return nil, err
		}
	}
	if direction == contexts.DirectionIncoming || direction == contexts.DirectionBoth {
		rels, err := s.relations.GetByTarget(ctx, entryID, relType)
		if err != nil {
			return nil, err
		}
		if err := collect(rels, func(r *contexts.Relationship) string { return r.SourceID }); err != nil {
			return nil, err
		}
	}

	return related, nil
}

// SearchEntries finds entries whose content matches the text and whose
// tags include every requested tag
func (s *ContextStore) SearchEntries(ctx context.Context, projectID, text string, tags []string, limit int) ([]*contexts.Entry, error) {
	if projectID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("project id is required")
	}
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}
	if limit > config.MaxSearchLimit {
		limit = config.MaxSearchLimit
	}

	start := time.Now()
	result, err := s.searcher.Search(ctx, ports.SearchQuery{
		ProjectID: projectID,
		Text:      text,
		Tags:      tags,
		Limit:     limit,
	})
	s.recordOp(ctx, "search", start, err)
	return result, err
}

func (s *ContextStore) saveEntry(ctx context.Context, operation string, entry *contexts.Entry) error {
	if s.hooks != nil {
		if err := s.hooks.Execute(ctx, extensions.HookBeforeEntryStore, entry); err != nil {
			return err
		}
	}

	start := time.Now()
	err := s.tracer.TraceOperation(ctx, "contextstore."+operation, func(ctx context.Context) error {
		return s.entries.Save(ctx, entry)
	})
	s.recordOp(ctx, operation, start, err)
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Set(ctx, entry.ID, entry)
	}

	s.logger.Debug("Entry stored",
		zap.String("entryID", entry.ID),
		zap.String("projectID", entry.ProjectID),
		zap.String("entryType", string(entry.EntryType)),
		zap.String("contentType", string(entry.Content.Type())),
	)
	s.publish(ctx, events.NewEntryStored(
		entry.ID,
		entry.ProjectID,
		string(entry.EntryType),
		string(entry.Content.Type()),
		entry.UserID,
		entry.AgentID,
		entry.Timestamp,
	))
	if s.hooks != nil {
		s.hooks.ExecuteAsync(ctx, extensions.HookAfterEntryStore, entry)
	}
	return nil
}

// publish forwards a domain event on a best-effort basis. Publish
// failures never fail the write that produced the event.
func (s *ContextStore) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish domain event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}

func (s *ContextStore) recordOp(ctx context.Context, operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordStoreOperation(ctx, operation, time.Since(start), err)
	}
}

func (s *ContextStore) lockFor(projectID, name string) *sync.Mutex {
	key := projectID + "#" + name
	mu, _ := s.versionMu.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
