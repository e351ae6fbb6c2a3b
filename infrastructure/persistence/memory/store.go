// Package memory provides in-process implementations of the persistence
// ports for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"contexthub-backend/application/ports"
	"contexthub-backend/domain/contexts"
	pkgerrors "contexthub-backend/pkg/errors"
)

// EntryRepository is a thread-safe in-memory entry store
type EntryRepository struct {
	mu       sync.RWMutex
	byID     map[string]*contexts.Entry
	byProj   map[string][]*contexts.Entry
	versions map[string]int
}

// NewEntryRepository creates an empty in-memory entry repository
func NewEntryRepository() *EntryRepository {
	return &EntryRepository{
		byID:     make(map[string]*contexts.Entry),
		byProj:   make(map[string][]*contexts.Entry),
		versions: make(map[string]int),
	}
}

// Save implements ports.EntryRepository
func (r *EntryRepository) Save(_ context.Context, entry *contexts.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[entry.ID]; exists {
		return pkgerrors.NewConflictError("entry " + entry.ID + " already exists")
	}

	stored := cloneEntry(entry)
	r.byID[stored.ID] = stored
	r.byProj[stored.ProjectID] = append(r.byProj[stored.ProjectID], stored)
	return nil
}

// GetByID implements ports.EntryRepository
func (r *EntryRepository) GetByID(_ context.Context, id string) (*contexts.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneEntry(entry), nil
}

// GetByProject implements ports.EntryRepository
func (r *EntryRepository) GetByProject(_ context.Context, query ports.EntryQuery) ([]*contexts.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filtered := make([]*contexts.Entry, 0)
	for _, entry := range r.byProj[query.ProjectID] {
		if query.EntryType != "" && entry.EntryType != query.EntryType {
			continue
		}
		filtered = append(filtered, entry)
	}

	// Newest first, ID as tiebreak for a stable order
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].ID > filtered[j].ID
		}
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	if query.Offset >= len(filtered) {
		return []*contexts.Entry{}, nil
	}
	filtered = filtered[query.Offset:]
	if query.Limit > 0 && len(filtered) > query.Limit {
		filtered = filtered[:query.Limit]
	}

	result := make([]*contexts.Entry, len(filtered))
	for i, entry := range filtered {
		result[i] = cloneEntry(entry)
	}
	return result, nil
}

// GetLatestArtifact implements ports.EntryRepository
func (r *EntryRepository) GetLatestArtifact(_ context.Context, projectID, name string) (*contexts.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *contexts.Entry
	for _, entry := range r.byProj[projectID] {
		if !entry.IsArtifact() || entry.ArtifactName != name {
			continue
		}
		if latest == nil || entry.Version > latest.Version {
			latest = entry
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneEntry(latest), nil
}

// GetArtifactByVersion implements ports.EntryRepository
func (r *EntryRepository) GetArtifactByVersion(_ context.Context, projectID, name string, version int) (*contexts.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.byProj[projectID] {
		if entry.IsArtifact() && entry.ArtifactName == name && entry.Version == version {
			return cloneEntry(entry), nil
		}
	}
	return nil, nil
}

// GetArtifactVersions implements ports.EntryRepository
func (r *EntryRepository) GetArtifactVersions(_ context.Context, projectID, name string) ([]*contexts.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := make([]*contexts.Entry, 0)
	for _, entry := range r.byProj[projectID] {
		if entry.IsArtifact() && entry.ArtifactName == name {
			versions = append(versions, cloneEntry(entry))
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

// NextArtifactVersion implements ports.EntryRepository
func (r *EntryRepository) NextArtifactVersion(_ context.Context, projectID, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := projectID + "#" + name
	r.versions[key]++
	return r.versions[key], nil
}

func cloneEntry(entry *contexts.Entry) *contexts.Entry {
	c := *entry
	if entry.Tags != nil {
		c.Tags = append([]string(nil), entry.Tags...)
	}
	if entry.SummarizedEntryIDs != nil {
		c.SummarizedEntryIDs = append([]string(nil), entry.SummarizedEntryIDs...)
	}
	if entry.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(entry.Metadata))
		for k, v := range entry.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// RelationshipRepository is a thread-safe in-memory relationship store
type RelationshipRepository struct {
	mu       sync.RWMutex
	bySource map[string][]*contexts.Relationship
	byTarget map[string][]*contexts.Relationship
}

// NewRelationshipRepository creates an empty in-memory relationship repository
func NewRelationshipRepository() *RelationshipRepository {
	return &RelationshipRepository{
		bySource: make(map[string][]*contexts.Relationship),
		byTarget: make(map[string][]*contexts.Relationship),
	}
}

// Save implements ports.RelationshipRepository
func (r *RelationshipRepository) Save(_ context.Context, rel *contexts.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *rel
	r.bySource[rel.SourceID] = append(r.bySource[rel.SourceID], &stored)
	r.byTarget[rel.TargetID] = append(r.byTarget[rel.TargetID], &stored)
	return nil
}

// GetBySource implements ports.RelationshipRepository
func (r *RelationshipRepository) GetBySource(_ context.Context, entryID string, relType contexts.RelationshipType) ([]*contexts.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filterRels(r.bySource[entryID], relType), nil
}

// GetByTarget implements ports.RelationshipRepository
func (r *RelationshipRepository) GetByTarget(_ context.Context, entryID string, relType contexts.RelationshipType) ([]*contexts.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filterRels(r.byTarget[entryID], relType), nil
}

func filterRels(rels []*contexts.Relationship, relType contexts.RelationshipType) []*contexts.Relationship {
	result := make([]*contexts.Relationship, 0, len(rels))
	for _, rel := range rels {
		if relType != "" && rel.Type != relType {
			continue
		}
		c := *rel
		result = append(result, &c)
	}
	return result
}
