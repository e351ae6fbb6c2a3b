package services

import (
	"context"

	"contexthub-backend/domain/contexts"
	pkgerrors "contexthub-backend/pkg/errors"
)

// EnhancedContext pairs a context entry with the store so callers can
// work with one entry and its surrounding graph through a single handle.
type EnhancedContext struct {
	entry *contexts.Entry
	store *ContextStore
}

// NewEnhancedContext wraps an unsaved entry for later storage
func NewEnhancedContext(entry *contexts.Entry, store *ContextStore) (*EnhancedContext, error) {
	if entry == nil {
		return nil, pkgerrors.NewInvalidArgumentError("entry is required")
	}
	if store == nil {
		return nil, pkgerrors.NewInvalidArgumentError("store is required")
	}
	return &EnhancedContext{entry: entry, store: store}, nil
}

// LoadEnhancedContext wraps an already stored entry
func LoadEnhancedContext(ctx context.Context, store *ContextStore, entryID string) (*EnhancedContext, error) {
	entry, err := store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, pkgerrors.NewNotFoundError("entry " + entryID)
	}
	return &EnhancedContext{entry: entry, store: store}, nil
}

// Entry returns the wrapped entry
func (ec *EnhancedContext) Entry() *contexts.Entry {
	return ec.entry
}

// Store persists the wrapped entry through the store, routing by entry
// type so artifacts get version allocation and summaries get reference
// validation.
func (ec *EnhancedContext) Store(ctx context.Context) error {
	e := ec.entry
	opts := ec.carryOptions()

	var stored *contexts.Entry
	var err error
	switch e.EntryType {
	case contexts.EntryTypeArtifact:
		stored, err = ec.store.StoreArtifact(ctx, e.ProjectID, e.ArtifactName, e.Content, opts...)
	case contexts.EntryTypeSummary:
		stored, err = ec.store.CreateSummary(ctx, e.ProjectID, e.Content, e.SummarizedEntryIDs, opts...)
	default:
		stored, err = ec.store.StoreEvent(ctx, e.ProjectID, e.Content, opts...)
	}
	if err != nil {
		return err
	}
	ec.entry = stored
	return nil
}

// AddRelationship links this entry to another as the source
func (ec *EnhancedContext) AddRelationship(ctx context.Context, targetID string, relType contexts.RelationshipType) (*contexts.Relationship, error) {
	return ec.store.CreateRelationship(ctx, ec.entry.ID, targetID, relType, nil)
}

// GetRelatedContexts traverses the relationship graph from this entry
func (ec *EnhancedContext) GetRelatedContexts(ctx context.Context, relType contexts.RelationshipType, direction contexts.Direction) ([]contexts.Related, error) {
	return ec.store.GetRelatedEntries(ctx, ec.entry.ID, relType, direction)
}

// ToWireFormat projects the entry into the MCP envelope
func (ec *EnhancedContext) ToWireFormat() contexts.Envelope {
	return ec.entry.ToWireFormat()
}

func (ec *EnhancedContext) carryOptions() []contexts.EntryOption {
	e := ec.entry
	opts := make([]contexts.EntryOption, 0, 5)
	if e.UserID != "" {
		opts = append(opts, contexts.WithUserID(e.UserID))
	}
	if e.AgentID != "" {
		opts = append(opts, contexts.WithAgentID(e.AgentID))
	}
	if e.Source != "" {
		opts = append(opts, contexts.WithSource(e.Source))
	}
	if len(e.Tags) > 0 {
		opts = append(opts, contexts.WithTags(e.Tags))
	}
	if len(e.Metadata) > 0 {
		opts = append(opts, contexts.WithMetadata(e.Metadata))
	}
	return opts
}
