package services_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contexthub-backend/application/ports"
	"contexthub-backend/application/services"
	"contexthub-backend/domain/contexts"
	"contexthub-backend/domain/events"
	"contexthub-backend/infrastructure/persistence/memory"
	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/extensions"
	"contexthub-backend/pkg/observability"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

func newTestStore(t *testing.T) (*services.ContextStore, *recordingPublisher) {
	t.Helper()
	entries := memory.NewEntryRepository()
	relations := memory.NewRelationshipRepository()
	publisher := &recordingPublisher{}
	store := services.NewContextStore(
		entries,
		relations,
		services.NewNaiveSearcher(entries),
		publisher,
		nil,
		nil,
		observability.NewTracer("test", false),
		zap.NewNop(),
	)
	return store, publisher
}

func logContent(lines ...string) contexts.Content {
	return contexts.NewLogContent(contexts.LogPayload{Source: "test", Lines: lines})
}

func TestContextStore_StoreEventRoundTrip(t *testing.T) {
	store, publisher := newTestStore(t)
	ctx := context.Background()

	stored, err := store.StoreEvent(ctx, "proj-1", logContent("deploy started"),
		contexts.WithUserID("user-1"),
		contexts.WithTags([]string{"deploy"}),
	)
	require.NoError(t, err)

	loaded, err := store.GetEntry(ctx, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, stored.ID, loaded.ID)
	assert.Equal(t, contexts.EntryTypeEvent, loaded.EntryType)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.True(t, loaded.HasTag("deploy"))
	assert.Contains(t, publisher.types(), events.TypeEntryStored)
}

func TestContextStore_GetEntryAbsentReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	entry, err := store.GetEntry(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestContextStore_ArtifactVersioning(t *testing.T) {
	store, publisher := newTestStore(t)
	ctx := context.Background()

	v1, err := store.StoreArtifact(ctx, "proj-1", "report", logContent("draft"))
	require.NoError(t, err)
	v2, err := store.StoreArtifact(ctx, "proj-1", "report", logContent("revised"))
	require.NoError(t, err)
	v3, err := store.StoreArtifact(ctx, "proj-1", "report", logContent("final"))
	require.NoError(t, err)

	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, 3, v3.Version)
	assert.Empty(t, v1.ParentVersionID)
	assert.Equal(t, v1.ID, v2.ParentVersionID)
	assert.Equal(t, v2.ID, v3.ParentVersionID)
	assert.Contains(t, publisher.types(), events.TypeArtifactVersionCreated)

	// Version 0 resolves to the latest
	latest, err := store.GetArtifactByName(ctx, "proj-1", "report", 0)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, v3.ID, latest.ID)

	// Old versions remain addressable
	second, err := store.GetArtifactByName(ctx, "proj-1", "report", 2)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, v2.ID, second.ID)

	// Out-of-range version is absence, not an error
	missing, err := store.GetArtifactByName(ctx, "proj-1", "report", 9)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestContextStore_GetArtifactByName_RejectsNegativeVersion(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetArtifactByName(context.Background(), "proj-1", "report", -1)
	assert.True(t, pkgerrors.IsInvalidArgument(err))
}

func TestContextStore_GetArtifactHistory(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		_, err := store.StoreArtifact(ctx, "proj-1", "report", logContent(body))
		require.NoError(t, err)
	}

	chain, err := store.GetArtifactHistory(ctx, "proj-1", "report")
	require.NoError(t, err)

	require.Len(t, chain, 3)
	for i, version := range chain {
		assert.Equal(t, i+1, version.Version)
		assert.NotEmpty(t, version.Checksum)
	}
	assert.Equal(t, chain[0].EntryID, chain[1].ParentVersionID)
	assert.Equal(t, chain[1].EntryID, chain[2].ParentVersionID)
}

func TestContextStore_ConcurrentArtifactWritesGetDistinctVersions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	const writers = 10
	versions := make([]int, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := store.StoreArtifact(ctx, "proj-1", "report", logContent("concurrent"))
			if assert.NoError(t, err) {
				versions[i] = entry.Version
			}
		}(i)
	}
	wg.Wait()

	sort.Ints(versions)
	for i, v := range versions {
		assert.Equal(t, i+1, v)
	}
}

func TestContextStore_CreateSummary(t *testing.T) {
	store, publisher := newTestStore(t)
	ctx := context.Background()

	first, err := store.StoreEvent(ctx, "proj-1", logContent("a"))
	require.NoError(t, err)
	second, err := store.StoreEvent(ctx, "proj-1", logContent("b"))
	require.NoError(t, err)

	summary, err := store.CreateSummary(ctx, "proj-1", logContent("a and b"), []string{first.ID, second.ID})
	require.NoError(t, err)

	assert.Equal(t, contexts.EntryTypeSummary, summary.EntryType)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, summary.SummarizedEntryIDs)
	assert.Contains(t, publisher.types(), events.TypeSummaryCreated)

	// Summarized entries are untouched
	loaded, err := store.GetEntry(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, contexts.EntryTypeEvent, loaded.EntryType)
}

func TestContextStore_CreateSummary_RejectsMissingReference(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	existing, err := store.StoreEvent(ctx, "proj-1", logContent("a"))
	require.NoError(t, err)

	_, err = store.CreateSummary(ctx, "proj-1", logContent("sum"), []string{existing.ID, "ghost"})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestContextStore_Relationships(t *testing.T) {
	store, publisher := newTestStore(t)
	ctx := context.Background()

	errEntry, err := store.StoreEvent(ctx, "proj-1", logContent("error observed"))
	require.NoError(t, err)
	deploy, err := store.StoreEvent(ctx, "proj-1", logContent("deploy finished"))
	require.NoError(t, err)

	rel, err := store.CreateRelationship(ctx, errEntry.ID, deploy.ID, contexts.RelCausedBy, nil)
	require.NoError(t, err)
	assert.Equal(t, errEntry.ID, rel.SourceID)
	assert.Equal(t, deploy.ID, rel.TargetID)
	assert.Contains(t, publisher.types(), events.TypeRelationshipCreated)

	// Outgoing from the source reaches the target
	outgoing, err := store.GetRelatedEntries(ctx, errEntry.ID, "", contexts.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, deploy.ID, outgoing[0].Entry.ID)
	assert.Equal(t, contexts.RelCausedBy, outgoing[0].Type)

	// Incoming at the target reaches the source
	incoming, err := store.GetRelatedEntries(ctx, deploy.ID, "", contexts.DirectionIncoming)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, errEntry.ID, incoming[0].Entry.ID)

	// Type filter excludes non-matching edges
	none, err := store.GetRelatedEntries(ctx, errEntry.ID, contexts.RelFixedBy, contexts.DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestContextStore_DuplicateEdgesOfDifferentTypes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	errEntry, err := store.StoreEvent(ctx, "proj-1", logContent("error observed"))
	require.NoError(t, err)
	deploy, err := store.StoreEvent(ctx, "proj-1", logContent("deploy finished"))
	require.NoError(t, err)

	// Two edges of different types between the same pair are both kept
	_, err = store.CreateRelationship(ctx, errEntry.ID, deploy.ID, contexts.RelCausedBy, nil)
	require.NoError(t, err)
	_, err = store.CreateRelationship(ctx, errEntry.ID, deploy.ID, contexts.RelFixedBy, nil)
	require.NoError(t, err)

	related, err := store.GetRelatedEntries(ctx, errEntry.ID, "", contexts.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, related, 2)

	types := []contexts.RelationshipType{related[0].Type, related[1].Type}
	assert.ElementsMatch(t, []contexts.RelationshipType{contexts.RelCausedBy, contexts.RelFixedBy}, types)
	for _, r := range related {
		assert.Equal(t, deploy.ID, r.Entry.ID)
	}
}

func TestContextStore_CreateRelationship_Validation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entry, err := store.StoreEvent(ctx, "proj-1", logContent("a"))
	require.NoError(t, err)

	_, err = store.CreateRelationship(ctx, entry.ID, "ghost", contexts.RelRelatedTo, nil)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = store.CreateRelationship(ctx, entry.ID, entry.ID, "friends_with", nil)
	assert.True(t, pkgerrors.IsInvalidArgument(err))
}

func TestContextStore_GetRelatedEntries_DefaultsToBoth(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, err := store.StoreEvent(ctx, "proj-1", logContent("a"))
	require.NoError(t, err)
	b, err := store.StoreEvent(ctx, "proj-1", logContent("b"))
	require.NoError(t, err)
	c, err := store.StoreEvent(ctx, "proj-1", logContent("c"))
	require.NoError(t, err)

	_, err = store.CreateRelationship(ctx, a.ID, b.ID, contexts.RelPartOf, nil)
	require.NoError(t, err)
	_, err = store.CreateRelationship(ctx, c.ID, a.ID, contexts.RelReferences, nil)
	require.NoError(t, err)

	related, err := store.GetRelatedEntries(ctx, a.ID, "", "")
	require.NoError(t, err)

	ids := make([]string, 0, len(related))
	for _, r := range related {
		ids = append(ids, r.Entry.ID)
	}
	assert.ElementsMatch(t, []string{b.ID, c.ID}, ids)
}

func TestContextStore_GetEntriesByProject(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreEvent(ctx, "proj-1", logContent("event"))
	require.NoError(t, err)
	_, err = store.StoreArtifact(ctx, "proj-1", "report", logContent("artifact"))
	require.NoError(t, err)
	_, err = store.StoreEvent(ctx, "proj-2", logContent("other project"))
	require.NoError(t, err)

	all, err := store.GetEntriesByProject(ctx, "proj-1", "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	artifacts, err := store.GetEntriesByProject(ctx, "proj-1", contexts.EntryTypeArtifact, 0, 0)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "report", artifacts[0].ArtifactName)

	_, err = store.GetEntriesByProject(ctx, "proj-1", "banana", 0, 0)
	assert.True(t, pkgerrors.IsInvalidArgument(err))
}

func TestContextStore_SearchEntries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreEvent(ctx, "proj-1", logContent("database timeout on checkout"),
		contexts.WithTags([]string{"incident", "db"}))
	require.NoError(t, err)
	_, err = store.StoreEvent(ctx, "proj-1", logContent("cache warmed"),
		contexts.WithTags([]string{"routine"}))
	require.NoError(t, err)

	byText, err := store.SearchEntries(ctx, "proj-1", "TIMEOUT", nil, 0)
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.True(t, byText[0].HasTag("incident"))

	byTags, err := store.SearchEntries(ctx, "proj-1", "", []string{"incident", "db"}, 0)
	require.NoError(t, err)
	assert.Len(t, byTags, 1)

	nothing, err := store.SearchEntries(ctx, "proj-1", "timeout", []string{"routine"}, 0)
	require.NoError(t, err)
	assert.Empty(t, nothing)
}

func TestContextStore_EntryStoreHooks(t *testing.T) {
	entries := memory.NewEntryRepository()
	hooks := extensions.NewHookManager()
	store := services.NewContextStore(
		entries,
		memory.NewRelationshipRepository(),
		services.NewNaiveSearcher(entries),
		nil,
		nil,
		nil,
		observability.NewTracer("test", false),
		zap.NewNop(),
		services.WithHooks(hooks),
	)
	ctx := context.Background()

	hooks.Register(extensions.HookBeforeEntryStore, func(_ context.Context, data interface{}) error {
		entry, ok := data.(*contexts.Entry)
		require.True(t, ok)
		if entry.HasTag("blocked") {
			return pkgerrors.NewInvalidArgumentError("entry rejected")
		}
		return nil
	})

	after := make(chan *contexts.Entry, 1)
	hooks.Register(extensions.HookAfterEntryStore, func(_ context.Context, data interface{}) error {
		after <- data.(*contexts.Entry)
		return nil
	})

	// A failing before hook aborts the write
	_, err := store.StoreEvent(ctx, "proj-1", logContent("nope"),
		contexts.WithTags([]string{"blocked"}))
	require.Error(t, err)

	remaining, err := store.GetEntriesByProject(ctx, "proj-1", "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	stored, err := store.StoreEvent(ctx, "proj-1", logContent("ok"))
	require.NoError(t, err)

	select {
	case got := <-after:
		assert.Equal(t, stored.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("after-store hook never ran")
	}
}

var _ ports.EventPublisher = (*recordingPublisher)(nil)
