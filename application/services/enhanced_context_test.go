package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contexthub-backend/application/services"
	"contexthub-backend/domain/contexts"
	pkgerrors "contexthub-backend/pkg/errors"
)

func TestEnhancedContext_StoreAndReload(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entry, err := contexts.NewEventEntry("proj-1", logContent("build passed"),
		contexts.WithUserID("user-1"),
		contexts.WithTags([]string{"ci"}),
	)
	require.NoError(t, err)

	ec, err := services.NewEnhancedContext(entry, store)
	require.NoError(t, err)
	require.NoError(t, ec.Store(ctx))

	loaded, err := services.LoadEnhancedContext(ctx, store, ec.Entry().ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.Entry().UserID)
	assert.True(t, loaded.Entry().HasTag("ci"))
}

func TestEnhancedContext_StoreArtifactAllocatesVersion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// The caller-supplied version is advisory; the store allocates its own
	entry, err := contexts.NewArtifactEntry("proj-1", "report", 99, "", logContent("draft"))
	require.NoError(t, err)

	ec, err := services.NewEnhancedContext(entry, store)
	require.NoError(t, err)
	require.NoError(t, ec.Store(ctx))

	assert.Equal(t, 1, ec.Entry().Version)
	assert.Empty(t, ec.Entry().ParentVersionID)
}

func TestEnhancedContext_Relationships(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	target, err := store.StoreEvent(ctx, "proj-1", logContent("deploy"))
	require.NoError(t, err)

	entry, err := contexts.NewEventEntry("proj-1", logContent("error"))
	require.NoError(t, err)
	ec, err := services.NewEnhancedContext(entry, store)
	require.NoError(t, err)
	require.NoError(t, ec.Store(ctx))

	_, err = ec.AddRelationship(ctx, target.ID, contexts.RelCausedBy)
	require.NoError(t, err)

	related, err := ec.GetRelatedContexts(ctx, "", contexts.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, target.ID, related[0].Entry.ID)
}

func TestLoadEnhancedContext_UnknownEntry(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := services.LoadEnhancedContext(context.Background(), store, "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))
}
