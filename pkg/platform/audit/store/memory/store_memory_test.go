package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "conforma/pkg/platform/audit"
)

func TestAppendAndListByEntity(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, audit.Event{
		EntityType: "ncr", EntityID: "a", Action: string(audit.EventNCRCreated),
	}))
	require.NoError(t, store.Append(ctx, audit.Event{
		EntityType: "ncr", EntityID: "a", Action: string(audit.EventNCREscalated),
	}))
	require.NoError(t, store.Append(ctx, audit.Event{
		EntityType: "capa", EntityID: "a", Action: string(audit.EventCAPAGenerated),
	}))

	trail, err := store.ListByEntity(ctx, "ncr", "a")
	require.NoError(t, err)
	require.Len(t, trail, 2, "capa trail must not bleed into the ncr trail")
	assert.Equal(t, string(audit.EventNCRCreated), trail[0].Action)
	assert.Equal(t, string(audit.EventNCREscalated), trail[1].Action)
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, audit.Event{
			EntityType: "ncr",
			EntityID:   "a",
			Action:     string(audit.EventNCRUpdated),
			Detail:     string(rune('a' + i)),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].Detail)
	assert.Equal(t, "d", recent[1].Detail)
	assert.Equal(t, "c", recent[2].Detail)
}

func TestListByEntityReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, audit.Event{EntityType: "mrb", EntityID: "b", Action: string(audit.EventMRBCreated)}))

	trail, err := store.ListByEntity(ctx, "mrb", "b")
	require.NoError(t, err)
	trail[0].Action = "tampered"

	fresh, err := store.ListByEntity(ctx, "mrb", "b")
	require.NoError(t, err)
	assert.Equal(t, string(audit.EventMRBCreated), fresh[0].Action)
}
