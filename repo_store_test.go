package claims_test

import (
	"context"
	"testing"
	"time"

	claims "github.com/goliatone/go-claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := claims.OpenLocalDB("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, claims.EnsureLocalSchema(context.Background(), db))
	return db
}

func TestBunTokenStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := claims.NewBunTokenStore(db)
	ctx := context.Background()

	token, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Put(ctx, "tok-1"))
	token, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	require.NoError(t, store.Put(ctx, "tok-2"))
	token, _ = store.Get(ctx)
	assert.Equal(t, "tok-2", token, "put replaces the single row")

	require.NoError(t, store.Delete(ctx))
	token, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestBunActivitySpoolAppendAndDrain(t *testing.T) {
	db := openTestDB(t)
	spool := claims.NewBunActivitySpool(db)
	ctx := context.Background()

	first := claims.ActivityEvent{
		EventType:  claims.ActivityEventClaimOverride,
		Actor:      claims.ActorRef{ID: "admin-1", Role: claims.RoleAdmin, Type: "user"},
		SubjectID:  "claim-1",
		Outcome:    "success",
		Severity:   claims.SeverityCritical,
		Metadata:   map[string]any{"reason": "assessment error"},
		OccurredAt: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	second := claims.ActivityEvent{
		EventType:  claims.ActivityEventSessionReleased,
		Actor:      claims.ActorRef{ID: "farmer-1", Role: claims.RoleFarmer, Type: "user"},
		OccurredAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, spool.Append(ctx, first))
	require.NoError(t, spool.Append(ctx, second))

	events, err := spool.Drain(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// oldest first
	assert.Equal(t, claims.ActivityEventClaimOverride, events[0].EventType)
	assert.Equal(t, "admin-1", events[0].Actor.ID)
	assert.Equal(t, claims.RoleAdmin, events[0].Actor.Role)
	assert.Equal(t, claims.SeverityCritical, events[0].Severity)
	assert.Equal(t, "assessment error", events[0].Metadata["reason"])

	// drained rows are consumed
	events, err = spool.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
