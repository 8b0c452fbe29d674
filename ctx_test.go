package claims_test

import (
	"context"
	"testing"

	claims "github.com/goliatone/go-claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	principal := &claims.Principal{ID: "u-1", Role: claims.RoleFarmer}

	ctx := claims.WithContext(context.Background(), principal)

	got, ok := claims.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-1", got.ID)

	_, ok = claims.FromContext(context.Background())
	assert.False(t, ok)
}

func TestSessionContextRoundTrip(t *testing.T) {
	session := authenticatedSession(claims.RoleAdmin)

	ctx := claims.WithSessionContext(context.Background(), session)

	got, ok := claims.SessionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.Principal.ID)
}

func TestActorFromContext(t *testing.T) {
	ctx := claims.WithSessionContext(context.Background(), authenticatedSession(claims.RoleAdmin))
	actor := claims.ActorFromContext(ctx)
	assert.Equal(t, "user-1", actor.ID)
	assert.Equal(t, claims.RoleAdmin, actor.Role)

	// no session: fall back to a bare principal
	ctx = claims.WithContext(context.Background(), &claims.Principal{ID: "u-2", Role: claims.RoleFarmer})
	actor = claims.ActorFromContext(ctx)
	assert.Equal(t, "u-2", actor.ID)

	// nothing at all: system actor
	actor = claims.ActorFromContext(context.Background())
	assert.Equal(t, "system", actor.Type)
}

func TestCan(t *testing.T) {
	ctx := claims.WithSessionContext(context.Background(), authenticatedSession(claims.RoleSuperAdmin))
	assert.True(t, claims.Can(ctx, claims.RoleAdmin))
	assert.False(t, claims.Can(ctx, claims.RoleFarmer))

	assert.False(t, claims.Can(context.Background(), claims.RoleAdmin))
}
