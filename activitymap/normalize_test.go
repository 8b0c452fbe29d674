package activitymap_test

import (
	"testing"
	"time"

	claims "github.com/goliatone/go-claims"
	"github.com/goliatone/go-claims/activitymap"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeClaimEvent(t *testing.T) {
	occurred := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

	event := claims.ActivityEvent{
		EventType: claims.ActivityEventClaimTransition,
		Actor: claims.ActorRef{
			ID:   "admin-1",
			Role: claims.RoleAdmin,
			Type: "user",
		},
		SubjectID:  "claim-42",
		Outcome:    "success",
		Severity:   claims.SeverityInfo,
		Metadata:   map[string]any{"action": "forward_to_sp"},
		OccurredAt: occurred,
	}

	normalized := activitymap.Normalize(event)

	assert.Equal(t, "admin-1", normalized.ActorID)
	assert.Equal(t, "claim.transition", normalized.Verb)
	assert.Equal(t, "claim", normalized.ObjectType)
	assert.Equal(t, "claim-42", normalized.ObjectID)
	assert.Equal(t, "claims", normalized.Channel)
	assert.Equal(t, occurred, normalized.OccurredAt)
	assert.Equal(t, "forward_to_sp", normalized.Metadata["action"])
	assert.Equal(t, "user", normalized.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "ADMIN", normalized.Metadata[activitymap.MetadataKeyActorRole])
}

func TestNormalizeObjectTypeByEventFamily(t *testing.T) {
	cases := []struct {
		eventType claims.ActivityEventType
		expected  string
	}{
		{claims.ActivityEventClaimOverride, "claim"},
		{claims.ActivityEventUserApproval, "user"},
		{claims.ActivityEventSessionAcquired, "principal"},
		{claims.ActivityEventPasscodeRequested, "principal"},
	}

	for _, tc := range cases {
		normalized := activitymap.Normalize(claims.ActivityEvent{EventType: tc.eventType})
		assert.Equal(t, tc.expected, normalized.ObjectType, "event %s", tc.eventType)
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	normalized := activitymap.Normalize(claims.ActivityEvent{
		EventType: claims.ActivityEventSessionReleased,
	})

	assert.Equal(t, "system", normalized.ActorID)
	assert.False(t, normalized.OccurredAt.IsZero())
}

func TestNormalizeOptions(t *testing.T) {
	event := claims.ActivityEvent{
		EventType: claims.ActivityEventClaimEdit,
		SubjectID: "claim-7",
	}

	normalized := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("portal"),
		activitymap.WithActorFallback("audit-bot"),
	)

	assert.Equal(t, "portal", normalized.Channel)
	assert.Equal(t, "audit-bot", normalized.ActorID)
	assert.Equal(t, "claim-7", normalized.ObjectID)
}
