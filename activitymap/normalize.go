package activitymap

import (
	"strings"
	"time"

	claims "github.com/goliatone/go-claims"
)

const (
	// MetadataKeyActorType stores the actor type derived from claims.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyActorRole stores the acting role for authorization review.
	MetadataKeyActorRole = "actor_role"
	// MetadataKeySeverity stores the event severity rank.
	MetadataKeySeverity = "severity"
	// MetadataKeyOutcome stores the success/failure outcome.
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel = "claims"
	defaultActorID = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
}

// WithDefaultChannel sets the channel stamped on normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when the event carries none.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// Normalize converts a claims.ActivityEvent into a generic normalized shape.
// The object type is derived from the event family and the object id is the
// event's subject.
func Normalize(event claims.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := strings.TrimSpace(event.Actor.ID)
	if actorID == "" {
		actorID = options.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: objectTypeFor(event.EventType),
		ObjectID:   strings.TrimSpace(event.SubjectID),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// objectTypeFor derives the object type from the event family:
// session/challenge events describe principals, claim events describe claims,
// approval events describe users.
func objectTypeFor(eventType claims.ActivityEventType) string {
	verb := string(eventType)
	switch {
	case strings.HasPrefix(verb, "user."):
		return "user"
	case strings.HasPrefix(verb, "session."), strings.HasPrefix(verb, "challenge."):
		return "principal"
	}
	return "claim"
}

func normalizeMetadata(event claims.ActivityEvent) map[string]any {
	var metadata map[string]any
	if len(event.Metadata) > 0 {
		metadata = make(map[string]any, len(event.Metadata)+4)
		for key, value := range event.Metadata {
			metadata[key] = value
		}
	}

	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyActorType, strings.TrimSpace(event.Actor.Type))
	set(MetadataKeyActorRole, string(event.Actor.Role))
	set(MetadataKeySeverity, string(event.Severity))
	set(MetadataKeyOutcome, event.Outcome)

	return metadata
}
