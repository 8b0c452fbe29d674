package claims

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// BunActivitySpool persists undelivered audit events in the local sqlite
// database so they survive restarts. Used as the QueuedSink's overflow
// storage; nothing reads spooled rows except Drain.
type BunActivitySpool struct {
	db       *bun.DB
	activity repository.Repository[*ActivityRecord]
}

var _ ActivitySpool = (*BunActivitySpool)(nil)

func NewBunActivitySpool(db *bun.DB) *BunActivitySpool {
	return &BunActivitySpool{
		db:       db,
		activity: NewActivityRepository(db),
	}
}

func (s *BunActivitySpool) Append(ctx context.Context, event ActivityEvent) error {
	occurred := event.OccurredAt
	record := &ActivityRecord{
		EventType:  string(event.EventType),
		ActorID:    event.Actor.ID,
		ActorRole:  string(event.Actor.Role),
		ActorType:  event.Actor.Type,
		SubjectID:  event.SubjectID,
		Outcome:    event.Outcome,
		Severity:   string(event.Severity),
		Metadata:   event.Metadata,
		OccurredAt: &occurred,
	}

	_, err := s.activity.Create(ctx, record)
	return err
}

func (s *BunActivitySpool) Drain(ctx context.Context, limit int) ([]ActivityEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []*ActivityRecord
	err := s.db.NewSelect().
		Model(&records).
		Order("occurred_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(records))
	events := make([]ActivityEvent, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID.String())
		events = append(events, spooledEvent(record))
	}

	_, err = s.db.NewDelete().
		Model((*ActivityRecord)(nil)).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return events, nil
}

func spooledEvent(record *ActivityRecord) ActivityEvent {
	var occurred time.Time
	if record.OccurredAt != nil {
		occurred = *record.OccurredAt
	}

	return ActivityEvent{
		EventType: ActivityEventType(record.EventType),
		Actor: ActorRef{
			ID:   record.ActorID,
			Role: Role(record.ActorRole),
			Type: record.ActorType,
		},
		SubjectID:  record.SubjectID,
		Outcome:    record.Outcome,
		Severity:   ActivitySeverity(record.Severity),
		Metadata:   record.Metadata,
		OccurredAt: occurred,
	}
}
