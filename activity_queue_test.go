package claims_test

import (
	"context"
	"testing"
	"time"

	claims "github.com/goliatone/go-claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuedSinkDeliversOnFlush(t *testing.T) {
	delegate := &recordingSink{}
	queue := claims.NewQueuedSink(delegate, claims.WithQueueFlushInterval(time.Hour))
	defer queue.Close(context.Background())

	require.NoError(t, queue.Record(context.Background(), claims.ActivityEvent{
		EventType: claims.ActivityEventClaimTransition,
		SubjectID: "claim-1",
	}))

	assert.Empty(t, delegate.Events(), "Record must not deliver inline")

	queue.Flush(context.Background())

	events := delegate.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "claim-1", events[0].SubjectID)
}

func TestQueuedSinkRetriesFailedDelivery(t *testing.T) {
	delegate := &recordingSink{err: assert.AnError}
	queue := claims.NewQueuedSink(delegate, claims.WithQueueFlushInterval(time.Hour))

	require.NoError(t, queue.Record(context.Background(), claims.ActivityEvent{
		EventType: claims.ActivityEventClaimOverride,
	}))

	queue.Flush(context.Background())
	require.Len(t, delegate.Events(), 1, "first attempt reached the delegate")

	// delegate recovers; the event is retried, not lost
	delegate.err = nil
	queue.Flush(context.Background())
	assert.Len(t, delegate.Events(), 2)

	require.NoError(t, queue.Close(context.Background()))
}

func TestQueuedSinkCloseFlushes(t *testing.T) {
	delegate := &recordingSink{}
	queue := claims.NewQueuedSink(delegate, claims.WithQueueFlushInterval(time.Hour))

	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Record(context.Background(), claims.ActivityEvent{
			EventType: claims.ActivityEventSessionAcquired,
		}))
	}

	require.NoError(t, queue.Close(context.Background()))
	assert.Len(t, delegate.Events(), 3)
}

// memorySpool is a trivial in-memory ActivitySpool for queue tests.
type memorySpool struct {
	events []claims.ActivityEvent
}

func (s *memorySpool) Append(ctx context.Context, event claims.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *memorySpool) Drain(ctx context.Context, limit int) ([]claims.ActivityEvent, error) {
	out := s.events
	s.events = nil
	return out, nil
}

func TestQueuedSinkSpoolsUndeliveredOnClose(t *testing.T) {
	delegate := &recordingSink{err: assert.AnError}
	spool := &memorySpool{}
	queue := claims.NewQueuedSink(delegate,
		claims.WithQueueFlushInterval(time.Hour),
		claims.WithQueueSpool(spool),
	)

	require.NoError(t, queue.Record(context.Background(), claims.ActivityEvent{
		EventType: claims.ActivityEventClaimEdit,
	}))

	require.NoError(t, queue.Close(context.Background()))
	assert.Len(t, spool.events, 1)
}

func TestQueuedSinkReplaysSpoolOnStart(t *testing.T) {
	delegate := &recordingSink{}
	spool := &memorySpool{events: []claims.ActivityEvent{
		{EventType: claims.ActivityEventClaimOverride, SubjectID: "claim-9"},
	}}

	queue := claims.NewQueuedSink(delegate,
		claims.WithQueueFlushInterval(time.Hour),
		claims.WithQueueSpool(spool),
	)
	defer queue.Close(context.Background())

	queue.Flush(context.Background())

	events := delegate.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "claim-9", events[0].SubjectID)
}
