package progress

import (
	"context"
	"testing"

	"github.com/Lllllllleong/docraster/internal/models"
	"github.com/Lllllllleong/docraster/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversAndCheckpoints(t *testing.T) {
	memory := store.NewMemory()
	broker := NewBroker(memory)
	ctx := context.Background()

	events, cancel := broker.Subscribe("doc-1")
	defer cancel()

	broker.Publish(ctx, models.ProgressEvent{
		DocumentID:  "doc-1",
		Status:      models.ProgressProcessing,
		CurrentPage: 1,
		TotalPages:  3,
		Progress:    33,
	})

	ev := <-events
	assert.Equal(t, models.ProgressProcessing, ev.Status)
	assert.Equal(t, 1, ev.CurrentPage)
	assert.False(t, ev.UpdatedAt.IsZero())

	checkpoint, err := broker.Checkpoint(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 33, checkpoint.Progress)
}

func TestCheckpointUpsertOverwrites(t *testing.T) {
	memory := store.NewMemory()
	broker := NewBroker(memory)
	ctx := context.Background()

	broker.Publish(ctx, models.ProgressEvent{DocumentID: "doc-1", Status: models.ProgressProcessing, Progress: 33})
	broker.Publish(ctx, models.ProgressEvent{DocumentID: "doc-1", Status: models.ProgressProcessing, Progress: 67})

	checkpoint, err := broker.Checkpoint(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 67, checkpoint.Progress)
}

func TestTerminalEventClosesSubscribers(t *testing.T) {
	broker := NewBroker(store.NewMemory())
	events, cancel := broker.Subscribe("doc-1")
	defer cancel()

	broker.Publish(context.Background(), models.ProgressEvent{
		DocumentID: "doc-1",
		Status:     models.ProgressComplete,
		Progress:   100,
	})

	ev, open := <-events
	require.True(t, open)
	assert.Equal(t, models.ProgressComplete, ev.Status)

	_, open = <-events
	assert.False(t, open, "channel should be closed after a terminal event")
	assert.Equal(t, 0, broker.SubscriberCount("doc-1"))
}

func TestCancelIsIdempotent(t *testing.T) {
	broker := NewBroker(store.NewMemory())

	_, cancel := broker.Subscribe("doc-1")
	cancel()
	cancel()
	assert.Equal(t, 0, broker.SubscriberCount("doc-1"))

	// Cancel after a terminal teardown must not panic either.
	_, cancel = broker.Subscribe("doc-1")
	broker.Publish(context.Background(), models.ProgressEvent{DocumentID: "doc-1", Status: models.ProgressError})
	cancel()
}

func TestNoReplayForLateSubscribers(t *testing.T) {
	memory := store.NewMemory()
	broker := NewBroker(memory)
	ctx := context.Background()

	broker.Publish(ctx, models.ProgressEvent{DocumentID: "doc-1", Status: models.ProgressProcessing, Progress: 50})

	events, cancel := broker.Subscribe("doc-1")
	defer cancel()
	select {
	case ev := <-events:
		t.Fatalf("expected no replayed event, got %+v", ev)
	default:
	}

	// Last-known state is still recoverable from the checkpoint.
	checkpoint, err := broker.Checkpoint(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 50, checkpoint.Progress)
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	broker := NewBroker(store.NewMemory())
	events, cancel := broker.Subscribe("doc-1")
	defer cancel()

	for i := 0; i < subscriberBuffer*2; i++ {
		broker.Publish(context.Background(), models.ProgressEvent{
			DocumentID: "doc-1",
			Status:     models.ProgressProcessing,
			Progress:   i,
		})
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestPublishIsolatedPerDocument(t *testing.T) {
	broker := NewBroker(store.NewMemory())
	other, cancel := broker.Subscribe("doc-2")
	defer cancel()

	broker.Publish(context.Background(), models.ProgressEvent{DocumentID: "doc-1", Status: models.ProgressProcessing})
	assert.Len(t, other, 0)
}
