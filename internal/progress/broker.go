// Package progress implements the per-document progress channel: an injected
// broker that fans events out to live subscribers and checkpoints every event
// to the record store so late subscribers can recover last-known state.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Lllllllleong/docraster/internal/models"
	"github.com/Lllllllleong/docraster/internal/store"
)

// subscriberBuffer sizes each subscriber's event channel. A subscriber that
// falls further behind than this loses intermediate events; the checkpoint
// remains authoritative.
const subscriberBuffer = 16

// Broker owns the subscriber registry for all in-flight document runs.
// Publish is checkpoint-first: the record-store upsert happens before the
// live broadcast, so a lost broadcast can never leave the checkpoint stale.
type Broker struct {
	records store.RecordStore

	mu   sync.Mutex
	subs map[string]map[chan models.ProgressEvent]struct{}
}

// NewBroker returns a broker that checkpoints events via records.
func NewBroker(records store.RecordStore) *Broker {
	return &Broker{
		records: records,
		subs:    make(map[string]map[chan models.ProgressEvent]struct{}),
	}
}

// Subscribe registers an observer for one document's events. It receives only
// events published after the call (no replay); last-known state is available
// via Checkpoint. The returned cancel func is idempotent and must be called
// when the observer disconnects. The channel is closed on cancel or when the
// run publishes a terminal event.
func (b *Broker) Subscribe(documentID string) (<-chan models.ProgressEvent, func()) {
	ch := make(chan models.ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subs[documentID]
	if !ok {
		set = make(map[chan models.ProgressEvent]struct{})
		b.subs[documentID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		set, ok := b.subs[documentID]
		if !ok {
			return
		}
		if _, live := set[ch]; !live {
			return
		}
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, documentID)
		}
		close(ch)
	}
	return ch, cancel
}

// Publish checkpoints ev and broadcasts it to the document's subscribers.
// Failures are logged and swallowed: progress is best-effort and must never
// abort a run. A terminal event tears down the document's subscriber set.
func (b *Broker) Publish(ctx context.Context, ev models.ProgressEvent) {
	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = time.Now()
	}

	if err := b.records.UpsertProgress(ctx, &ev); err != nil {
		slog.Warn("Failed to checkpoint progress event.", "documentId", ev.DocumentID, "status", ev.Status, "error", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[ev.DocumentID]
	for ch := range set {
		select {
		case ch <- ev:
		default:
			// Subscriber is not draining; drop rather than block the run.
		}
	}
	if ev.Terminal() && set != nil {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, ev.DocumentID)
	}
}

// Checkpoint returns the last checkpointed event for a document.
func (b *Broker) Checkpoint(ctx context.Context, documentID string) (*models.ProgressEvent, error) {
	return b.records.GetProgress(ctx, documentID)
}

// SubscriberCount reports the number of live subscribers for a document.
func (b *Broker) SubscriberCount(documentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[documentID])
}
