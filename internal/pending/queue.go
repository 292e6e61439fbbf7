// Package pending holds the durable, ordered queue of not-yet-confirmed
// reimbursement creations. The durable store is the source of truth;
// the in-memory list is a cache refreshed after every mutation.
package pending

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/model"
	"github.com/fieldexpense/claimsync/internal/storage"
)

// Queue is the pending-submission queue. Queue order is insertion order.
// An item stays queued from enqueue until the server confirms creation;
// it is never removed on failure.
type Queue struct {
	store  storage.Store
	logger *zap.Logger

	mu    sync.Mutex
	items []model.PendingSubmission

	now   func() time.Time
	newID func() string
}

// NewQueue creates an empty queue over the given store. Call Hydrate
// before use to load any persisted items.
func NewQueue(store storage.Store, logger *zap.Logger) *Queue {
	return &Queue{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return "local_" + uuid.NewString() },
	}
}

// Hydrate loads the persisted queue into memory. A missing key yields an
// empty queue.
func (q *Queue) Hydrate(ctx context.Context) error {
	var items []model.PendingSubmission
	if _, err := q.store.Get(ctx, storage.KeyPendingSubmissions, &items); err != nil {
		return fmt.Errorf("failed to hydrate pending queue: %w", err)
	}

	q.mu.Lock()
	q.items = items
	q.mu.Unlock()

	if len(items) > 0 {
		q.logger.Info("Hydrated pending submissions", zap.Int("count", len(items)))
	}
	return nil
}

// Enqueue appends a new submission and returns its localId. The caller
// uses this only while offline; the write is durable before returning.
func (q *Queue) Enqueue(ctx context.Context, payload model.ReimbursementPayload, imageURI string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub := model.PendingSubmission{
		LocalID:   q.newID(),
		Payload:   payload,
		ImageURI:  imageURI,
		CreatedAt: q.now(),
		Attempts:  0,
	}

	next := append(q.copyLocked(), sub)
	if err := q.store.Set(ctx, storage.KeyPendingSubmissions, next); err != nil {
		return "", fmt.Errorf("failed to persist enqueued submission: %w", err)
	}
	q.items = next

	q.logger.Info("Submission enqueued for offline sync",
		zap.String("local_id", sub.LocalID),
		zap.Int("queue_length", len(next)))
	return sub.LocalID, nil
}

// Snapshot returns a stable copy of the current queue contents. Items
// enqueued after the snapshot is taken are not part of it.
func (q *Queue) Snapshot() []model.PendingSubmission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.copyLocked()
}

// Count returns the number of queued submissions, for display badges.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MarkAttempt durably increments the attempt counter and stamps the last
// attempt time for one submission. Called before each sync attempt so a
// crash mid-attempt still reflects that the attempt was made.
func (q *Queue) MarkAttempt(ctx context.Context, localID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := q.copyLocked()
	found := false
	for i := range next {
		if next[i].LocalID == localID {
			now := q.now()
			next[i].Attempts++
			next[i].LastAttempt = &now
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("pending submission %q not found", localID)
	}

	if err := q.store.Set(ctx, storage.KeyPendingSubmissions, next); err != nil {
		return fmt.Errorf("failed to persist attempt for %q: %w", localID, err)
	}
	q.items = next
	return nil
}

// RemoveConfirmed deletes the given submissions in one batch and reloads
// the canonical list from storage.
func (q *Queue) RemoveConfirmed(ctx context.Context, localIDs []string) error {
	if len(localIDs) == 0 {
		return q.Reload(ctx)
	}

	confirmed := make(map[string]bool, len(localIDs))
	for _, id := range localIDs {
		confirmed[id] = true
	}

	q.mu.Lock()
	remaining := make([]model.PendingSubmission, 0, len(q.items))
	for _, sub := range q.items {
		if !confirmed[sub.LocalID] {
			remaining = append(remaining, sub)
		}
	}
	err := q.store.Set(ctx, storage.KeyPendingSubmissions, remaining)
	if err == nil {
		q.items = remaining
	}
	q.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to remove confirmed submissions: %w", err)
	}

	q.logger.Info("Removed confirmed submissions", zap.Int("count", len(localIDs)))
	return q.Reload(ctx)
}

// Remove deletes a single submission, for explicit user discard.
func (q *Queue) Remove(ctx context.Context, localID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := make([]model.PendingSubmission, 0, len(q.items))
	for _, sub := range q.items {
		if sub.LocalID != localID {
			next = append(next, sub)
		}
	}
	if err := q.store.Set(ctx, storage.KeyPendingSubmissions, next); err != nil {
		return fmt.Errorf("failed to remove submission %q: %w", localID, err)
	}
	q.items = next
	return nil
}

// Reload refreshes the in-memory list from the durable store.
func (q *Queue) Reload(ctx context.Context) error {
	var items []model.PendingSubmission
	if _, err := q.store.Get(ctx, storage.KeyPendingSubmissions, &items); err != nil {
		return fmt.Errorf("failed to reload pending queue: %w", err)
	}

	q.mu.Lock()
	q.items = items
	q.mu.Unlock()
	return nil
}

func (q *Queue) copyLocked() []model.PendingSubmission {
	out := make([]model.PendingSubmission, len(q.items))
	copy(out, q.items)
	return out
}
