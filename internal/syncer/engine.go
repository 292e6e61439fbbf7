// Package syncer drives drainage of the pending-submission queue. Failed
// items stay queued and are retried on every subsequent pass; there is no
// backoff and no max-attempts ceiling. That trades retry economy for
// guaranteed eventual delivery, which is safe because every create carries
// an idempotency key derived from the submission's localId.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/model"
)

// Creator is the remote create endpoint consumed by the engine.
type Creator interface {
	CreateReimbursement(ctx context.Context, payload model.ReimbursementPayload, imagePath, idempotencyKey string) (*model.Reimbursement, error)
}

// ConnectivitySource reports the current online flag.
type ConnectivitySource interface {
	IsOnline() bool
}

// SubmissionQueue is the queue surface the engine drives. The engine is
// the only component that mutates the queue.
type SubmissionQueue interface {
	Snapshot() []model.PendingSubmission
	Count() int
	MarkAttempt(ctx context.Context, localID string) error
	RemoveConfirmed(ctx context.Context, localIDs []string) error
}

// Engine runs mutually-exclusive sync passes over the queue.
type Engine struct {
	queue   SubmissionQueue
	creator Creator
	conn    ConnectivitySource
	fs      FileSystem
	logger  *zap.Logger

	inFlight atomic.Bool

	mu      sync.Mutex
	lastErr string
}

// NewEngine creates a sync engine. fs is the injected filesystem probe
// used to check queued receipt images.
func NewEngine(queue SubmissionQueue, creator Creator, conn ConnectivitySource, fs FileSystem, logger *zap.Logger) *Engine {
	return &Engine{
		queue:   queue,
		creator: creator,
		conn:    conn,
		fs:      fs,
		logger:  logger,
	}
}

// SyncPass drains the queue once. At most one pass runs at a time: a call
// arriving while another pass is in flight is dropped, not queued — the
// next trigger picks up whatever remains. The pass iterates a snapshot of
// the queue, so items enqueued mid-pass wait for the next one.
func (e *Engine) SyncPass(ctx context.Context) {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug("Sync pass already in progress, skipping")
		return
	}
	defer e.inFlight.Store(false)

	if !e.conn.IsOnline() {
		e.logger.Debug("Skipping sync pass: offline")
		return
	}
	if e.queue.Count() == 0 {
		return
	}

	snapshot := e.queue.Snapshot()
	e.logger.Info("Starting sync pass", zap.Int("pending", len(snapshot)))

	var confirmed []string
	failed := 0

	// Sequential on purpose: bounds concurrent uploads and preserves
	// server-side ordering of creation side effects.
	for _, sub := range snapshot {
		if err := e.queue.MarkAttempt(ctx, sub.LocalID); err != nil {
			e.logger.Error("Failed to record sync attempt",
				zap.String("local_id", sub.LocalID), zap.Error(err))
			failed++
			continue
		}

		imagePath := sub.ImageURI
		if imagePath != "" && !e.fs.Exists(imagePath) {
			// The photo was deleted from local storage; submit the
			// claim without it rather than failing forever.
			e.logger.Warn("Receipt image missing, submitting without it",
				zap.String("local_id", sub.LocalID),
				zap.String("image_uri", imagePath))
			imagePath = ""
		}

		_, err := e.creator.CreateReimbursement(ctx, sub.Payload, imagePath, "pending-"+sub.LocalID)
		if err != nil {
			e.logger.Warn("Submission sync failed, will retry",
				zap.String("local_id", sub.LocalID),
				zap.Int("attempts", sub.Attempts+1),
				zap.Error(err))
			e.setLastError(err.Error())
			failed++
			continue
		}

		e.logger.Info("Submission synced", zap.String("local_id", sub.LocalID))
		confirmed = append(confirmed, sub.LocalID)
	}

	if err := e.queue.RemoveConfirmed(ctx, confirmed); err != nil {
		e.logger.Error("Failed to remove confirmed submissions", zap.Error(err))
	}

	if failed > 0 {
		e.setLastError(fmt.Sprintf("%d submissions still pending, will retry", failed))
		e.logger.Warn("Sync pass finished with failures",
			zap.Int("synced", len(confirmed)), zap.Int("failed", failed))
		return
	}

	e.setLastError("")
	e.logger.Info("Sync pass finished", zap.Int("synced", len(confirmed)))
}

// Syncing reports whether a pass is currently in flight.
func (e *Engine) Syncing() bool {
	return e.inFlight.Load()
}

// LastError returns the most recent aggregate sync failure, or empty
// string after a fully successful pass. It never blocks future attempts.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) setLastError(msg string) {
	e.mu.Lock()
	e.lastErr = msg
	e.mu.Unlock()
}
