package syncer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/model"
)

// Enqueuer is the queue surface used for offline capture.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload model.ReimbursementPayload, imageURI string) (string, error)
}

// SubmitResult reports how a submission was handled: created on the
// server immediately, or durably queued for later sync.
type SubmitResult struct {
	Queued  bool
	LocalID string
	Created *model.Reimbursement
}

// Submitter routes a new reimbursement either straight to the server
// (online) or into the pending queue (offline). Validation errors from
// the online path are returned to the caller for correction and are
// never queued; retrying a deterministic rejection cannot succeed.
type Submitter struct {
	creator Creator
	queue   Enqueuer
	conn    ConnectivitySource
	logger  *zap.Logger
	newKey  func() string
}

// NewSubmitter creates a submitter.
func NewSubmitter(creator Creator, queue Enqueuer, conn ConnectivitySource, logger *zap.Logger) *Submitter {
	return &Submitter{
		creator: creator,
		queue:   queue,
		conn:    conn,
		logger:  logger,
		newKey:  uuid.NewString,
	}
}

// Submit handles one user submission.
func (s *Submitter) Submit(ctx context.Context, payload model.ReimbursementPayload, imageURI string) (SubmitResult, error) {
	if !s.conn.IsOnline() {
		localID, err := s.queue.Enqueue(ctx, payload, imageURI)
		if err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Queued: true, LocalID: localID}, nil
	}

	created, err := s.creator.CreateReimbursement(ctx, payload, imageURI, s.newKey())
	if err != nil {
		s.logger.Warn("Direct submission failed", zap.Error(err))
		return SubmitResult{}, err
	}

	s.logger.Info("Submission created directly", zap.Int64("id", created.ID))
	return SubmitResult{Created: created}, nil
}
