package syncer

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/api"
	"github.com/fieldexpense/claimsync/internal/model"
	"github.com/fieldexpense/claimsync/internal/pending"
	"github.com/fieldexpense/claimsync/internal/storage"
)

type rejectingCreator struct {
	err   error
	calls int
}

func (c *rejectingCreator) CreateReimbursement(context.Context, model.ReimbursementPayload, string, string) (*model.Reimbursement, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &model.Reimbursement{ID: 7}, nil
}

func TestSubmitOnlineCreatesDirectly(t *testing.T) {
	creator := &rejectingCreator{}
	queue := pending.NewQueue(storage.NewMemoryStore(), zap.NewNop())
	sub := NewSubmitter(creator, queue, stubConn{online: true}, zap.NewNop())

	result, err := sub.Submit(context.Background(), payloadFor("Budi"), "")
	require.NoError(t, err)
	assert.False(t, result.Queued)
	require.NotNil(t, result.Created)
	assert.Equal(t, int64(7), result.Created.ID)
	assert.Zero(t, queue.Count())
}

func TestSubmitOfflineEnqueues(t *testing.T) {
	creator := &rejectingCreator{}
	queue := pending.NewQueue(storage.NewMemoryStore(), zap.NewNop())
	sub := NewSubmitter(creator, queue, stubConn{online: false}, zap.NewNop())

	result, err := sub.Submit(context.Background(), payloadFor("Budi"), "/photos/r.jpg")
	require.NoError(t, err)
	assert.True(t, result.Queued)
	assert.NotEmpty(t, result.LocalID)
	assert.Zero(t, creator.calls)
	assert.Equal(t, 1, queue.Count())
}

// A deterministic validation rejection is surfaced, never queued.
func TestSubmitValidationErrorNotQueued(t *testing.T) {
	creator := &rejectingCreator{err: &api.Error{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    "amount must be positive",
		Fields:     map[string]string{"amount": "must be positive"},
	}}
	queue := pending.NewQueue(storage.NewMemoryStore(), zap.NewNop())
	sub := NewSubmitter(creator, queue, stubConn{online: true}, zap.NewNop())

	_, err := sub.Submit(context.Background(), payloadFor("Budi"), "")
	require.Error(t, err)
	assert.True(t, api.IsValidationError(err))
	assert.Zero(t, queue.Count())
}

// Each direct submission gets its own idempotency key.
func TestSubmitGeneratesFreshKeys(t *testing.T) {
	var keys []string
	creator := &fakeCreator{}
	queue := pending.NewQueue(storage.NewMemoryStore(), zap.NewNop())
	sub := NewSubmitter(creator, queue, stubConn{online: true}, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := sub.Submit(context.Background(), payloadFor("Budi"), "")
		require.NoError(t, err)
	}
	for _, call := range creator.calls {
		keys = append(keys, call.IdempotencyKey)
	}
	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1])
}
