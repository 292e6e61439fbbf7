package draft

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/model"
	"github.com/fieldexpense/claimsync/internal/storage"
)

// countingStore counts Set calls, to verify debounce coalescing.
type countingStore struct {
	storage.Store
	sets atomic.Int32
}

func (s *countingStore) Set(ctx context.Context, key string, value any) error {
	s.sets.Add(1)
	return s.Store.Set(ctx, key, value)
}

func testDraft(step int) model.DraftEntry {
	catID := int64(2)
	return model.DraftEntry{
		Step:       step,
		ImageURI:   "/photos/receipt.jpg",
		Date:       "2025-11-03",
		Category:   "Meals",
		CategoryID: &catID,
		Client:     "Budi",
		Amount:     "150000",
		Note:       "lunch with client",
	}
}

// Save, restart, load: step and all fields come back identical.
func TestDraftRoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	capture := NewCapture(store, time.Hour, zap.NewNop())
	require.NoError(t, capture.Save(ctx, testDraft(3)))

	// New capture over the same store simulates a process restart.
	restarted := NewCapture(store, time.Hour, zap.NewNop())
	loaded, ok, err := restarted.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 3, loaded.Step)
	assert.Equal(t, "/photos/receipt.jpg", loaded.ImageURI)
	assert.Equal(t, "Meals", loaded.Category)
	require.NotNil(t, loaded.CategoryID)
	assert.Equal(t, int64(2), *loaded.CategoryID)
	assert.Equal(t, "Budi", loaded.Client)
	assert.Equal(t, "150000", loaded.Amount)
	assert.Equal(t, "lunch with client", loaded.Note)
	assert.False(t, loaded.SavedAt.IsZero())
}

// Three edits within the debounce window produce exactly one durable write.
func TestAutosaveCoalescesEdits(t *testing.T) {
	store := &countingStore{Store: storage.NewMemoryStore()}
	capture := NewCapture(store, 50*time.Millisecond, zap.NewNop())

	for step := 1; step <= 3; step++ {
		capture.Update(testDraft(step))
	}

	assert.Eventually(t, func() bool {
		return store.sets.Load() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), store.sets.Load())

	// The last edit is the one persisted.
	loaded, ok, err := capture.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, loaded.Step)
}

func TestUpdateSkipsEmptyDraft(t *testing.T) {
	store := &countingStore{Store: storage.NewMemoryStore()}
	capture := NewCapture(store, 10*time.Millisecond, zap.NewNop())

	capture.Update(model.DraftEntry{Step: 1, Date: "2025-11-03"})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, store.sets.Load())
}

func TestHasDraftIsPureRead(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: storage.NewMemoryStore()}
	capture := NewCapture(store, time.Hour, zap.NewNop())

	has, err := capture.HasDraft(ctx)
	require.NoError(t, err)
	assert.False(t, has)
	assert.Zero(t, store.sets.Load())

	require.NoError(t, capture.Save(ctx, testDraft(1)))

	has, err = capture.HasDraft(ctx)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, int32(1), store.sets.Load())
}

func TestDiscardClearsSlotAndPendingAutosave(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: storage.NewMemoryStore()}
	capture := NewCapture(store, 30*time.Millisecond, zap.NewNop())

	require.NoError(t, capture.Save(ctx, testDraft(2)))
	capture.Update(testDraft(3))
	require.NoError(t, capture.Discard(ctx))

	time.Sleep(80 * time.Millisecond)

	has, err := capture.HasDraft(ctx)
	require.NoError(t, err)
	assert.False(t, has, "pending autosave must not resurrect a discarded draft")
}

func TestFlushForcesPendingWrite(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	capture := NewCapture(store, time.Hour, zap.NewNop())

	capture.Update(testDraft(2))
	capture.Flush()

	_, ok, err := capture.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "flush must persist the draft without waiting out the debounce")
}
