// Package draft persists the single in-progress multi-step form entry so
// an app restart resumes the flow at the right step. Writes are debounced;
// the whole draft object is overwritten on every change (last-write-wins).
package draft

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/model"
	"github.com/fieldexpense/claimsync/internal/storage"
)

// DefaultDebounce is the autosave coalescing window.
const DefaultDebounce = 500 * time.Millisecond

// Capture owns the single draft slot.
type Capture struct {
	store     storage.Store
	debouncer *Debouncer
	logger    *zap.Logger
	now       func() time.Time
}

// NewCapture creates a draft capture. debounce <= 0 selects DefaultDebounce.
func NewCapture(store storage.Store, debounce time.Duration, logger *zap.Logger) *Capture {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Capture{
		store:     store,
		debouncer: NewDebouncer(debounce),
		logger:    logger,
		now:       time.Now,
	}
}

// Update schedules a debounced durable write of the draft. Rapid
// consecutive edits coalesce into a single write of the latest state.
// Drafts with no meaningful content are not persisted.
func (c *Capture) Update(entry model.DraftEntry) {
	if !entry.HasContent() {
		return
	}
	c.debouncer.Schedule(func() {
		if err := c.save(context.Background(), entry); err != nil {
			c.logger.Warn("Draft autosave failed", zap.Error(err))
		}
	})
}

// Save writes the draft immediately, bypassing the debounce window.
func (c *Capture) Save(ctx context.Context, entry model.DraftEntry) error {
	c.debouncer.Cancel()
	return c.save(ctx, entry)
}

// Load reads the draft slot. The second return value reports whether a
// draft exists.
func (c *Capture) Load(ctx context.Context) (model.DraftEntry, bool, error) {
	var entry model.DraftEntry
	ok, err := c.store.Get(ctx, storage.KeyDraftEntry, &entry)
	if err != nil {
		return model.DraftEntry{}, false, fmt.Errorf("failed to load draft: %w", err)
	}
	return entry, ok, nil
}

// HasDraft reports whether a draft exists. Pure read; no state mutation.
func (c *Capture) HasDraft(ctx context.Context) (bool, error) {
	var entry model.DraftEntry
	ok, err := c.store.Get(ctx, storage.KeyDraftEntry, &entry)
	if err != nil {
		return false, fmt.Errorf("failed to check draft: %w", err)
	}
	return ok, nil
}

// Discard drops any pending autosave and clears the durable slot. Called
// on explicit submit or discard.
func (c *Capture) Discard(ctx context.Context) error {
	c.debouncer.Cancel()
	if err := c.store.Remove(ctx, storage.KeyDraftEntry); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	c.logger.Debug("Draft cleared")
	return nil
}

// Flush forces a pending autosave to disk now. The lifecycle layer calls
// this when the app backgrounds so no edits are lost to the debounce window.
func (c *Capture) Flush() {
	c.debouncer.Flush()
}

func (c *Capture) save(ctx context.Context, entry model.DraftEntry) error {
	entry.SavedAt = c.now()
	if err := c.store.Set(ctx, storage.KeyDraftEntry, entry); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}
