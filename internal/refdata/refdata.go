// Package refdata serves the small server-side lookup tables (categories,
// clients) that populate form pickers, with a 30-minute freshness window,
// online refresh and offline fallback to the last-known-good copy.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/storage"
)

// DefaultTTL is how long a cached lookup table is considered fresh.
const DefaultTTL = 30 * time.Minute

// ErrNoData means there is no network and no cached copy to fall back to.
// It is distinct from a generic fetch error so the UI can render an
// explicit "no data available offline" state.
var ErrNoData = errors.New("refdata: no cached data available offline")

// ConnectivitySource reports the current online flag.
type ConnectivitySource interface {
	IsOnline() bool
}

// lastSyncAt reads a last-sync timestamp key; the zero time means never.
func lastSyncAt(ctx context.Context, store storage.Store, key string) time.Time {
	var stamp time.Time
	if ok, err := store.Get(ctx, key, &stamp); err != nil || !ok {
		return time.Time{}
	}
	return stamp
}

// persistWithStamp writes a cached list and then its last-sync timestamp.
// These are two sequential writes to independent keys; a crash between
// them leaves a stale-but-valid timestamp, which only affects freshness.
func persistWithStamp(ctx context.Context, store storage.Store, logger *zap.Logger, dataKey string, data any, stampKey string, now time.Time) {
	if err := store.Set(ctx, dataKey, data); err != nil {
		logger.Warn("Failed to persist cache", zap.String("key", dataKey), zap.Error(err))
		return
	}
	if err := store.Set(ctx, stampKey, now); err != nil {
		logger.Warn("Failed to persist sync timestamp", zap.String("key", stampKey), zap.Error(err))
	}
}

func fresh(lastSync time.Time, ttl time.Duration, now time.Time) bool {
	return !lastSync.IsZero() && now.Sub(lastSync) < ttl
}

func wrapFetchErr(what string, err error) error {
	return fmt.Errorf("failed to fetch %s: %w", what, err)
}
