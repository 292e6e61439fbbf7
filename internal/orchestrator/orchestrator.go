// Package orchestrator wires the offline-sync components together across
// the process lifecycle: startup hydration, connectivity transitions,
// foreground/background events, the periodic refresh timer, and teardown.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/connectivity"
	"github.com/fieldexpense/claimsync/internal/draft"
	"github.com/fieldexpense/claimsync/internal/pending"
	"github.com/fieldexpense/claimsync/internal/refdata"
	"github.com/fieldexpense/claimsync/internal/syncer"
)

// Config holds orchestrator timing configuration.
type Config struct {
	RefreshInterval time.Duration
}

// Orchestrator drives the process-wide sync lifecycle.
type Orchestrator struct {
	cfg        Config
	monitor    *connectivity.Monitor
	prober     connectivity.Prober
	categories *refdata.CategoryCache
	clients    *refdata.ClientCache
	queue      *pending.Queue
	engine     *syncer.Engine
	drafts     *draft.Capture
	logger     *zap.Logger

	mu        sync.Mutex
	isRunning bool
	wasOnline bool
	unsub     func()
	ticker    *time.Ticker
	stop      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates an orchestrator over already-constructed components.
func New(
	cfg Config,
	monitor *connectivity.Monitor,
	prober connectivity.Prober,
	categories *refdata.CategoryCache,
	clients *refdata.ClientCache,
	queue *pending.Queue,
	engine *syncer.Engine,
	drafts *draft.Capture,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Minute
	}
	return &Orchestrator{
		cfg:        cfg,
		monitor:    monitor,
		prober:     prober,
		categories: categories,
		clients:    clients,
		queue:      queue,
		engine:     engine,
		drafts:     drafts,
		logger:     logger,
	}
}

// Start hydrates state and begins event-driven syncing: initial
// connectivity probe, push subscription, cache and queue hydration, and —
// when online — one reference-data refresh plus one sync pass. A periodic
// timer re-runs both while online.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.isRunning {
		o.mu.Unlock()
		o.logger.Warn("Orchestrator already running")
		return nil
	}
	o.isRunning = true
	o.mu.Unlock()

	o.monitor.Init(ctx, o.prober)

	o.categories.Hydrate(ctx)
	o.clients.Hydrate(ctx)
	if err := o.queue.Hydrate(ctx); err != nil {
		o.logger.Error("Failed to hydrate pending queue", zap.Error(err))
	}

	o.mu.Lock()
	o.wasOnline = o.monitor.IsOnline()
	o.unsub = o.monitor.Subscribe(o.onConnectivityChange)
	o.stop = make(chan struct{})
	o.done = make(chan struct{})
	o.mu.Unlock()

	go o.refreshLoop()

	if o.monitor.IsOnline() {
		o.runRefreshAndSync(ctx, "startup")
	}

	o.logger.Info("Sync orchestrator started",
		zap.Duration("refresh_interval", o.cfg.RefreshInterval),
		zap.Bool("online", o.monitor.IsOnline()),
		zap.Int("pending", o.queue.Count()))
	return nil
}

// Stop cancels the timer, unsubscribes from connectivity events, and
// flushes any pending draft write. No timers or listeners survive Stop.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.isRunning {
		o.mu.Unlock()
		return
	}
	o.isRunning = false
	unsub := o.unsub
	o.unsub = nil
	stop := o.stop
	done := o.done
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if stop != nil {
		close(stop)
		<-done
	}
	o.wg.Wait()

	o.drafts.Flush()
	o.logger.Info("Sync orchestrator stopped")
}

// OnForeground handles the app becoming active: while online it refreshes
// reference data and drains the queue.
func (o *Orchestrator) OnForeground(ctx context.Context) {
	if !o.monitor.IsOnline() {
		o.logger.Debug("Foregrounded while offline, nothing to sync")
		return
	}
	o.runRefreshAndSync(ctx, "foreground")
}

// OnBackground handles the app leaving the foreground: any pending draft
// edit is flushed so the debounce window cannot swallow it.
func (o *Orchestrator) OnBackground() {
	o.drafts.Flush()
}

// onConnectivityChange reacts to pushed network transitions. Only the
// offline-to-online edge triggers work.
func (o *Orchestrator) onConnectivityChange(state connectivity.State) {
	o.mu.Lock()
	was := o.wasOnline
	o.wasOnline = state.Online
	running := o.isRunning
	o.mu.Unlock()

	if !running || !state.Online || was {
		return
	}

	o.logger.Info("Connectivity restored, draining pending queue")
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runRefreshAndSync(context.Background(), "connectivity")
	}()
}

// refreshLoop runs the periodic reference-data refresh while online.
func (o *Orchestrator) refreshLoop() {
	defer close(o.done)
	ticker := time.NewTicker(o.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if o.monitor.IsOnline() {
				o.runRefreshAndSync(context.Background(), "interval")
			}
		case <-o.stop:
			return
		}
	}
}

// runRefreshAndSync refreshes both reference caches and runs one sync
// pass. All triggers funnel here; mutual exclusion of overlapping passes
// is the engine's responsibility.
func (o *Orchestrator) runRefreshAndSync(ctx context.Context, trigger string) {
	o.logger.Debug("Running refresh and sync", zap.String("trigger", trigger))

	if _, err := o.categories.Fetch(ctx, false); err != nil {
		o.logger.Warn("Category refresh failed", zap.String("trigger", trigger), zap.Error(err))
	}
	if _, err := o.clients.Fetch(ctx, false); err != nil {
		o.logger.Warn("Client refresh failed", zap.String("trigger", trigger), zap.Error(err))
	}

	o.engine.SyncPass(ctx)
}

// SyncNow triggers an explicit user-requested sync pass.
func (o *Orchestrator) SyncNow(ctx context.Context) {
	o.engine.SyncPass(ctx)
}
