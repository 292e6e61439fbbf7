package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPProber determines reachability by issuing a lightweight request
// against the backend health endpoint. Any HTTP response, including an
// error status, proves the network path is up; only transport failures
// count as offline.
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber creates a prober against the given health URL.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return State{Online: false, Kind: KindNone}, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return State{Online: false, Kind: KindNone}, nil
	}
	_ = resp.Body.Close()

	return State{Online: true, Kind: KindUnknown}, nil
}

// Poller re-probes on a fixed interval and pushes results into the
// monitor. It stands in for a platform push subscription on hosts that
// only expose polling.
type Poller struct {
	monitor  *Monitor
	prober   Prober
	interval time.Duration
	logger   *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewPoller creates a poller feeding the given monitor.
func NewPoller(monitor *Monitor, prober Prober, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		monitor:  monitor,
		prober:   prober,
		interval: interval,
		logger:   logger,
	}
}

// Start begins polling in a background goroutine.
func (p *Poller) Start(ctx context.Context) {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				state, err := p.prober.Probe(ctx)
				if err != nil {
					p.logger.Debug("Connectivity probe failed", zap.Error(err))
					state = State{Online: false, Kind: KindNone}
				}
				p.monitor.SetState(state)
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	p.logger.Info("Connectivity poller started", zap.Duration("interval", p.interval))
}

// Stop terminates polling and waits for the loop to exit.
func (p *Poller) Stop() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop = nil
	p.logger.Info("Connectivity poller stopped")
}
