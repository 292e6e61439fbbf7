// Package connectivity tracks the current online/offline state from the
// host network signal and fans change events out to subscribers.
package connectivity

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Kind identifies the transport the device is connected through.
type Kind string

const (
	KindUnknown  Kind = "unknown"
	KindWiFi     Kind = "wifi"
	KindCellular Kind = "cellular"
	KindNone     Kind = "none"
)

// State is a point-in-time connectivity snapshot.
type State struct {
	Online bool `json:"online"`
	Kind   Kind `json:"kind"`
}

// Prober performs a one-shot connectivity check. Used once at startup
// before the push subscription delivers its first event.
type Prober interface {
	Probe(ctx context.Context) (State, error)
}

// Listener receives connectivity change events. Transitions are forwarded
// as-is with no debouncing; flapping networks produce flapping events.
type Listener func(State)

// Monitor holds the last known connectivity state and a listener set.
// A newly registered listener is immediately invoked with the current
// state (if known) so subscribers initialized after the last transition
// still learn it.
type Monitor struct {
	logger *zap.Logger

	mu        sync.Mutex
	known     bool
	state     State
	listeners map[int]Listener
	nextID    int
}

// NewMonitor creates a monitor with no known state.
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// Init performs the initial probe and records the result. A probe failure
// is treated as offline rather than an error; the push subscription will
// correct it.
func (m *Monitor) Init(ctx context.Context, prober Prober) {
	state, err := prober.Probe(ctx)
	if err != nil {
		m.logger.Warn("Initial connectivity probe failed, assuming offline", zap.Error(err))
		state = State{Online: false, Kind: KindNone}
	}
	m.SetState(state)
}

// SetState records a new connectivity state pushed from the host network
// API and notifies all listeners.
func (m *Monitor) SetState(state State) {
	m.mu.Lock()
	prev := m.state
	prevKnown := m.known
	m.state = state
	m.known = true
	targets := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		targets = append(targets, l)
	}
	m.mu.Unlock()

	if !prevKnown || prev.Online != state.Online {
		m.logger.Info("Connectivity changed",
			zap.Bool("online", state.Online),
			zap.String("kind", string(state.Kind)))
	}

	for _, l := range targets {
		m.notify(l, state)
	}
}

// IsOnline reports the last known online flag; false when no state is known.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.known && m.state.Online
}

// CurrentState returns the last known state and whether any state is known.
func (m *Monitor) CurrentState() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.known
}

// Subscribe registers a listener and returns its unsubscribe function.
// If a state is already known the listener is invoked immediately.
func (m *Monitor) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	known := m.known
	state := m.state
	m.mu.Unlock()

	if known {
		m.notify(l, state)
	}

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// notify invokes a single listener, isolating panics so one failing
// listener cannot break delivery to the others.
func (m *Monitor) notify(l Listener, state State) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("Connectivity listener panicked", zap.Any("panic", p))
		}
	}()
	l(state)
}
