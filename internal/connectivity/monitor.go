// Package connectivity tracks online/offline state against the sales
// backend and notifies subscribers on genuine transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

// State is the process-wide reachability state.
type State int

const (
	// Offline means the last probe could not reach the backend.
	Offline State = iota
	// Online means the last probe reached the backend.
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Prober answers whether the backend is reachable right now.
type Prober interface {
	Check(ctx context.Context) bool
}

// HTTPProber probes reachability with a bounded GET against the backend
// health endpoint. Any HTTP response, success or not, counts as reachable;
// only transport-level failures count as offline.
type HTTPProber struct {
	client *resty.Client
	url    string
}

// NewHTTPProber creates a prober for the given absolute health URL.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	client := resty.New().SetTimeout(timeout)
	return &HTTPProber{client: client, url: url}
}

// Check reports whether the health endpoint answered at all.
func (p *HTTPProber) Check(ctx context.Context) bool {
	_, err := p.client.R().SetContext(ctx).Get(p.url)
	return err == nil
}

// Monitor is the single source of truth for connectivity state.
//
// Subscribers are invoked exactly once per genuine transition: repeated
// probe results in the same state never re-fire callbacks. Callbacks run
// synchronously on the goroutine that observed the transition and should
// return promptly.
type Monitor struct {
	mu        sync.Mutex
	state     State
	nextSub   int
	onOnline  map[int]func()
	onOffline map[int]func()

	prober   Prober
	interval time.Duration
	logger   *zap.Logger
}

// NewMonitor creates a Monitor starting in the Offline state; the first
// probe (or SetState call) establishes the real state.
func NewMonitor(prober Prober, interval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		state:     Offline,
		onOnline:  make(map[int]func()),
		onOffline: make(map[int]func()),
		prober:    prober,
		interval:  interval,
		logger:    logger,
	}
}

// Current returns the last observed state.
func (m *Monitor) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnOnline registers a callback fired on each offline-to-online transition.
// The returned function unsubscribes; calling it more than once is safe.
func (m *Monitor) OnOnline(fn func()) func() {
	return m.subscribe(m.onOnline, fn)
}

// OnOffline registers a callback fired on each online-to-offline transition.
// The returned function unsubscribes; calling it more than once is safe.
func (m *Monitor) OnOffline(fn func()) func() {
	return m.subscribe(m.onOffline, fn)
}

func (m *Monitor) subscribe(set map[int]func(), fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	set[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(set, id)
	}
}

// SetState applies an observed reachability result. Only a genuine change
// fires callbacks. The sync engine also calls this to force Offline after a
// connectivity-class submission failure, so the state flips without waiting
// for the next probe tick.
func (m *Monitor) SetState(s State) {
	m.mu.Lock()
	if s == m.state {
		m.mu.Unlock()
		return
	}
	m.state = s

	var fns []func()
	set := m.onOnline
	if s == Offline {
		set = m.onOffline
	}
	for _, fn := range set {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", zap.Stringer("state", s))
	for _, fn := range fns {
		fn()
	}
}

// Start probes immediately and then at the configured interval until ctx is
// cancelled. Safe to run on its own goroutine.
func (m *Monitor) Start(ctx context.Context) {
	m.SetState(m.probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetState(m.probe(ctx))
		}
	}
}

func (m *Monitor) probe(ctx context.Context) State {
	if m.prober != nil && m.prober.Check(ctx) {
		return Online
	}
	return Offline
}
