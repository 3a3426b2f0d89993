package connectivity

import (
	"context"
	"sync"
	"time"

	"jimpitan/internal/infra"
)

// Prober checks whether target answers at all.
type Prober interface {
	Ping(ctx context.Context, target string) error
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Prober   Prober
	Target   string
	Interval time.Duration
	Timeout  time.Duration
	Initial  bool
	Logger   *infra.Logger
}

// Monitor tracks online/offline state from active probes and from reports made by the UI.
type Monitor struct {
	prober   Prober
	target   string
	interval time.Duration
	timeout  time.Duration
	logger   *infra.Logger

	mu      sync.Mutex
	online  bool
	changes chan bool
}

// NewMonitor builds a monitor starting in opts.Initial.
func NewMonitor(opts MonitorOptions) *Monitor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		prober:   opts.Prober,
		target:   opts.Target,
		interval: opts.Interval,
		timeout:  timeout,
		logger:   infra.LoggerOrDiscard(opts.Logger),
		online:   opts.Initial,
		changes:  make(chan bool, 1),
	}
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a new state and reports whether it was a transition.
// Only the latest pending transition is kept for Changes readers.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return false
	}
	m.online = online
	select {
	case <-m.changes:
	default:
	}
	m.changes <- online
	m.logger.Info().Bool("online", online).Msg("connectivity: state changed")
	return true
}

// Changes delivers state transitions.
func (m *Monitor) Changes() <-chan bool {
	return m.changes
}

// Probe pings the target once and records the result. Any HTTP response counts as online.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.prober.Ping(ctx, m.target)
	if err != nil {
		m.logger.Debug().Err(err).Str("target", m.target).Msg("connectivity: probe failed")
	}
	online := err == nil
	m.Set(online)
	return online
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.prober == nil || m.interval <= 0 {
		<-ctx.Done()
		return
	}
	m.Probe(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
