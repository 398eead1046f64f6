// Package connwatch keeps a running view of whether the agent's external
// dependencies (the model runtime, the MQTT broker) are reachable. The
// /health endpoint reports it; chat requests are never gated on it.
package connwatch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ProbeFunc checks whether a service is reachable. Return nil if healthy.
type ProbeFunc func(ctx context.Context) error

// Schedule controls probing. While a service is down the delay doubles
// from RetryMin up to Interval; once healthy it is probed every Interval.
type Schedule struct {
	RetryMin     time.Duration
	Interval     time.Duration
	ProbeTimeout time.Duration
}

// DefaultSchedule probes every minute, retrying from 2s when down.
func DefaultSchedule() Schedule {
	return Schedule{
		RetryMin:     2 * time.Second,
		Interval:     60 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

func (s Schedule) withDefaults() Schedule {
	d := DefaultSchedule()
	if s.RetryMin <= 0 {
		s.RetryMin = d.RetryMin
	}
	if s.Interval <= 0 {
		s.Interval = d.Interval
	}
	if s.RetryMin > s.Interval {
		s.RetryMin = s.Interval
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = d.ProbeTimeout
	}
	return s
}

// ServiceStatus is the health of one watched service.
type ServiceStatus struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

type watcher struct {
	name     string
	probe    ProbeFunc
	schedule Schedule
	logger   *slog.Logger

	mu     sync.Mutex
	status ServiceStatus
}

func (w *watcher) check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, w.schedule.ProbeTimeout)
	err := w.probe(pctx)
	cancel()

	w.mu.Lock()
	was := w.status.Ready
	w.status.Ready = err == nil
	w.status.LastCheck = time.Now()
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
	w.mu.Unlock()

	switch {
	case err == nil && !was:
		w.logger.Info("service connected", "service", w.name)
	case err != nil && was:
		w.logger.Warn("service became unreachable", "service", w.name, "error", err)
	case err != nil:
		w.logger.Debug("service still unreachable", "service", w.name, "error", err)
	}
	return err == nil
}

func (w *watcher) run(ctx context.Context) {
	var delay time.Duration
	failing := false
	for {
		switch ok := w.check(ctx); {
		case ok:
			delay, failing = w.schedule.Interval, false
		case !failing:
			delay, failing = w.schedule.RetryMin, true
		default:
			delay = min(delay*2, w.schedule.Interval)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (w *watcher) snapshot() ServiceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Manager runs one watcher per service.
type Manager struct {
	logger *slog.Logger
	wg     sync.WaitGroup

	mu       sync.RWMutex
	watchers map[string]*watcher
}

// NewManager creates a connection watch manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, watchers: make(map[string]*watcher)}
}

// Watch starts probing a service in the background until ctx is done.
// The service reports not ready until its first probe succeeds.
func (m *Manager) Watch(ctx context.Context, name string, probe ProbeFunc, s Schedule) {
	w := &watcher{
		name:     name,
		probe:    probe,
		schedule: s.withDefaults(),
		logger:   m.logger,
		status:   ServiceStatus{Name: name},
	}

	m.mu.Lock()
	m.watchers[name] = w
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.run(ctx)
	}()
}

// Ready reports whether name was reachable at its last probe. Unknown
// services are not ready.
func (m *Manager) Ready(name string) bool {
	m.mu.RLock()
	w, ok := m.watchers[name]
	m.mu.RUnlock()
	return ok && w.snapshot().Ready
}

// Status returns every watched service sorted by name.
func (m *Manager) Status() []ServiceStatus {
	m.mu.RLock()
	out := make([]ServiceStatus, 0, len(m.watchers))
	for _, w := range m.watchers {
		out = append(out, w.snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Wait blocks until every watcher has stopped.
func (m *Manager) Wait() {
	m.wg.Wait()
}
