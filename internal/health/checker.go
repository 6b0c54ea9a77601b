// Package health tracks the reachability of iamd's backing services.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status of a monitored dependency.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe reports whether a dependency is reachable.
type Probe interface {
	Ping(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

// Ping implements Probe.
func (f ProbeFunc) Ping(ctx context.Context) error { return f(ctx) }

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, success bool)

type target struct {
	probe     Probe
	failCount int
	status    string
	lastError string
	checkedAt time.Time
}

// Checker probes registered dependencies periodically. A dependency turns
// degraded after FailThreshold consecutive failures and healthy again on
// the first success.
type Checker struct {
	mu        sync.Mutex
	targets   map[string]*target
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		targets: make(map[string]*target),
		cfg:     cfg,
		logger:  logger,
	}
}

// Add registers a dependency under name. Dependencies start healthy.
func (h *Checker) Add(name string, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.targets[name] = &target{probe: p, status: StatusHealthy}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the check loop until ctx is done.
func (h *Checker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(h.cfg.CheckInterval)
		defer ticker.Stop()
		h.CheckAll(ctx)
		for {
			select {
			case <-ticker.C:
				h.CheckAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// CheckAll probes every dependency concurrently and waits for the results.
func (h *Checker) CheckAll(ctx context.Context) {
	h.mu.Lock()
	names := make([]string, 0, len(h.targets))
	probes := make([]Probe, 0, len(h.targets))
	for name, t := range h.targets {
		names = append(names, name)
		probes = append(probes, t.probe)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(name string, p Probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			err := p.Ping(pctx)
			cancel()
			h.record(name, err)
		}(names[i], probes[i])
	}
	wg.Wait()
}

func (h *Checker) record(name string, err error) {
	if h.onMetrics != nil {
		h.onMetrics(name, err == nil)
	}

	h.mu.Lock()
	t, ok := h.targets[name]
	if !ok {
		h.mu.Unlock()
		return
	}
	t.checkedAt = time.Now().UTC()
	prev := t.status
	if err == nil {
		t.failCount = 0
		t.lastError = ""
		t.status = StatusHealthy
	} else {
		t.failCount++
		t.lastError = err.Error()
		if t.failCount >= h.cfg.FailThreshold {
			t.status = StatusDegraded
		}
	}
	status, count := t.status, t.failCount
	h.mu.Unlock()

	switch {
	case prev == StatusDegraded && status == StatusHealthy:
		h.logger.Info("health: recovered", zap.String("dependency", name))
	case prev == StatusHealthy && status == StatusDegraded:
		h.logger.Warn("health: degraded",
			zap.String("dependency", name),
			zap.Int("fail_count", count),
			zap.Error(err),
		)
	}
}

// DependencyStatus is the externally visible state of one dependency.
type DependencyStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

// Ready reports whether every dependency is healthy.
func (h *Checker) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.targets {
		if t.status != StatusHealthy {
			return false
		}
	}
	return true
}

// Snapshot returns the state of every dependency, sorted by name.
func (h *Checker) Snapshot() []DependencyStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DependencyStatus, 0, len(h.targets))
	for name, t := range h.targets {
		out = append(out, DependencyStatus{
			Name:      name,
			Status:    t.status,
			Error:     t.lastError,
			CheckedAt: t.checkedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
