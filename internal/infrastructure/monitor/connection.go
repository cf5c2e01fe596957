package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PingFunc probes one dependency.
type PingFunc func(ctx context.Context) error

// Check is a dependency probed on every refresh. Only required checks affect
// Healthy.
type Check struct {
	Name     string
	Required bool
	Timeout  time.Duration
	Ping     PingFunc
}

// QueueSizer reports the number of pending catch-ups.
type QueueSizer interface {
	Size() (int, error)
}

type Monitor struct {
	checks []Check
	queue  QueueSizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(checks []Check, queue QueueSizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		checks:   checks,
		queue:    queue,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Healthy
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Components = make(map[string]bool, len(m.status.Components))
	for k, v := range m.status.Components {
		out.Components[k] = v
	}
	return out
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every dependency once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	status := Status{
		Healthy:    true,
		Components: make(map[string]bool, len(m.checks)+1),
		LastCheck:  time.Now(),
	}

	for _, check := range m.checks {
		ok := m.probe(ctx, check)
		status.Components[check.Name] = ok
		if !ok && check.Required {
			status.Healthy = false
		}
	}

	if m.queue != nil {
		size, err := m.queue.Size()
		if err != nil {
			m.logger.Warn("catch-up queue size check failed", zap.Error(err))
		}
		status.Components["catchup_queue"] = err == nil
		status.PendingCatchUps = size
	}

	m.mu.Lock()
	prev := m.status.Healthy
	m.status = status
	m.mu.Unlock()

	if prev != status.Healthy && !status.LastCheck.IsZero() {
		m.logger.Info("dependency health changed", zap.Bool("healthy", status.Healthy), zap.Any("components", status.Components))
	}
	return status
}

func (m *Monitor) probe(ctx context.Context, check Check) bool {
	if check.Ping == nil {
		return false
	}
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := check.Ping(ctx); err != nil {
		m.logger.Debug("dependency check failed", zap.String("component", check.Name), zap.Error(err))
		return false
	}
	return true
}
