package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

// StartFunc brings a component up. It must not block.
type StartFunc func(ctx context.Context) error

// Component is a named unit with optional start and stop callbacks.
type Component struct {
	Name  string
	Start StartFunc
	Stop  ShutdownFunc
}

// Manager starts components in registration order and stops the started ones
// in reverse order.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu         sync.Mutex
	components []Component
	started    int
	stopped    bool
}

// New creates a lifecycle manager with the desired shutdown timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Add registers a component.
func (m *Manager) Add(c Component) {
	if c.Start == nil && c.Stop == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, c)
}

// Register adds a stop-only component, e.g. a connection opened during boot.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	m.Add(Component{Name: name, Stop: fn})
}

// Start runs every pending start callback. On failure the components already
// started are stopped before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	var failed error
	for m.started < len(m.components) {
		c := m.components[m.started]
		if c.Start != nil {
			if err := c.Start(ctx); err != nil {
				failed = fmt.Errorf("start %s: %w", c.Name, err)
				break
			}
			m.logger.Info("component started", zap.String("component", c.Name))
		}
		m.started++
	}
	m.mu.Unlock()

	if failed != nil {
		if err := m.Shutdown(context.Background()); err != nil {
			failed = errors.Join(failed, err)
		}
	}
	return failed
}

// Shutdown stops every component, respecting the configured timeout. Calling
// it twice is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true

	var result error
	for i := len(m.components) - 1; i >= 0; i-- {
		c := m.components[i]
		if c.Stop == nil || (c.Start != nil && i >= m.started) {
			continue
		}
		if err := c.Stop(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", c.Name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", c.Name))
	}
	return result
}

// Listen returns a context cancelled on SIGINT or SIGTERM.
func (m *Manager) Listen(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, os.Interrupt)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			m.logger.Info("shutdown signal received")
		}
	}()
	return ctx, stop
}
