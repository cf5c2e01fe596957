package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
)

// Projection consumes committed events. Delivery is at-least-once, so
// implementations must tolerate an event they have already applied.
type Projection interface {
	Name() string
	Project(ctx context.Context, env domain.Envelope) error
}

// StreamLoader reads an aggregate's committed events.
type StreamLoader interface {
	Load(ctx context.Context, aggregateID string) ([]domain.Envelope, error)
}

// ProjectionFailure records the first event a projection could not apply.
type ProjectionFailure struct {
	Projection  string
	AggregateID string
	Sequence    int64
	Err         error
}

// ProjectionError is returned by Dispatch when one or more projections did not
// apply every event.
type ProjectionError struct {
	Failures []ProjectionFailure
}

func (e *ProjectionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s at %s#%d: %v", f.Projection, f.AggregateID, f.Sequence, f.Err))
	}
	return "projection failed: " + strings.Join(parts, "; ")
}

func (e *ProjectionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Projections lists the names of the failed projections.
func (e *ProjectionError) Projections() []string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Projection)
	}
	return names
}

const dispatchStripes = 64

// Dispatcher delivers committed events to the registered projections in
// commit order. Deliveries for the same aggregate are serialized; different
// aggregates proceed in parallel.
type Dispatcher struct {
	mu          sync.RWMutex
	projections []Projection
	stripes     [dispatchStripes]sync.Mutex
	loader      StreamLoader
	logger      *zap.Logger
}

// NewDispatcher builds a dispatcher. When loader is set, a projection that
// reports a sequence gap is fed the missing events from the log.
func NewDispatcher(loader StreamLoader, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{loader: loader, logger: logger}
}

func (d *Dispatcher) Register(p Projection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.projections {
		if existing.Name() == p.Name() {
			d.projections[i] = p
			return
		}
	}
	d.projections = append(d.projections, p)
}

// Names returns the registered projection names in registration order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.projections))
	for _, p := range d.projections {
		names = append(names, p.Name())
	}
	return names
}

// Dispatch invokes every registered projection once per event.
func (d *Dispatcher) Dispatch(ctx context.Context, aggregateID string, events []domain.Envelope) error {
	return d.DispatchTo(ctx, aggregateID, events)
}

// DispatchTo delivers events to the named projections only, or to all of them
// when no name is given. A projection stops at its first failing event so it
// never observes a later event before an earlier one.
func (d *Dispatcher) DispatchTo(ctx context.Context, aggregateID string, events []domain.Envelope, names ...string) error {
	if len(events) == 0 {
		return nil
	}
	targets, err := d.resolve(names)
	if err != nil {
		return err
	}

	lock := d.stripe(aggregateID)
	lock.Lock()
	defer lock.Unlock()

	var failures []ProjectionFailure
	for _, p := range targets {
		for _, env := range events {
			err := p.Project(ctx, env)
			if errors.Is(err, domain.ErrProjectionGap) && d.loader != nil {
				err = d.fillGap(ctx, p, env)
			}
			if err != nil {
				d.logger.Error("projection failed",
					zap.String("projection", p.Name()),
					zap.String("account_id", aggregateID),
					zap.Int64("sequence", env.Sequence),
					zap.Error(err))
				failures = append(failures, ProjectionFailure{
					Projection:  p.Name(),
					AggregateID: aggregateID,
					Sequence:    env.Sequence,
					Err:         err,
				})
				break
			}
		}
	}
	if len(failures) > 0 {
		return &ProjectionError{Failures: failures}
	}
	return nil
}

// fillGap replays the stream up to and including env through p.
func (d *Dispatcher) fillGap(ctx context.Context, p Projection, env domain.Envelope) error {
	stream, err := d.loader.Load(ctx, env.AggregateID)
	if err != nil {
		return err
	}
	d.logger.Debug("filling projection gap",
		zap.String("projection", p.Name()),
		zap.String("account_id", env.AggregateID),
		zap.Int64("sequence", env.Sequence))
	for _, missing := range stream {
		if missing.Sequence > env.Sequence {
			break
		}
		if err := p.Project(ctx, missing); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) resolve(names []string) ([]Projection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(names) == 0 {
		out := make([]Projection, len(d.projections))
		copy(out, d.projections)
		return out, nil
	}
	out := make([]Projection, 0, len(names))
	for _, name := range names {
		found := false
		for _, p := range d.projections {
			if p.Name() == name {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("projection %s not registered", name)
		}
	}
	return out, nil
}

func (d *Dispatcher) stripe(aggregateID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(aggregateID))
	return &d.stripes[h.Sum32()%dispatchStripes]
}
