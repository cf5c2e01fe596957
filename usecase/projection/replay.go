package projection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
	"github.com/fastygo/ledger/usecase"
)

// Replayer re-delivers committed events to projections that fell behind.
type Replayer struct {
	events      repository.EventStore
	readModel   repository.AccountReadModel
	dispatcher  *usecase.Dispatcher
	logger      *zap.Logger
	parallelism int
}

func NewReplayer(events repository.EventStore, readModel repository.AccountReadModel, dispatcher *usecase.Dispatcher, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{
		events:      events,
		readModel:   readModel,
		dispatcher:  dispatcher,
		logger:      logger,
		parallelism: 4,
	}
}

// CatchUp re-dispatches the aggregate's whole stream to the named projections
// (all when none are named). Projections skip what they already applied.
func (r *Replayer) CatchUp(ctx context.Context, aggregateID string, projections ...string) (int, error) {
	stream, err := r.events.Load(ctx, aggregateID)
	if err != nil {
		return 0, domain.StoreError("load events", err)
	}
	if len(stream) == 0 {
		return 0, domain.ErrAccountNotFound
	}
	if err := r.dispatcher.DispatchTo(ctx, aggregateID, stream, projections...); err != nil {
		return 0, domain.WrapError(domain.ErrCodeProjectionFailure, "catch-up replay incomplete", err)
	}
	r.logger.Info("projection catch-up completed",
		zap.String("account_id", aggregateID),
		zap.Strings("projections", projections),
		zap.Int("events", len(stream)))
	return len(stream), nil
}

// Rebuild drops the aggregate's read-model rows and replays from empty state.
func (r *Replayer) Rebuild(ctx context.Context, aggregateID string) (int, error) {
	if err := r.readModel.Reset(ctx, aggregateID); err != nil {
		return 0, domain.StoreError("reset read model", err)
	}
	return r.CatchUp(ctx, aggregateID, ReadModelName)
}

// CatchUpReport summarizes a CatchUpAll run.
type CatchUpReport struct {
	Accounts int
	CaughtUp int
	Failed   []string
}

// CatchUpAll walks every stream in the log with bounded parallelism. A failing
// account does not stop the others; every failure is returned joined.
func (r *Replayer) CatchUpAll(ctx context.Context) (CatchUpReport, error) {
	ids, err := r.events.AggregateIDs(ctx)
	if err != nil {
		return CatchUpReport{}, domain.StoreError("list aggregates", err)
	}

	var (
		mu       sync.Mutex
		failures []error
		report   = CatchUpReport{Accounts: len(ids)}
		g        errgroup.Group
	)
	g.SetLimit(r.parallelism)
	for _, id := range ids {
		g.Go(func() error {
			_, err := r.CatchUp(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, id)
				failures = append(failures, fmt.Errorf("catch up %s: %w", id, err))
				r.logger.Error("account catch-up failed", zap.String("account_id", id), zap.Error(err))
				return nil
			}
			report.CaughtUp++
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(report.Failed)
	return report, errors.Join(failures...)
}
