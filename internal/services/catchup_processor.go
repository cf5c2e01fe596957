package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/internal/infrastructure/buffer"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Replayer re-delivers an account stream to lagging projections.
type Replayer interface {
	CatchUp(ctx context.Context, aggregateID string, projections ...string) (int, error)
}

// FailureRecorder counts catch-ups that were given up on.
type FailureRecorder interface {
	RecordProjectionFailure(projection string)
}

// ProcessorConfig controls how frequently the catch-up queue is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// CatchUpProcessor replays projections that failed during command handling.
type CatchUpProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	replayer Replayer
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
	failures FailureRecorder
}

func NewCatchUpProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	replayer Replayer,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *CatchUpProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cp := &CatchUpProcessor{
		store:    store,
		monitor:  monitor,
		replayer: replayer,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = cp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := cp.Drain(ctx); err != nil {
			cp.logger.Error("catch-up drain failed", zap.Error(err))
		}
	})
	if cfg.Retention > 0 {
		_, _ = cp.cron.AddFunc("@hourly", func() {
			removed, err := cp.store.Cleanup(time.Now().Add(-cfg.Retention))
			if err != nil {
				cp.logger.Error("catch-up cleanup failed", zap.Error(err))
				return
			}
			if removed > 0 {
				cp.logger.Warn("expired catch-up items removed", zap.Int("count", removed))
			}
		})
	}

	return cp
}

// SetFailureRecorder reports dropped catch-ups to r.
func (cp *CatchUpProcessor) SetFailureRecorder(r FailureRecorder) {
	cp.failures = r
}

// Start launches the cron scheduler.
func (cp *CatchUpProcessor) Start() {
	if cp == nil || cp.cron == nil {
		return
	}
	cp.cron.Start()
	cp.logger.Info("catch-up processor started", zap.Duration("interval", cp.cfg.Interval))
}

// Stop waits for a running drain to finish or ctx to expire.
func (cp *CatchUpProcessor) Stop(ctx context.Context) error {
	if cp == nil || cp.cron == nil {
		return nil
	}
	stopCtx := cp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	cp.logger.Info("catch-up processor stopped")
	return nil
}

// Schedule persists a catch-up request for the account.
func (cp *CatchUpProcessor) Schedule(ctx context.Context, accountID string, projections []string) error {
	if cp == nil || cp.store == nil {
		return errors.New("catch-up processor not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	item, err := cp.store.Schedule(accountID, projections)
	if err != nil {
		return err
	}
	cp.logger.Debug("catch-up scheduled",
		zap.String("account_id", accountID),
		zap.Strings("projections", item.Projections),
		zap.Int64("version", item.Version))
	return nil
}

// Drain processes one batch of pending catch-ups and returns how many
// completed.
func (cp *CatchUpProcessor) Drain(ctx context.Context) (int, error) {
	if cp == nil || cp.store == nil {
		return 0, nil
	}
	if cp.monitor != nil && !cp.monitor.IsOnline() {
		cp.logger.Debug("skipping catch-up drain (offline)")
		return 0, nil
	}

	items, err := cp.store.GetBatch(cp.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var done int
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		log := cp.logger.With(
			zap.String("account_id", item.AccountID),
			zap.Strings("projections", item.Projections),
			zap.Int("retries", item.Retries))

		_, err := cp.replayer.CatchUp(ctx, item.AccountID, item.Projections...)
		if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
			log.Error("projection catch-up failed", zap.Error(err))
			dropped, ferr := cp.store.Fail(item, err, cp.cfg.MaxRetries)
			if ferr != nil {
				log.Error("failed to record catch-up attempt", zap.Error(ferr))
			}
			if dropped {
				log.Error("catch-up abandoned, read side stays stale until replayed", zap.Error(err))
				cp.recordDropped(item.Projections)
			}
			continue
		}

		if err := cp.store.Complete(item); err != nil {
			if errors.Is(err, buffer.ErrNotPending) {
				log.Debug("catch-up item changed during replay, keeping it")
				continue
			}
			log.Warn("failed to complete catch-up item", zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

func (cp *CatchUpProcessor) recordDropped(projections []string) {
	if cp.failures == nil {
		return
	}
	if len(projections) == 0 {
		projections = []string{"all"}
	}
	for _, p := range projections {
		cp.failures.RecordProjectionFailure(p)
	}
}

// Size returns the number of pending catch-ups.
func (cp *CatchUpProcessor) Size() int {
	if cp == nil || cp.store == nil {
		return 0
	}
	size, err := cp.store.Size()
	if err != nil {
		return 0
	}
	return size
}
