package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/pkg/logger"
	"github.com/fastygo/ledger/repository"
	"github.com/fastygo/ledger/usecase"
)

// ProjectionDispatcher hands committed events to the read side.
type ProjectionDispatcher interface {
	Dispatch(ctx context.Context, aggregateID string, events []domain.Envelope) error
}

// Metrics receives command outcomes. internal/metrics.Collector implements it.
type Metrics interface {
	RecordCommand(command, outcome string, duration time.Duration)
	RecordRetry(command string)
	RecordProjectionFailure(projection string)
}

type nopMetrics struct{}

func (nopMetrics) RecordCommand(string, string, time.Duration) {}
func (nopMetrics) RecordRetry(string)                          {}
func (nopMetrics) RecordProjectionFailure(string)              {}

// ProcessorConfig bounds the optimistic concurrency retry loop.
type ProcessorConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Result describes a processed command. ProjectionErr is set when the events
// were committed but the synchronous projection did not complete; the write
// itself still succeeded.
type Result struct {
	Events        []domain.Envelope
	ProjectionErr error
}

// Committed reports the last committed sequence, 0 when nothing was appended.
func (r *Result) Committed() int64 {
	if r == nil || len(r.Events) == 0 {
		return 0
	}
	return r.Events[len(r.Events)-1].Sequence
}

// UseCase is the command processor: rebuild, decide, append, dispatch.
type UseCase struct {
	events        repository.EventStore
	reconstructor *Reconstructor
	engine        *Engine
	dispatcher    ProjectionDispatcher
	catchUp       usecase.CatchUpScheduler
	metrics       Metrics
	tracer        trace.Tracer
	logger        *zap.Logger
	cfg           ProcessorConfig
}

// Option customizes optional collaborators of the processor.
type Option func(*UseCase)

func WithCatchUp(s usecase.CatchUpScheduler) Option { return func(uc *UseCase) { uc.catchUp = s } }

func WithMetrics(m Metrics) Option {
	return func(uc *UseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(uc *UseCase) {
		if t != nil {
			uc.tracer = t
		}
	}
}

func New(
	events repository.EventStore,
	engine *Engine,
	dispatcher ProjectionDispatcher,
	logger *zap.Logger,
	cfg ProcessorConfig,
	opts ...Option,
) *UseCase {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 10 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = 20 * cfg.InitialBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewEngine(nil)
	}
	uc := &UseCase{
		events:        events,
		reconstructor: NewReconstructor(events),
		engine:        engine,
		dispatcher:    dispatcher,
		metrics:       nopMetrics{},
		tracer:        otel.Tracer("github.com/fastygo/ledger/usecase/account"),
		logger:        logger,
		cfg:           cfg,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Handle processes one command against the account stream.
func (uc *UseCase) Handle(ctx context.Context, aggregateID string, cmd domain.Command, metadata map[string]string) (*Result, error) {
	start := time.Now()
	name := commandName(cmd)

	ctx, span := uc.tracer.Start(ctx, "account.Handle", trace.WithAttributes(
		attribute.String("account.id", aggregateID),
		attribute.String("command", name),
	))
	defer span.End()

	log := logger.ForAccount(ctx, uc.logger, aggregateID).With(zap.String("command", name))

	if strings.TrimSpace(aggregateID) == "" {
		return nil, uc.fail(span, log, name, start, domain.NewError(domain.ErrCodeInvalid, "account id is required"))
	}
	if cmd == nil {
		return nil, uc.fail(span, log, name, start, domain.ErrUnknownCommand)
	}

	committed, err := uc.decideAndAppend(ctx, log, aggregateID, cmd, metadata)
	if err != nil {
		return nil, uc.fail(span, log, name, start, err)
	}

	result := &Result{Events: committed}
	outcome := "accepted"
	if len(committed) > 0 && uc.dispatcher != nil {
		if err := uc.dispatcher.Dispatch(ctx, aggregateID, committed); err != nil {
			result.ProjectionErr = domain.WrapError(domain.ErrCodeProjectionFailure, "synchronous projection did not complete", err)
			outcome = "projection_failed"
			span.AddEvent("projection_failed", trace.WithAttributes(attribute.String("error", err.Error())))
			uc.scheduleCatchUp(ctx, log, aggregateID, err)
		}
	}

	span.SetAttributes(attribute.Int64("sequence", result.Committed()))
	uc.metrics.RecordCommand(name, outcome, time.Since(start))
	log.Debug("command processed", zap.Int64("sequence", result.Committed()), zap.String("outcome", outcome))
	return result, nil
}

// decideAndAppend runs rebuild, decide and conditional append, retrying the
// whole cycle when another writer won the race for the next sequence.
func (uc *UseCase) decideAndAppend(ctx context.Context, log *zap.Logger, aggregateID string, cmd domain.Command, metadata map[string]string) ([]domain.Envelope, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = uc.cfg.InitialBackoff
	bo.MaxInterval = uc.cfg.MaxBackoff
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= uc.cfg.MaxAttempts; attempt++ {
		state, sequence, err := uc.reconstructor.Rebuild(ctx, aggregateID)
		if err != nil {
			return nil, err
		}

		events, err := uc.engine.Decide(aggregateID, state, cmd)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return nil, nil
		}

		committed, err := uc.events.Append(ctx, aggregateID, sequence, events, metadata)
		if err == nil {
			return committed, nil
		}
		if !domain.IsDomainError(err, domain.ErrCodeConcurrencyConflict) {
			return nil, domain.StoreError("append events", err)
		}

		lastErr = err
		uc.metrics.RecordRetry(cmd.CommandName())
		log.Debug("concurrency conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Int64("expected_sequence", sequence))

		if attempt == uc.cfg.MaxAttempts {
			break
		}
		wait := bo.NextBackOff()
		if wait < 0 {
			wait = uc.cfg.MaxBackoff
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, domain.StoreError("retry append", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, domain.WrapError(domain.ErrCodeConcurrencyConflict, "concurrency retries exhausted", lastErr)
}

func (uc *UseCase) scheduleCatchUp(ctx context.Context, log *zap.Logger, aggregateID string, err error) {
	var projErr *usecase.ProjectionError
	var names []string
	if errors.As(err, &projErr) {
		names = projErr.Projections()
	}
	for _, name := range names {
		uc.metrics.RecordProjectionFailure(name)
	}
	if len(names) == 0 {
		uc.metrics.RecordProjectionFailure("unknown")
	}

	log.Error("projection failed, catch-up scheduled", zap.Strings("projections", names), zap.Error(err))
	if uc.catchUp == nil {
		return
	}

	// The request context may already be done; the event is committed either way.
	schedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := uc.catchUp.ScheduleCatchUp(schedCtx, aggregateID, names); err != nil {
		log.Error("failed to schedule projection catch-up", zap.Error(err))
	}
}

func (uc *UseCase) fail(span trace.Span, log *zap.Logger, name string, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	uc.metrics.RecordCommand(name, strings.ToLower(string(domain.Code(err))), time.Since(start))

	switch domain.Code(err) {
	case domain.ErrCodeValidationRejected, domain.ErrCodeAggregateState, domain.ErrCodeInvalid:
		log.Info("command rejected", zap.Error(err))
	default:
		log.Error("command failed", zap.Error(err))
	}
	return err
}

func commandName(cmd domain.Command) string {
	if cmd == nil {
		return "unknown"
	}
	return cmd.CommandName()
}
