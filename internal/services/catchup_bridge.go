package services

import (
	"context"

	"github.com/fastygo/ledger/usecase"
)

// CatchUpBridge exposes the processor to the command use case.
type CatchUpBridge struct {
	processor *CatchUpProcessor
}

func NewCatchUpBridge(processor *CatchUpProcessor) *CatchUpBridge {
	return &CatchUpBridge{processor: processor}
}

func (b *CatchUpBridge) ScheduleCatchUp(ctx context.Context, aggregateID string, projections []string) error {
	return b.processor.Schedule(ctx, aggregateID, projections)
}

var _ usecase.CatchUpScheduler = (*CatchUpBridge)(nil)
