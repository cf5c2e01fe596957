package usecase

import (
	"context"
)

// CatchUpScheduler records projections that fell behind the event log so a
// background worker can replay them later.
type CatchUpScheduler interface {
	ScheduleCatchUp(ctx context.Context, aggregateID string, projections []string) error
}
