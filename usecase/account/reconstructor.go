package account

import (
	"context"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/usecase"
)

// Reconstructor rebuilds account state by replaying the full event stream.
type Reconstructor struct {
	events usecase.StreamLoader
}

func NewReconstructor(events usecase.StreamLoader) *Reconstructor {
	return &Reconstructor{events: events}
}

// Rebuild returns the current state and sequence of the account. A stream with
// no events yields the empty state at sequence 0.
func (r *Reconstructor) Rebuild(ctx context.Context, aggregateID string) (domain.AccountState, int64, error) {
	envelopes, err := r.events.Load(ctx, aggregateID)
	if err != nil {
		return domain.AccountState{}, 0, domain.StoreError("load events", err)
	}
	return domain.Fold(envelopes)
}
