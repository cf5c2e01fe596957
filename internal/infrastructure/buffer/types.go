package buffer

import (
	"slices"
	"time"
)

// Item is a pending projection catch-up for one account. Scheduling the same
// account again merges into the existing item.
type Item struct {
	AccountID   string    `json:"account_id"`
	Projections []string  `json:"projections,omitempty"`
	Retries     int       `json:"retries"`
	LastError   string    `json:"last_error,omitempty"`
	Version     int64     `json:"version"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// merge folds a new request into the pending item. An empty projection list
// means every projection, and it absorbs any named one.
func (i *Item) merge(projections []string, now time.Time) {
	i.Version++
	i.UpdatedAt = now
	if len(i.Projections) == 0 && i.Version > 1 {
		return
	}
	if len(projections) == 0 {
		i.Projections = nil
		return
	}
	for _, p := range projections {
		if !slices.Contains(i.Projections, p) {
			i.Projections = append(i.Projections, p)
		}
	}
	slices.Sort(i.Projections)
}
