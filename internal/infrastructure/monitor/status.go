package monitor

import "time"

type Status struct {
	Healthy         bool            `json:"healthy"`
	Components      map[string]bool `json:"components"`
	PendingCatchUps int             `json:"pending_catch_ups"`
	LastCheck       time.Time       `json:"last_check"`
}
