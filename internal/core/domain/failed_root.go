package domain

import "time"

// FailedRoot records a root identifier whose harvest failed fatally.
type FailedRoot struct {
	RootID   string    `json:"root_id"`
	RunID    string    `json:"run_id"`
	Error    string    `json:"error_msg"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}
