package domain

import "time"

// DefaultBatchSize is the number of threads stored per batch.
const DefaultBatchSize = 100

// Batch is a contiguous slice of a harvested collection.
type Batch struct {
	RootID  string   `json:"root_id"`
	Index   int      `json:"batch_index"`
	Threads []Thread `json:"threads"`
}

// BatchInfo describes a stored batch without its payload.
type BatchInfo struct {
	RootID      string    `json:"root_id"`
	Index       int       `json:"batch_index"`
	ThreadCount int       `json:"thread_count"`
	WrittenAt   time.Time `json:"written_at"`
}
