package ingest

// Document lifecycle statuses. A document is created pending and moves to
// exactly one terminal status per ingestion run.
const (
	StatusPending  = "pending"
	StatusIngested = "ingested"
	StatusFailed   = "failed"
)

// Event is the terminal outcome published once per ingestion run on
// ingestion.complete or ingestion.failed.
type Event struct {
	DocID         int64   `json:"doc_id"`
	Status        string  `json:"status"`
	Departments   []int64 `json:"departments"`
	Error         string  `json:"error,omitempty"`
	ChunkCount    int     `json:"chunk_count,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}
