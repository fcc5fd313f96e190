package pipelinelog

import "time"

// Failure represents a persisted analysis pipeline failure entry. Persistence
// failures are the severe ones (the external work is already spent), so they
// are recorded here to back a manual-retry path instead of being dropped.
type Failure struct {
	ID          int64     `json:"id"`
	CaseID      string    `json:"case_id"`
	Phase       string    `json:"phase,omitempty"` // evidence | detect | persist | other
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
