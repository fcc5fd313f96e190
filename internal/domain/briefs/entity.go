package briefs

import "time"

// BriefID identifier type
type BriefID string

// Brief represents an AI-written case narrative stored for auditing and retrieval
type Brief struct {
	ID        BriefID   `json:"id"`
	CaseID    string    `json:"case_id"`
	ResultID  string    `json:"result_id,omitempty"`
	BriefJSON string    `json:"brief"` // JSON string from AI
	CreatedAt time.Time `json:"created_at"`
}
