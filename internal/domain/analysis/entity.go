package analysis

import (
	"time"

	"github.com/prasdika/temukan/internal/domain/cases"
)

// ID tipe untuk AnalysisResult
type ResultID string

// Match is one candidate re-identification hit returned by the re-id engine,
// ranked best-first.
type Match struct {
	Rank             int     `json:"rank"`
	Confidence       float64 `json:"confidence"`
	FrameNumber      int     `json:"frame_number"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	BBox             []int   `json:"bbox,omitempty"`
	ImageBase64      string  `json:"image_base64,omitempty"`
}

// Statistics summarizes one engine pass over the footage.
type Statistics struct {
	TotalDetections int     `json:"total_detections"`
	MeanSimilarity  float64 `json:"mean_similarity,omitempty"`
	MaxSimilarity   float64 `json:"max_similarity,omitempty"`
	MatchesFound    int     `json:"matches_found"`
}

// VideoInfo adalah metadata footage dari engine
type VideoInfo struct {
	FPS             float64 `json:"fps"`
	TotalFrames     int     `json:"total_frames"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Result is the decoded wire payload of the re-id service's /analyze endpoint.
// Matches may be absent in the body; a missing list is not an error.
type Result struct {
	Status     string     `json:"status"`
	VideoInfo  *VideoInfo `json:"video_info,omitempty"`
	Statistics Statistics `json:"statistics"`
	Matches    []Match    `json:"matches"`
}

// Outcome is the normalized in-memory result of one analysis.
type Outcome struct {
	Matches            []Match      `json:"matches"`
	Statistics         Statistics   `json:"statistics"`
	TopMatchConfidence float64      `json:"top_match_confidence"`
	NextStatus         cases.Status `json:"next_status"`
}

// AnalysisResult is the persisted record of one completed analysis attempt.
// RawResult keeps the engine response verbatim for later inspection.
type AnalysisResult struct {
	ID        ResultID     `json:"id"`
	CaseID    cases.CaseID `json:"case_id"`
	RawResult string       `json:"raw_result"`
	TopMatch  float64      `json:"top_match"`
	CreatedAt time.Time    `json:"created_at"`
}
