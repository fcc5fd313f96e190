package analysis

import (
	"context"
	"io"

	"github.com/prasdika/temukan/internal/domain/cases"
)

// Detector port (interface ke engine re-id eksternal). One invocation is one
// attempt; retries are orchestrator policy, not the client's.
type Detector interface {
	// Analyze ships both evidence payloads plus parameters to the engine and
	// returns the decoded result together with the raw response body.
	Analyze(ctx context.Context, refImage, video io.Reader, threshold float64, topN int) (Result, []byte, error)
}

// EvidenceSource port: resolves a case's stored evidence key into a readable
// stream, failing with ErrEvidenceNotFound when the object is absent.
type EvidenceSource interface {
	Resolve(ctx context.Context, key string) (io.ReadCloser, error)
}

// Notifier port for the completion notice. Best-effort from the orchestrator's
// point of view; errors are logged and swallowed there.
type Notifier interface {
	AnalysisComplete(ctx context.Context, email string, caseTitle string, caseID cases.CaseID, out Outcome) error
}

// Repository port untuk persistence AnalysisResult
type Repository interface {
	// SaveWithStatus persists the result and flips the owning case's status in
	// one transaction: readers never observe one without the other.
	SaveWithStatus(ctx context.Context, r *AnalysisResult, status cases.Status) error
	ResultsByCase(ctx context.Context, id cases.CaseID, limit int) ([]*AnalysisResult, error)
	LatestByCase(ctx context.Context, id cases.CaseID) (*AnalysisResult, error)
}
