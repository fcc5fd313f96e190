package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/prasdika/temukan/internal/application"
	"github.com/prasdika/temukan/internal/domain/analysis"
	domain "github.com/prasdika/temukan/internal/domain/cases"
	"github.com/prasdika/temukan/internal/domain/pipelinelog"
	"github.com/prasdika/temukan/internal/pkg/logger"
)

const (
	defaultThreshold     = 0.60
	defaultTopN          = 5
	defaultDetectTimeout = 5 * time.Minute
	defaultNotifyTimeout = 15 * time.Second
	persistTimeout       = 10 * time.Second
)

// Service implements use-cases untuk Case. Safe for concurrent use; the
// in-flight table below serializes analyses per case.
type Service struct {
	Repo     domain.Repository
	Results  analysis.Repository
	Evidence analysis.EvidenceSource
	Detector analysis.Detector
	Notifier analysis.Notifier
	Failures pipelinelog.Repository // optional, best-effort failure log
	Clock    application.Clock
	Log      *logger.Logger

	// Detection parameters; zero values fall back to the defaults above.
	Threshold     float64
	TopN          int
	DetectTimeout time.Duration
	NotifyTimeout time.Duration

	mu       sync.Mutex
	inflight map[domain.CaseID]struct{}
}

//
// ==== USE CASES ====
//

// Command untuk intake case baru
type SubmitCaseCommand struct {
	Title       string
	Description string
	PersonName  string
	RefImageKey string
	VideoKey    string
	UserID      string
}

// SubmitCase creates a new case in PENDING referencing evidence objects that
// already live in storage. Upload handling is not this service's business.
func (s *Service) SubmitCase(ctx context.Context, cmd SubmitCaseCommand) (*domain.Case, error) {
	c := &domain.Case{
		ID:          domain.CaseID(uuid.New().String()),
		Title:       strings.TrimSpace(cmd.Title),
		Description: strings.TrimSpace(cmd.Description),
		PersonName:  strings.TrimSpace(cmd.PersonName),
		RefImageKey: cmd.RefImageKey,
		VideoKey:    cmd.VideoKey,
		Status:      domain.StatusPending,
		CreatedAt:   s.Clock.Now(),
		UserID:      cmd.UserID,
	}
	if c.Title == "" || c.PersonName == "" || c.RefImageKey == "" || c.VideoKey == "" {
		return nil, fmt.Errorf("title, person name and both evidence keys are required")
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RunAnalysis executes the full pipeline for one case:
// load → resolve evidence → call the re-id engine → interpret → persist
// result+status atomically → dispatch the completion notice.
//
// A failure in any stage before persistence aborts with zero side effects.
func (s *Service) RunAnalysis(ctx context.Context, id domain.CaseID) (analysis.Outcome, error) {
	if !s.acquire(id) {
		return analysis.Outcome{}, fmt.Errorf("case %s: %w", id, analysis.ErrAnalysisInProgress)
	}
	defer s.release(id)

	// 1. load case + owner
	c, err := s.Repo.GetWithOwner(ctx, id)
	if err != nil {
		return analysis.Outcome{}, err
	}
	if c == nil {
		return analysis.Outcome{}, fmt.Errorf("case %s: %w", id, analysis.ErrCaseNotFound)
	}

	// last point where a caller hangup still aborts cheaply
	if err := ctx.Err(); err != nil {
		return analysis.Outcome{}, err
	}

	// Steps 2-3 share one detached deadline. The evidence readers stream into
	// the engine request while the call is in flight, so they must outlive the
	// caller's ctx just like the call itself.
	detectCtx, cancel := context.WithTimeout(context.Background(), s.detectTimeout())
	defer cancel()

	// 2. resolve evidence, keduanya sekaligus
	refImage, video, err := s.resolveEvidence(detectCtx, c)
	if err != nil {
		s.recordFailure(c.ID, "evidence", err)
		return analysis.Outcome{}, err
	}
	defer refImage.Close()
	defer video.Close()

	// 3. call the engine
	res, raw, err := s.Detector.Analyze(detectCtx, refImage, video, s.threshold(), s.topN())
	if err != nil {
		s.recordFailure(c.ID, "detect", err)
		return analysis.Outcome{}, err
	}

	// 4. normalize
	out := analysis.Interpret(res, s.topN())

	// 5+6. persist result and flip status in one committed unit
	record := &analysis.AnalysisResult{
		ID:        analysis.ResultID(uuid.New().String()),
		CaseID:    c.ID,
		RawResult: string(raw),
		TopMatch:  out.TopMatchConfidence,
		CreatedAt: s.Clock.Now(),
	}
	persistCtx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
	defer cancelPersist()
	persistErr := s.Results.SaveWithStatus(persistCtx, record, out.NextStatus)
	if persistErr != nil {
		// The engine work is already spent; this is the loud one.
		s.log().Error("analysis result lost: persist failed after successful engine call",
			"case_id", c.ID, "top_match", out.TopMatchConfidence, "error", persistErr)
		s.recordFailure(c.ID, "persist", persistErr)
		persistErr = fmt.Errorf("%w: %v", analysis.ErrPersistence, persistErr)
	}

	// 7. fire-and-forget notification, attempted regardless of the commit and
	// detached from the caller's lifetime
	s.dispatchNotify(c, out)

	if persistErr != nil {
		return analysis.Outcome{}, persistErr
	}
	return out, nil
}

// Latest ambil N case terakhir
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.Case, error) {
	return s.Repo.Latest(ctx, limit)
}

// Get ambil 1 case by id
func (s *Service) Get(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	return s.Repo.GetWithOwner(ctx, id)
}

// Paginate lists cases with optional filters (status, person)
func (s *Service) Paginate(ctx context.Context, page, pageSize int, filters map[string]interface{}) (domain.PaginatedResult, error) {
	return s.Repo.Paginate(ctx, page, pageSize, filters)
}

// Summary rekap status case N hari terakhir
func (s *Service) Summary(ctx context.Context, sinceDays int) (domain.Summary, error) {
	return s.Repo.Summary(ctx, sinceDays)
}

// AnalysisHistory returns the analysis records for a case, newest first.
func (s *Service) AnalysisHistory(ctx context.Context, id domain.CaseID, limit int) ([]*analysis.AnalysisResult, error) {
	return s.Results.ResultsByCase(ctx, id, limit)
}

// LatestResult returns the newest analysis record for a case, nil when none.
func (s *Service) LatestResult(ctx context.Context, id domain.CaseID) (*analysis.AnalysisResult, error) {
	return s.Results.LatestByCase(ctx, id)
}

// PipelineFailures lists recorded pipeline failures for a case (manual-retry aid).
func (s *Service) PipelineFailures(ctx context.Context, id domain.CaseID, limit int) ([]*pipelinelog.Failure, error) {
	if s.Failures == nil {
		return nil, nil
	}
	return s.Failures.ListByCase(ctx, string(id), limit)
}

//
// ==== internals ====
//

// acquire takes the per-case exclusivity token; false means an analysis for
// this case is already in flight.
func (s *Service) acquire(id domain.CaseID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[domain.CaseID]struct{})
	}
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) release(id domain.CaseID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// resolveEvidence validates both evidence objects exist and opens them,
// concurrently since the two lookups are independent.
func (s *Service) resolveEvidence(ctx context.Context, c *domain.Case) (io.ReadCloser, io.ReadCloser, error) {
	var refImage, video io.ReadCloser
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rc, err := s.Evidence.Resolve(gctx, c.RefImageKey)
		if err != nil {
			return fmt.Errorf("reference image %q: %w", c.RefImageKey, err)
		}
		refImage = rc
		return nil
	})
	g.Go(func() error {
		rc, err := s.Evidence.Resolve(gctx, c.VideoKey)
		if err != nil {
			return fmt.Errorf("evidence video %q: %w", c.VideoKey, err)
		}
		video = rc
		return nil
	})
	if err := g.Wait(); err != nil {
		if refImage != nil {
			refImage.Close()
		}
		if video != nil {
			video.Close()
		}
		return nil, nil, err
	}
	return refImage, video, nil
}

// dispatchNotify runs the completion notice on its own goroutine with its own
// timeout. Whatever happens in here never reaches the caller.
func (s *Service) dispatchNotify(c *domain.Case, out analysis.Outcome) {
	if s.Notifier == nil || c.Owner == nil || strings.TrimSpace(c.Owner.Email) == "" {
		return
	}
	email := c.Owner.Email
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout())
		defer cancel()
		if err := s.Notifier.AnalysisComplete(ctx, email, c.Title, c.ID, out); err != nil {
			s.log().Warn("completion notice failed", "case_id", c.ID, "error", err)
		}
	}()
}

// recordFailure persists a pipeline failure entry, best effort.
func (s *Service) recordFailure(id domain.CaseID, phase string, cause error) {
	if s.Failures == nil || errors.Is(cause, context.Canceled) {
		return
	}
	details, _ := json.Marshal(map[string]string{"error": cause.Error()})
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.Failures.Save(ctx, &pipelinelog.Failure{
		CaseID:      string(id),
		Phase:       phase,
		Message:     cause.Error(),
		DetailsJSON: string(details),
		CreatedAt:   s.Clock.Now(),
	}); err != nil {
		s.log().Warn("failure log write failed", "case_id", id, "error", err)
	}
}

func (s *Service) threshold() float64 {
	if s.Threshold > 0 {
		return s.Threshold
	}
	return defaultThreshold
}

func (s *Service) topN() int {
	if s.TopN > 0 {
		return s.TopN
	}
	return defaultTopN
}

func (s *Service) detectTimeout() time.Duration {
	if s.DetectTimeout > 0 {
		return s.DetectTimeout
	}
	return defaultDetectTimeout
}

func (s *Service) notifyTimeout() time.Duration {
	if s.NotifyTimeout > 0 {
		return s.NotifyTimeout
	}
	return defaultNotifyTimeout
}

func (s *Service) log() *logger.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logger.NewNop()
}
