package cases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prasdika/temukan/internal/application"
	"github.com/prasdika/temukan/internal/domain/analysis"
	domain "github.com/prasdika/temukan/internal/domain/cases"
	"github.com/prasdika/temukan/internal/pkg/logger"
)

//
// ==== fakes ====
//

type fakeCaseRepo struct {
	mu      sync.Mutex
	cases   map[domain.CaseID]*domain.Case
	created []*domain.Case
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: map[domain.CaseID]*domain.Case{}}
}

func (r *fakeCaseRepo) Create(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[c.ID] = c
	r.created = append(r.created, c)
	return nil
}

func (r *fakeCaseRepo) GetWithOwner(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cases[id], nil
}

func (r *fakeCaseRepo) UpdateStatus(ctx context.Context, id domain.CaseID, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cases[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeCaseRepo) Latest(ctx context.Context, limit int) ([]*domain.Case, error) {
	return nil, nil
}

func (r *fakeCaseRepo) Paginate(ctx context.Context, page, pageSize int, filters map[string]interface{}) (domain.PaginatedResult, error) {
	return domain.PaginatedResult{}, nil
}

func (r *fakeCaseRepo) Summary(ctx context.Context, sinceDays int) (domain.Summary, error) {
	return domain.Summary{}, nil
}

type fakeResultRepo struct {
	mu       sync.Mutex
	saved    []*analysis.AnalysisResult
	statuses []domain.Status
	saveErr  error
	cases    *fakeCaseRepo
}

func (r *fakeResultRepo) SaveWithStatus(ctx context.Context, res *analysis.AnalysisResult, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, res)
	r.statuses = append(r.statuses, status)
	if r.cases != nil {
		_ = r.cases.UpdateStatus(ctx, res.CaseID, status)
	}
	return nil
}

func (r *fakeResultRepo) ResultsByCase(ctx context.Context, id domain.CaseID, limit int) ([]*analysis.AnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved, nil
}

func (r *fakeResultRepo) LatestByCase(ctx context.Context, id domain.CaseID) (*analysis.AnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return nil, nil
	}
	return r.saved[len(r.saved)-1], nil
}

type fakeEvidence struct {
	mu      sync.Mutex
	missing map[string]bool
	opened  []string
}

func (e *fakeEvidence) Resolve(ctx context.Context, key string) (io.ReadCloser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.missing[key] {
		return nil, fmt.Errorf("%s: %w", key, analysis.ErrEvidenceNotFound)
	}
	e.opened = append(e.opened, key)
	return io.NopCloser(strings.NewReader("payload-" + key)), nil
}

type fakeDetector struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{} // when set, Analyze waits until closed
	result  analysis.Result
	raw     []byte
	err     error
	lastTop int
}

func (d *fakeDetector) Analyze(ctx context.Context, refImage, video io.Reader, threshold float64, topN int) (analysis.Result, []byte, error) {
	d.mu.Lock()
	d.calls++
	d.lastTop = topN
	block := d.block
	d.mu.Unlock()
	if block != nil {
		<-block
	}
	if d.err != nil {
		return analysis.Result{}, nil, d.err
	}
	return d.result, d.raw, nil
}

// ctxBoundReader fails its reads once the resolving context is done, the way
// an object-store stream does.
type ctxBoundReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxBoundReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func (c *ctxBoundReader) Close() error { return nil }

type ctxBoundEvidence struct{}

func (e *ctxBoundEvidence) Resolve(ctx context.Context, key string) (io.ReadCloser, error) {
	return &ctxBoundReader{ctx: ctx, r: strings.NewReader("payload-" + key)}, nil
}

// streamingDetector drains both evidence readers mid-call, like the real
// multipart client does.
type streamingDetector struct {
	started chan struct{}
	proceed chan struct{}
	result  analysis.Result
	raw     []byte
}

func (d *streamingDetector) Analyze(ctx context.Context, refImage, video io.Reader, threshold float64, topN int) (analysis.Result, []byte, error) {
	close(d.started)
	<-d.proceed
	if _, err := io.ReadAll(refImage); err != nil {
		return analysis.Result{}, nil, fmt.Errorf("%w: %v", analysis.ErrServiceUnreachable, err)
	}
	if _, err := io.ReadAll(video); err != nil {
		return analysis.Result{}, nil, fmt.Errorf("%w: %v", analysis.ErrServiceUnreachable, err)
	}
	return d.result, d.raw, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []string
	outs   []analysis.Outcome
	err    error
	signal chan struct{}
}

func (n *fakeNotifier) AnalysisComplete(ctx context.Context, email, caseTitle string, caseID domain.CaseID, out analysis.Outcome) error {
	n.mu.Lock()
	n.sent = append(n.sent, email)
	n.outs = append(n.outs, out)
	n.mu.Unlock()
	if n.signal != nil {
		close(n.signal)
	}
	return n.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func solvedResult() analysis.Result {
	return analysis.Result{
		Status:     "success",
		Statistics: analysis.Statistics{TotalDetections: 100, MatchesFound: 1},
		Matches:    []analysis.Match{{Rank: 1, Confidence: 0.82}},
	}
}

func newTestService(repo *fakeCaseRepo, results *fakeResultRepo, ev *fakeEvidence, det *fakeDetector, not *fakeNotifier) *Service {
	return &Service{
		Repo:     repo,
		Results:  results,
		Evidence: ev,
		Detector: det,
		Notifier: not,
		Clock:    fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		Log:      logger.NewNop(),
	}
}

func seedCase(repo *fakeCaseRepo, id domain.CaseID, email string) *domain.Case {
	c := &domain.Case{
		ID:          id,
		Title:       "Hilang di Pasar Minggu",
		PersonName:  "Ardi",
		RefImageKey: "cases/" + string(id) + "/ref.jpg",
		VideoKey:    "cases/" + string(id) + "/cctv.mp4",
		Status:      domain.StatusPending,
		UserID:      "u1",
	}
	if email != "" {
		c.Owner = &domain.User{ID: "u1", Name: "Sari", Email: email}
	}
	repo.cases[c.ID] = c
	return c
}

//
// ==== tests ====
//

func TestSubmitCaseValidates(t *testing.T) {
	repo := newFakeCaseRepo()
	svc := newTestService(repo, &fakeResultRepo{}, &fakeEvidence{}, &fakeDetector{}, nil)

	_, err := svc.SubmitCase(context.Background(), SubmitCaseCommand{Title: "x"})
	if err == nil {
		t.Fatal("expected validation error for missing fields")
	}
	if len(repo.created) != 0 {
		t.Fatal("invalid command must not create a case")
	}

	c, err := svc.SubmitCase(context.Background(), SubmitCaseCommand{
		Title:       "  Hilang di Stasiun  ",
		PersonName:  "Budi",
		RefImageKey: "cases/c1/ref.jpg",
		VideoKey:    "cases/c1/cctv.mp4",
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if c.Status != domain.StatusPending {
		t.Fatalf("new case must start PENDING, got %s", c.Status)
	}
	if c.Title != "Hilang di Stasiun" {
		t.Fatalf("title not trimmed: %q", c.Title)
	}
	if c.ID == "" {
		t.Fatal("case must get an id")
	}
}

func TestRunAnalysisSolved(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "")
	det := &fakeDetector{result: solvedResult(), raw: []byte(`{"status":"success"}`)}
	svc := newTestService(repo, results, &fakeEvidence{}, det, nil)

	out, err := svc.RunAnalysis(context.Background(), "c1")
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}
	if out.NextStatus != domain.StatusSolved {
		t.Fatalf("expected SOLVED, got %s", out.NextStatus)
	}
	if out.TopMatchConfidence != 0.82 {
		t.Fatalf("expected top confidence 0.82, got %v", out.TopMatchConfidence)
	}
	if len(results.saved) != 1 {
		t.Fatalf("expected 1 persisted result, got %d", len(results.saved))
	}
	rec := results.saved[0]
	if rec.CaseID != "c1" || rec.TopMatch != 0.82 {
		t.Fatalf("unexpected persisted record: %+v", rec)
	}
	if rec.RawResult != `{"status":"success"}` {
		t.Fatalf("raw engine body must be stored verbatim, got %q", rec.RawResult)
	}
	if repo.cases["c1"].Status != domain.StatusSolved {
		t.Fatalf("case status not flipped, got %s", repo.cases["c1"].Status)
	}
}

func TestRunAnalysisNoMatchesStaysAnalyzing(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "")
	det := &fakeDetector{
		result: analysis.Result{Status: "success", Matches: []analysis.Match{}},
		raw:    []byte(`{"status":"success","matches":[]}`),
	}
	svc := newTestService(repo, results, &fakeEvidence{}, det, nil)

	out, err := svc.RunAnalysis(context.Background(), "c1")
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}
	if out.NextStatus != domain.StatusAnalyzing {
		t.Fatalf("expected ANALYZING, got %s", out.NextStatus)
	}
	if repo.cases["c1"].Status != domain.StatusAnalyzing {
		t.Fatalf("case status got %s", repo.cases["c1"].Status)
	}
	if len(results.saved) != 1 || results.saved[0].TopMatch != 0 {
		t.Fatalf("empty-match run must still persist a result with zero confidence: %+v", results.saved)
	}
}

func TestRunAnalysisCaseNotFound(t *testing.T) {
	repo := newFakeCaseRepo()
	det := &fakeDetector{}
	svc := newTestService(repo, &fakeResultRepo{}, &fakeEvidence{}, det, nil)

	_, err := svc.RunAnalysis(context.Background(), "nope")
	if !errors.Is(err, analysis.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
	if det.calls != 0 {
		t.Fatal("detector must not be called for a missing case")
	}
}

func TestRunAnalysisMissingEvidenceNoSideEffects(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	c := seedCase(repo, "c1", "")
	ev := &fakeEvidence{missing: map[string]bool{c.VideoKey: true}}
	det := &fakeDetector{result: solvedResult()}
	svc := newTestService(repo, results, ev, det, nil)

	_, err := svc.RunAnalysis(context.Background(), "c1")
	if !errors.Is(err, analysis.ErrEvidenceNotFound) {
		t.Fatalf("expected ErrEvidenceNotFound, got %v", err)
	}
	if det.calls != 0 {
		t.Fatal("detector must not run when evidence is missing")
	}
	if len(results.saved) != 0 {
		t.Fatal("nothing must be persisted when evidence is missing")
	}
	if repo.cases["c1"].Status != domain.StatusPending {
		t.Fatalf("status must be untouched, got %s", repo.cases["c1"].Status)
	}
}

func TestRunAnalysisDetectorErrorPropagates(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "")
	svcErr := &analysis.ServiceError{StatusCode: 500, Body: `{"detail":"gpu meltdown"}`}
	det := &fakeDetector{err: svcErr}
	svc := newTestService(repo, results, &fakeEvidence{}, det, nil)

	_, err := svc.RunAnalysis(context.Background(), "c1")
	var got *analysis.ServiceError
	if !errors.As(err, &got) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if !strings.Contains(got.Error(), "gpu meltdown") {
		t.Fatalf("engine body must survive verbatim: %v", got)
	}
	if len(results.saved) != 0 {
		t.Fatal("no persistence on detector failure")
	}
	if repo.cases["c1"].Status != domain.StatusPending {
		t.Fatalf("status must be untouched, got %s", repo.cases["c1"].Status)
	}
}

func TestRunAnalysisPersistFailure(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{saveErr: errors.New("deadlock")}
	seedCase(repo, "c1", "")
	det := &fakeDetector{result: solvedResult(), raw: []byte(`{}`)}
	svc := newTestService(repo, results, &fakeEvidence{}, det, nil)

	_, err := svc.RunAnalysis(context.Background(), "c1")
	if !errors.Is(err, analysis.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if repo.cases["c1"].Status != domain.StatusPending {
		t.Fatalf("failed commit must leave status untouched, got %s", repo.cases["c1"].Status)
	}
}

func TestRunAnalysisConcurrentDuplicate(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "")
	block := make(chan struct{})
	det := &fakeDetector{result: solvedResult(), raw: []byte(`{}`), block: block}
	svc := newTestService(repo, results, &fakeEvidence{}, det, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.RunAnalysis(context.Background(), "c1")
		firstDone <- err
	}()

	// wait for the first run to reach the detector
	deadline := time.After(2 * time.Second)
	for {
		det.mu.Lock()
		calls := det.calls
		det.mu.Unlock()
		if calls == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first analysis never reached the detector")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := svc.RunAnalysis(context.Background(), "c1")
	if !errors.Is(err, analysis.ErrAnalysisInProgress) {
		t.Fatalf("expected ErrAnalysisInProgress, got %v", err)
	}

	close(block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first analysis failed: %v", err)
	}
	if det.calls != 1 {
		t.Fatalf("detector must run once, ran %d times", det.calls)
	}

	// token released: the case can be analyzed again
	if _, err := svc.RunAnalysis(context.Background(), "c1"); err != nil {
		t.Fatalf("re-run after release failed: %v", err)
	}
}

func TestRunAnalysisNotifiesOwner(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "sari@example.com")
	not := &fakeNotifier{signal: make(chan struct{})}
	det := &fakeDetector{result: solvedResult(), raw: []byte(`{}`)}
	svc := newTestService(repo, results, &fakeEvidence{}, det, not)

	if _, err := svc.RunAnalysis(context.Background(), "c1"); err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	select {
	case <-not.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("completion notice never dispatched")
	}
	not.mu.Lock()
	defer not.mu.Unlock()
	if len(not.sent) != 1 || not.sent[0] != "sari@example.com" {
		t.Fatalf("unexpected recipients: %v", not.sent)
	}
	if not.outs[0].NextStatus != domain.StatusSolved {
		t.Fatalf("notifier got outcome %+v", not.outs[0])
	}
}

func TestRunAnalysisNotifierFailureDoesNotAffectResult(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "sari@example.com")
	not := &fakeNotifier{err: errors.New("smtp down"), signal: make(chan struct{})}
	det := &fakeDetector{result: solvedResult(), raw: []byte(`{}`)}
	svc := newTestService(repo, results, &fakeEvidence{}, det, not)

	out, err := svc.RunAnalysis(context.Background(), "c1")
	if err != nil {
		t.Fatalf("notifier failure must not fail the analysis: %v", err)
	}
	if out.NextStatus != domain.StatusSolved {
		t.Fatalf("expected SOLVED, got %s", out.NextStatus)
	}
	select {
	case <-not.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier never invoked")
	}
	if repo.cases["c1"].Status != domain.StatusSolved {
		t.Fatalf("persisted status got %s", repo.cases["c1"].Status)
	}
}

func TestRunAnalysisSkipsNotifyWithoutAddress(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "") // no owner
	not := &fakeNotifier{}
	det := &fakeDetector{result: solvedResult(), raw: []byte(`{}`)}
	svc := newTestService(repo, results, &fakeEvidence{}, det, not)

	if _, err := svc.RunAnalysis(context.Background(), "c1"); err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	not.mu.Lock()
	defer not.mu.Unlock()
	if len(not.sent) != 0 {
		t.Fatalf("notice sent despite missing address: %v", not.sent)
	}
}

func TestRunAnalysisSurvivesCallerHangup(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "")
	det := &streamingDetector{
		started: make(chan struct{}),
		proceed: make(chan struct{}),
		result:  solvedResult(),
		raw:     []byte(`{}`),
	}
	svc := &Service{
		Repo:     repo,
		Results:  results,
		Evidence: &ctxBoundEvidence{},
		Detector: det,
		Clock:    fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		Log:      logger.NewNop(),
	}

	callerCtx, hangup := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.RunAnalysis(callerCtx, "c1")
		done <- err
	}()

	select {
	case <-det.started:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis never reached the engine")
	}
	// client hangs up while the engine call streams the evidence
	hangup()
	close(det.proceed)

	if err := <-done; err != nil {
		t.Fatalf("caller hangup must not abort the in-flight engine call: %v", err)
	}
	if len(results.saved) != 1 {
		t.Fatalf("expected 1 persisted result, got %d", len(results.saved))
	}
	if repo.cases["c1"].Status != domain.StatusSolved {
		t.Fatalf("status got %s", repo.cases["c1"].Status)
	}
}

func TestRunAnalysisAbortsOnAlreadyCanceledCaller(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "")
	det := &fakeDetector{result: solvedResult(), raw: []byte(`{}`)}
	svc := newTestService(repo, results, &fakeEvidence{}, det, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.RunAnalysis(ctx, "c1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if det.calls != 0 {
		t.Fatal("detector must not run for a dead caller")
	}
}

func TestDetectorParameterDefaults(t *testing.T) {
	repo := newFakeCaseRepo()
	results := &fakeResultRepo{cases: repo}
	seedCase(repo, "c1", "")
	det := &fakeDetector{result: solvedResult(), raw: []byte(`{}`)}
	svc := newTestService(repo, results, &fakeEvidence{}, det, nil)

	if _, err := svc.RunAnalysis(context.Background(), "c1"); err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}
	if det.lastTop != 5 {
		t.Fatalf("expected default top_n 5, got %d", det.lastTop)
	}
}

var _ application.Clock = fixedClock{}
