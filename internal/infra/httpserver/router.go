package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appbriefs "github.com/prasdika/temukan/internal/application/briefs"
	appcases "github.com/prasdika/temukan/internal/application/cases"
	domai "github.com/prasdika/temukan/internal/domain/ai"
	domanalysis "github.com/prasdika/temukan/internal/domain/analysis"
	domain "github.com/prasdika/temukan/internal/domain/cases"
	"github.com/prasdika/temukan/internal/middleware"
	"github.com/prasdika/temukan/internal/pkg/logger"
)

type Router struct {
	casesSvc    *appcases.Service
	briefsSvc   *appbriefs.Service
	log         *logger.Logger
	evidenceURL func(key string) string
}

// Options bundles the cross-cutting pieces main wires into the mux.
type Options struct {
	Log            *logger.Logger
	APIKeys        map[string]string
	HealthCheckers map[string]middleware.HealthChecker
	// EvidenceURL renders a storage key as a viewable URL for the case detail
	// response; nil leaves the URLs out.
	EvidenceURL func(key string) string
}

// NewRouter builds the HTTP surface. briefsSvc boleh nil kalau AI tidak
// dikonfigurasi; endpoint brief bakal balas 503.
func NewRouter(casesSvc *appcases.Service, briefsSvc *appbriefs.Service, opts Options) http.Handler {
	r := &Router{casesSvc: casesSvc, briefsSvc: briefsSvc, log: opts.Log, evidenceURL: opts.EvidenceURL}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	if opts.Log != nil {
		mux.Use(middleware.LoggingMiddleware(opts.Log))
	}
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		if len(opts.APIKeys) > 0 {
			rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		}
		rt.Use(middleware.RateLimitMiddleware(100, 10))

		rt.Post("/cases", r.wrap(r.handleSubmitCase))
		rt.Get("/cases", r.wrap(r.handleListCases))
		rt.Get("/cases/latest", r.wrap(r.handleLatest))
		rt.Get("/cases/{id}", r.wrap(r.handleGetCase))
		rt.Post("/cases/{id}/analyze", r.handleAnalyze)
		rt.Get("/cases/{id}/results", r.wrap(r.handleResults))
		rt.Get("/cases/{id}/failures", r.wrap(r.handleFailures))
		rt.Post("/cases/{id}/brief", r.wrap(r.handleGenerateBrief))
		rt.Get("/cases/{id}/briefs", r.wrap(r.handleListBriefs))
		rt.Get("/summary", r.wrap(r.handleSummary))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, domanalysis.ErrCaseNotFound) {
				http.Error(w, "case not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, domai.ErrQuotaExceeded) {
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/cases
func (r *Router) handleSubmitCase(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		PersonName  string `json:"person_name"`
		RefImageKey string `json:"ref_image_key"`
		VideoKey    string `json:"video_key"`
		UserID      string `json:"user_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if err := middleware.ValidateObjectKey(body.RefImageKey); err != nil {
		http.Error(w, fmt.Sprintf("ref_image_key: %v", err), http.StatusBadRequest)
		return nil
	}
	if err := middleware.ValidateObjectKey(body.VideoKey); err != nil {
		http.Error(w, fmt.Sprintf("video_key: %v", err), http.StatusBadRequest)
		return nil
	}

	c, err := r.casesSvc.SubmitCase(req.Context(), appcases.SubmitCaseCommand{
		Title:       body.Title,
		Description: body.Description,
		PersonName:  body.PersonName,
		RefImageKey: body.RefImageKey,
		VideoKey:    body.VideoKey,
		UserID:      body.UserID,
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(c)
}

// POST /v1/cases/{id}/analyze
//
// Jalan synchronous: klien nunggu sampai pipeline selesai. Respons selalu
// bertag success supaya klien tinggal cek satu field.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) {
	id := domain.CaseID(chi.URLParam(req, "id"))

	middleware.IncrementAnalyses()
	middleware.IncrementAnalysesRunning()
	out, err := r.casesSvc.RunAnalysis(req.Context(), id)
	middleware.DecrementAnalysesRunning()

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		middleware.IncrementAnalysesFailed()
		w.WriteHeader(analyzeStatus(err))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"outcome": out,
	})
}

func analyzeStatus(err error) int {
	var svcErr *domanalysis.ServiceError
	switch {
	case errors.Is(err, domanalysis.ErrCaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domanalysis.ErrEvidenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domanalysis.ErrAnalysisInProgress):
		return http.StatusConflict
	case errors.Is(err, domanalysis.ErrServiceUnreachable):
		return http.StatusBadGateway
	case errors.As(err, &svcErr):
		return http.StatusBadGateway
	case errors.Is(err, domanalysis.ErrMalformedResponse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GET /v1/cases?page=&page_size=&status=&user_id=&person=
func (r *Router) handleListCases(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	filters := map[string]interface{}{}
	if status := req.URL.Query().Get("status"); status != "" {
		if err := middleware.ValidateStatusFilter(status); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil
		}
		filters["status"] = strings.ToUpper(status)
	}
	if userID := req.URL.Query().Get("user_id"); userID != "" {
		filters["user_id"] = userID
	}
	if person := req.URL.Query().Get("person"); person != "" {
		filters["person"] = person
	}

	list, err := r.casesSvc.Paginate(req.Context(), page, size, filters)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/cases/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.casesSvc.Latest(req.Context(), limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/cases/{id} → case plus hasil analisis terakhir (kalau ada)
func (r *Router) handleGetCase(w http.ResponseWriter, req *http.Request) error {
	id := domain.CaseID(chi.URLParam(req, "id"))

	c, err := r.casesSvc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("case %s: %w", id, domanalysis.ErrCaseNotFound)
	}
	latest, err := r.casesSvc.LatestResult(req.Context(), id)
	if err != nil {
		return err
	}

	resp := map[string]any{
		"case":          c,
		"latest_result": latest,
	}
	if r.evidenceURL != nil {
		resp["evidence"] = map[string]string{
			"ref_image_url": r.evidenceURL(c.RefImageKey),
			"video_url":     r.evidenceURL(c.VideoKey),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/cases/{id}/results?limit=20
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	id := domain.CaseID(chi.URLParam(req, "id"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.casesSvc.AnalysisHistory(req.Context(), id, limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/cases/{id}/failures?limit=20
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	id := domain.CaseID(chi.URLParam(req, "id"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.casesSvc.PipelineFailures(req.Context(), id, limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// POST /v1/cases/{id}/brief
func (r *Router) handleGenerateBrief(w http.ResponseWriter, req *http.Request) error {
	if r.briefsSvc == nil {
		http.Error(w, "ai briefs not configured", http.StatusServiceUnavailable)
		return nil
	}
	id := domain.CaseID(chi.URLParam(req, "id"))

	b, err := r.briefsSvc.Generate(req.Context(), id)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(b)
}

// GET /v1/cases/{id}/briefs?limit=20
func (r *Router) handleListBriefs(w http.ResponseWriter, req *http.Request) error {
	if r.briefsSvc == nil {
		http.Error(w, "ai briefs not configured", http.StatusServiceUnavailable)
		return nil
	}
	id := domain.CaseID(chi.URLParam(req, "id"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.briefsSvc.ListByCase(req.Context(), id, limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.casesSvc.Summary(req.Context(), days)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}
