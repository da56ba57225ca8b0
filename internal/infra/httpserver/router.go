package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	appanalysis "github.com/bryanwahyu/chatlog-analyzer/internal/application/analysis"
	domai "github.com/bryanwahyu/chatlog-analyzer/internal/domain/ai"
	domain "github.com/bryanwahyu/chatlog-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/chatlog-analyzer/internal/middleware"
)

// AnalysisService is what the HTTP layer needs from application/analysis.Service.
type AnalysisService interface {
	AnalyzeAndStore(ctx context.Context, tenant string, cmd appanalysis.AnalyzeCommand) (*domain.Record, error)
	Get(ctx context.Context, tenant string, id domain.RecordID) (*domain.Record, error)
	List(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error)
	RecentFailures(ctx context.Context, tenant string, limit int) ([]*domain.Failure, error)
	ChatLog(ctx context.Context, tenant string, id domain.RecordID) ([]byte, error)
}

type Options struct {
	// APIKeys maps tenant to key. Empty disables authentication.
	APIKeys        map[string]string
	AllowedOrigins []string
	HealthCheckers map[string]middleware.HealthChecker
	Log            logrus.FieldLogger
}

type Router struct {
	svc AnalysisService
	log logrus.FieldLogger
}

func NewRouter(svc AnalysisService, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := &Router{svc: svc, log: log}
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.Logging(log))
	if len(opts.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	}

	health := middleware.HealthHandler(opts.HealthCheckers)
	mux.Get("/health", health)
	mux.Get("/healthz", health)
	mux.Get("/readyz", middleware.ReadinessHandler)
	mux.Get("/livez", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)
		rt.Post("/chatlogs/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Get("/analyses/{id}/chatlog", r.wrap(r.handleChatLog))
		rt.Get("/failures", r.wrap(r.handleFailures))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks client input problems
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, body := classify(err)
		if status >= http.StatusInternalServerError {
			captureError(req, err, body.Kind)
		}
		writeJSON(w, status, body)
	}
}

// classify maps an error to an HTTP status and response body.
func classify(err error) (int, errorBody) {
	var bre *badRequestError
	if errors.As(err, &bre) {
		return http.StatusBadRequest, errorBody{Error: bre.msg}
	}
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound, errorBody{Error: "not found"}
	}

	var ae *domain.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, errorBody{Error: err.Error()}
	}
	body := errorBody{Error: ae.Error(), Kind: ae.Kind.String()}
	if errors.Is(err, domai.ErrQuotaExceeded) {
		return http.StatusTooManyRequests, body
	}
	switch ae.Kind {
	case domain.KindConfiguration:
		return http.StatusServiceUnavailable, body
	case domain.KindEmptyResponse, domain.KindMalformedResponse, domain.KindTransmission:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

// POST /v1/{tenant}/chatlogs/analyze
// Body: {"chat_log": "...", "instructor_names": "..."}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	var body domain.Request
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	if err := middleware.ValidateChatLog(body.ChatLog); err != nil {
		return badRequest("%v", err)
	}

	done := middleware.StartAnalysis()
	rec, err := r.svc.AnalyzeAndStore(req.Context(), tenant, appanalysis.AnalyzeCommand{
		ChatLog:         body.ChatLog,
		InstructorNames: body.InstructorNames,
	})
	done(err != nil)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusCreated, rec)
	return nil
}

// GET /v1/{tenant}/analyses?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.List(req.Context(), tenant, middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/{tenant}/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	rec, err := r.svc.Get(req.Context(), tenant, domain.RecordID(id))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rec)
	return nil
}

// GET /v1/{tenant}/analyses/{id}/chatlog
func (r *Router) handleChatLog(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	text, err := r.svc.ChatLog(req.Context(), tenant, domain.RecordID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(text)
	return err
}

// GET /v1/{tenant}/failures?limit=20
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.RecentFailures(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, kind string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		if kind != "" {
			scope.SetTag("analysis_kind", kind)
		}
		sentry.CaptureException(err)
	})
}
