package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	apprelay "github.com/bryanwahyu/csvask/internal/application/relay"
	domain "github.com/bryanwahyu/csvask/internal/domain/relay"
	"github.com/bryanwahyu/csvask/internal/middleware"
)

// maxRequestBody bounds the JSON body of POST /api/analyze.
const maxRequestBody = 64 << 10

// Options carries the optional collaborators of the router.
type Options struct {
	Logger         *slog.Logger
	Metrics        *middleware.Metrics
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	Checkers       map[string]middleware.HealthChecker
}

type Router struct {
	relaySvc *apprelay.Service
	metrics  *middleware.Metrics
	log      *slog.Logger
}

func NewRouter(relaySvc *apprelay.Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = middleware.NewMetrics()
	}
	r := &Router{relaySvc: relaySvc, metrics: opts.Metrics, log: opts.Logger}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Logging(opts.Logger))
	mux.Use(opts.Metrics.Middleware)
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimit(opts.RateLimiter, "/health", "/readyz", "/metrics"))
	}

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/readyz", middleware.HealthHandler(opts.Checkers))
	mux.Get("/metrics", opts.Metrics.Handler)

	mux.Route("/api", func(rt chi.Router) {
		// every method is routed here so non-POST calls get the JSON 405
		rt.HandleFunc("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/files", r.wrap(r.handleListFiles))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			rerr := domain.AsError(err)
			if rerr.StatusCode() >= http.StatusInternalServerError {
				r.log.ErrorContext(req.Context(), "request failed",
					"path", req.URL.Path, "request_id", middleware.GetRequestID(req.Context()), "error", err)
			}
			if rerr.Kind == domain.KindMethodNotAllowed {
				w.Header().Set("Allow", http.MethodPost)
			}
			writeJSON(w, rerr.StatusCode(), errorBody{Error: rerr.Message()})
		}
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type analyzeRequest struct {
	Path     string `json:"path"`
	Question string `json:"question"`
}

// POST /api/analyze
// Body: {"path": "<file name>", "question": "<text>"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return domain.ErrMethodNotAllowed
	}

	var body analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody)).Decode(&body); err != nil {
		r.metrics.ObserveRelay(http.StatusBadRequest)
		return domain.Wrap(domain.KindInvalidInput, err)
	}

	res, err := r.relaySvc.Relay(req.Context(), body.Path, body.Question)
	if err != nil {
		r.metrics.ObserveRelay(domain.AsError(err).StatusCode())
		return err
	}
	r.metrics.ObserveRelay(http.StatusOK)

	writeJSON(w, http.StatusOK, res)
	return nil
}

// GET /api/files
func (r *Router) handleListFiles(w http.ResponseWriter, req *http.Request) error {
	files, err := r.relaySvc.ListFiles(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
