package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/miradorstack/churn-triage/internal/auth"
)

// RouterConfig carries the HTTP surface settings.
type RouterConfig struct {
	CORSOrigins    []string
	MaxUploadBytes int64
}

// NewRouter wires the REST API.
func NewRouter(logger *slog.Logger, svc Triage, authn *auth.Authenticator, cfg RouterConfig) http.Handler {
	h := NewHandler(logger, svc, authn, cfg.MaxUploadBytes)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Post("/api/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.authn.Middleware(h.writeError))

		r.Get("/api/thresholds", h.Thresholds)
		r.Get("/api/models", h.Models)
		r.Get("/api/runs", h.ListRuns)
		r.Post("/api/runs", h.Upload)
		r.Get("/api/runs/latest", h.LatestRun)
		r.Get("/api/runs/{runID}", h.GetRun)
		r.Get("/api/runs/{runID}/segments", h.Segment)
		r.Post("/api/runs/{runID}/strategy", h.Strategy)
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("took", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
