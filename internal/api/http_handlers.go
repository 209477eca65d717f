package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-gota/gota/dataframe"

	"github.com/miradorstack/churn-triage/internal/auth"
	"github.com/miradorstack/churn-triage/internal/ingest"
	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/services"
	"github.com/miradorstack/churn-triage/internal/strategy"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// DefaultMaxUploadBytes caps CSV uploads when no limit is configured.
const DefaultMaxUploadBytes = 32 << 20

// Triage is the service surface the transports expose.
type Triage interface {
	ScoreUpload(ctx context.Context, df dataframe.DataFrame, idColumn, sourceName string) (models.Run, error)
	Run(ctx context.Context, id string) (models.Run, error)
	LatestRun(ctx context.Context) (models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
	Segment(ctx context.Context, runID, group string, topN int) (models.SegmentView, error)
	Strategy(ctx context.Context, in services.StrategyInput) (strategy.Response, error)
	Thresholds() (services.ThresholdInfo, error)
	Models() []string
	Ready(ctx context.Context) error
}

// Handler serves the REST endpoints.
type Handler struct {
	logger    *slog.Logger
	svc       Triage
	authn     *auth.Authenticator
	maxUpload int64
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, svc Triage, authn *auth.Authenticator, maxUpload int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{logger: logger, svc: svc, authn: authn, maxUpload: maxUpload}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type strategyRequest struct {
	CustomerID  string `json:"customer_id"`
	Group       string `json:"group"`
	Model       string `json:"model"`
	Constraints string `json:"constraints"`
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether artifacts are loaded and storage answers.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": message(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Login exchanges the operator credential for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, utils.Validation("api.Login", "invalid JSON body"))
		return
	}
	token, expires, err := h.authn.Login(req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

// Upload scores a multipart CSV upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, r, utils.Validation("api.Upload", "upload is not a valid multipart form or exceeds the size limit"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, utils.Validation("api.Upload", "no file uploaded"))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		h.writeError(w, r, utils.Validation("api.Upload", "only CSV files are allowed"))
		return
	}

	df, err := ingest.ReadCSV(file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	run, err := h.svc.ScoreUpload(r.Context(), df, r.FormValue("id_column"), filepath.Base(header.Filename))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunReply(run))
}

// ListRuns returns recent run summaries.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// LatestRun returns the newest run with its results.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.LatestRun(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReply(run))
}

// GetRun returns one run with its results.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReply(run))
}

// Segment returns one risk group of a run.
func (h *Handler) Segment(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.svc.Segment(r.Context(), chi.URLParam(r, "runID"), r.URL.Query().Get("group"), top)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Strategy generates a retention strategy for one customer.
func (h *Handler) Strategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, utils.Validation("api.Strategy", "invalid JSON body"))
		return
	}
	resp, err := h.svc.Strategy(r.Context(), services.StrategyInput{
		RunID:       chi.URLParam(r, "runID"),
		CustomerID:  req.CustomerID,
		Group:       req.Group,
		Model:       req.Model,
		Constraints: req.Constraints,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Thresholds returns the active tier boundaries.
func (h *Handler) Thresholds(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Thresholds()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Models lists the allowed strategy models.
func (h *Handler) Models(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": h.svc.Models()})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, utils.Validation("api.intParam", name+" must be a non-negative integer")
	}
	return n, nil
}
