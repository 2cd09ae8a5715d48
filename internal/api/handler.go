// ABOUTME: HTTP handler for the biomarker entry API.
// ABOUTME: Maps Repository results and errors onto JSON responses with {"message": ...} bodies.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/harperreed/biomarkers/internal/models"
	"github.com/harperreed/biomarkers/internal/storage"
)

// Response messages shared with clients.
const (
	MsgDuplicateDate = "An entry already exists for this date"
	MsgInvalidID     = "Invalid ID"
	MsgInvalidDate   = "Invalid date"
	MsgNotFound      = "Entry not found"
	MsgInternal      = "Internal server error"
)

// maxBodyBytes caps POST bodies.
const maxBodyBytes = 1 << 20

// Handler serves the /api endpoints plus /healthz and /metrics.
type Handler struct {
	repo    storage.Repository
	mux     *http.ServeMux
	handler http.Handler
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger
	metrics *Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithLocation sets the zone whose calendar defines "today" and in which
// zone-less dates are read. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) { h.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// New creates a Handler wired to repo and registers all routes.
func New(repo storage.Repository, opts ...Option) *Handler {
	h := &Handler{
		repo:    repo,
		mux:     http.NewServeMux(),
		loc:     time.Local,
		now:     time.Now,
		log:     slog.Default(),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.mux.HandleFunc("GET /api/biomarkers", h.listEntries)
	h.mux.HandleFunc("POST /api/biomarkers", h.createEntry)
	h.mux.HandleFunc("GET /api/biomarkers/series", h.series)
	h.mux.HandleFunc("GET /api/biomarkers/date/{date}", h.getEntryByDate)
	h.mux.HandleFunc("GET /api/biomarkers/{id}", h.getEntry)
	h.mux.HandleFunc("DELETE /api/biomarkers/{id}", h.deleteEntry)
	h.mux.HandleFunc("GET /api/biomarker-names", h.names)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /metrics", h.serveMetrics)

	h.handler = requestID(accessLog(h.log, h.metrics, recoverer(h.log, h.mux)))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Metrics exposes the handler's counters.
func (h *Handler) Metrics() *Metrics {
	return h.metrics
}

// --- route handlers ---------------------------------------------------------

// listEntries returns GET /api/biomarkers, every entry ascending by date.
func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.List(r.Context())
	if err != nil {
		h.internalError(w, r, "list entries", err)
		return
	}
	jsonResp(w, http.StatusOK, entries)
}

// createEntry handles POST /api/biomarkers.
func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.metrics.rejected("invalid")
		jsonErr(w, http.StatusBadRequest, "request body too large or unreadable")
		return
	}

	today := models.TodayAt(h.now(), h.loc)
	in, err := models.DecodeEntryInput(body, h.loc, today)
	if err != nil {
		h.metrics.rejected("invalid")
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.repo.Create(r.Context(), in.Date, in.Measurements)
	switch {
	case errors.Is(err, storage.ErrDuplicateDate):
		h.metrics.rejected("duplicate")
		jsonErr(w, http.StatusBadRequest, MsgDuplicateDate)
		return
	case models.IsValidationError(err):
		h.metrics.rejected("invalid")
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.internalError(w, r, "create entry", err)
		return
	}

	h.metrics.created()
	logger(r, h.log).Info("entry created", "id", entry.ID, "date", entry.Date.String())
	jsonResp(w, http.StatusCreated, entry)
}

// getEntry returns GET /api/biomarkers/{id}.
func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	entry, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "get entry", err)
		return
	}
	if entry == nil {
		jsonErr(w, http.StatusNotFound, MsgNotFound)
		return
	}
	jsonResp(w, http.StatusOK, entry)
}

// getEntryByDate returns GET /api/biomarkers/date/{date}.
func (h *Handler) getEntryByDate(w http.ResponseWriter, r *http.Request) {
	day, err := models.ParseDay(r.PathValue("date"), h.loc)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, MsgInvalidDate)
		return
	}
	entry, err := h.repo.FindByDate(r.Context(), day)
	if err != nil {
		h.internalError(w, r, "find entry by date", err)
		return
	}
	if entry == nil {
		jsonErr(w, http.StatusNotFound, MsgNotFound)
		return
	}
	jsonResp(w, http.StatusOK, entry)
}

// deleteEntry handles DELETE /api/biomarkers/{id}.
func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	entry, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "get entry", err)
		return
	}
	if entry == nil {
		jsonErr(w, http.StatusNotFound, MsgNotFound)
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.internalError(w, r, "delete entry", err)
		return
	}

	logger(r, h.log).Info("entry deleted", "id", id, "date", entry.Date.String())
	w.WriteHeader(http.StatusNoContent)
}

// series returns GET /api/biomarkers/series?names=a,b as chart series.
func (h *Handler) series(w http.ResponseWriter, r *http.Request) {
	names, err := models.ParseBiomarkers(r.URL.Query().Get("names"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.repo.List(r.Context())
	if err != nil {
		h.internalError(w, r, "list entries", err)
		return
	}
	jsonResp(w, http.StatusOK, models.BuildSeries(entries, names))
}

// BiomarkerInfo describes one biomarker for clients building forms.
type BiomarkerInfo struct {
	Name  models.Biomarker `json:"name"`
	Label string           `json:"label"`
	Min   int              `json:"min"`
	Max   int              `json:"max"`
}

// names returns GET /api/biomarker-names in canonical order.
func (h *Handler) names(w http.ResponseWriter, r *http.Request) {
	out := make([]BiomarkerInfo, 0, len(models.AllBiomarkers))
	for _, b := range models.AllBiomarkers {
		out = append(out, BiomarkerInfo{Name: b, Label: b.Label(), Min: models.MinScore, Max: models.MaxScore})
	}
	jsonResp(w, http.StatusOK, out)
}

// healthz returns GET /healthz.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// serveMetrics returns GET /metrics in the Prometheus text format.
func (h *Handler) serveMetrics(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.List(r.Context())
	count := -1
	if err == nil {
		count = len(entries)
	} else {
		logger(r, h.log).Warn("metrics: entry count unavailable", "err", err)
	}

	w.Header().Set("Content-Type", metricsContentType)
	if err := h.metrics.Write(w, count); err != nil {
		logger(r, h.log).Error("metrics: write failed", "err", err)
	}
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger(r, h.log).Error(op+" failed", "err", err)
	jsonErr(w, http.StatusInternalServerError, MsgInternal)
}

// parseID reads the {id} path value, writing a 400 when it is not an
// integer. Zero and negative ids parse and fall through to a 404.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, MsgInvalidID)
		return 0, false
	}
	return id, true
}

type errorResponse struct {
	Message string `json:"message"`
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Message: msg})
}
