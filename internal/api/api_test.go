// ABOUTME: Tests for the HTTP API using httptest against a memory store.
// ABOUTME: Covers the full create/list/delete flow, error mapping, and middleware.
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/biomarkers/internal/api"
	"github.com/harperreed/biomarkers/internal/models"
	"github.com/harperreed/biomarkers/internal/storage"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- test helpers -----------------------------------------------------------

var (
	newYork = time.FixedZone("UTC-5", -5*60*60)
	// fixedNow is 2024-06-10 22:00 in New York, already 2024-06-11 in UTC.
	fixedNow = time.Date(2024, 6, 11, 3, 0, 0, 0, time.UTC)
)

func newHandler(t *testing.T, repo storage.Repository) *api.Handler {
	t.Helper()
	if repo == nil {
		repo = storage.NewMemoryStore()
	}
	return api.New(repo,
		api.WithLocation(newYork),
		api.WithClock(func() time.Time { return fixedNow }),
		api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func entryBody(date string, v any, overrides map[string]any) string {
	fields := map[string]any{"date": date}
	for _, b := range models.AllBiomarkers {
		fields[string(b)] = v
	}
	for k, val := range overrides {
		if val == nil {
			delete(fields, k)
			continue
		}
		fields[k] = val
	}
	data, _ := json.Marshal(fields)
	return string(data)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func message(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), "body: %s", rr.Body.String())
	return resp.Message
}

// --- end to end ---------------------------------------------------------------

func TestEndToEnd(t *testing.T) {
	h := newHandler(t, nil)

	rr := do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-01", 5, nil))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, "2024-06-01", created["date"])
	assert.Equal(t, float64(5), created["mindSharpness"])

	rr = do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-01", 5, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "An entry already exists for this date", message(t, rr))

	rr = do(t, h, http.MethodGet, "/api/biomarkers", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rr = do(t, h, http.MethodDelete, "/api/biomarkers/1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/biomarkers", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

// --- POST /api/biomarkers -----------------------------------------------------

func TestCreateDuplicateAcrossTimeOfDay(t *testing.T) {
	h := newHandler(t, nil)

	rr := do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-05-01T00:00:00", 5, nil))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// 2024-05-02T03:30Z is 22:30 on 2024-05-01 in New York.
	rr = do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-05-02T03:30:00.000Z", 6, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, api.MsgDuplicateDate, message(t, rr))

	rr = do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-05-01T23:59:59", 7, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, api.MsgDuplicateDate, message(t, rr))
}

func TestCreateDifferentDays(t *testing.T) {
	h := newHandler(t, nil)

	for _, d := range []string{"2024-03-05", "2024-01-10", "2024-02-20"} {
		rr := do(t, h, http.MethodPost, "/api/biomarkers", entryBody(d, 5, nil))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := do(t, h, http.MethodGet, "/api/biomarkers", "")
	var list []struct {
		Date string `json:"date"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, "2024-01-10", list[0].Date)
	assert.Equal(t, "2024-02-20", list[1].Date)
	assert.Equal(t, "2024-03-05", list[2].Date)
}

func TestCreateTodayAndFuture(t *testing.T) {
	h := newHandler(t, nil)

	// Local today in New York is 2024-06-10 even though UTC is on the 11th.
	rr := do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-11", 5, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, models.FutureDateMessage, message(t, rr))

	rr = do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-10", 5, nil))
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing metric", body: entryBody("2024-06-01", 5, map[string]any{"gas": nil}), want: "gas is required"},
		{name: "out of range", body: entryBody("2024-06-01", 5, map[string]any{"stamina": 11}), want: "stamina must be between 1 and 10"},
		{name: "zero", body: entryBody("2024-06-01", 5, map[string]any{"sleep": 0}), want: "sleep must be between 1 and 10"},
		{name: "fractional", body: entryBody("2024-06-01", 5, map[string]any{"mood": 4.5}), want: "mood must be an integer"},
		{name: "missing date", body: entryBody("2024-06-01", 5, map[string]any{"date": nil}), want: "date is required"},
		{name: "invalid date", body: entryBody("yesterday", 5, nil), want: "Invalid date"},
		{name: "not json", body: "date=2024-06-01", want: "request body must be a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, nil)
			rr := do(t, h, http.MethodPost, "/api/biomarkers", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.want, message(t, rr))
		})
	}
}

func TestCreateEveryMetricBounds(t *testing.T) {
	for _, b := range models.AllBiomarkers {
		for _, bad := range []any{0, 11, 3.5, "7"} {
			h := newHandler(t, nil)
			rr := do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-01", 5, map[string]any{string(b): bad}))
			assert.Equal(t, http.StatusBadRequest, rr.Code, "%s=%v", b, bad)
		}
	}
}

// failingRepo returns err from every operation.
type failingRepo struct {
	storage.Repository
	err error
}

func (f failingRepo) List(context.Context) ([]*models.Entry, error) { return nil, f.err }
func (f failingRepo) Get(context.Context, int64) (*models.Entry, error) {
	return nil, f.err
}
func (f failingRepo) Create(context.Context, models.CalendarDay, models.Measurements) (*models.Entry, error) {
	return nil, f.err
}

func TestInternalErrors(t *testing.T) {
	h := newHandler(t, failingRepo{err: errors.New("disk on fire")})

	rr := do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-01", 5, nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, api.MsgInternal, message(t, rr))

	rr = do(t, h, http.MethodGet, "/api/biomarkers", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, api.MsgInternal, message(t, rr))
	assert.NotContains(t, rr.Body.String(), "disk on fire")
}

func TestWrappedDuplicateMapsTo400(t *testing.T) {
	h := newHandler(t, failingRepo{err: errors.Join(errors.New("tx"), storage.ErrDuplicateDate)})

	rr := do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-01", 5, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, api.MsgDuplicateDate, message(t, rr))
}

// --- DELETE / GET by id ---------------------------------------------------------

func TestDeleteErrors(t *testing.T) {
	h := newHandler(t, nil)

	rr := do(t, h, http.MethodDelete, "/api/biomarkers/abc", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, api.MsgInvalidID, message(t, rr))

	rr = do(t, h, http.MethodDelete, "/api/biomarkers/1.5", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, api.MsgInvalidID, message(t, rr))

	for _, id := range []string{"42", "0", "-1"} {
		rr = do(t, h, http.MethodDelete, "/api/biomarkers/"+id, "")
		require.Equal(t, http.StatusNotFound, rr.Code, "id %s", id)
		assert.Equal(t, api.MsgNotFound, message(t, rr), "id %s", id)
	}
}

func TestGetEntry(t *testing.T) {
	repo := storage.NewMemoryStore()
	e, err := repo.Create(context.Background(), models.MustParseDay("2024-06-01"), models.UniformMeasurements(3))
	require.NoError(t, err)
	h := newHandler(t, repo)

	rr := do(t, h, http.MethodGet, "/api/biomarkers/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, 3, got.Score(models.BiomarkerArticulation))

	rr = do(t, h, http.MethodGet, "/api/biomarkers/0", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/biomarkers/x1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/biomarkers/7", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetEntryByDate(t *testing.T) {
	repo := storage.NewMemoryStore()
	_, err := repo.Create(context.Background(), models.MustParseDay("2024-06-01"), models.UniformMeasurements(3))
	require.NoError(t, err)
	h := newHandler(t, repo)

	rr := do(t, h, http.MethodGet, "/api/biomarkers/date/2024-06-01", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"date":"2024-06-01"`)

	rr = do(t, h, http.MethodGet, "/api/biomarkers/date/2024-06-02", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/biomarkers/date/June", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, api.MsgInvalidDate, message(t, rr))
}

// --- series and names ---------------------------------------------------------

func TestSeries(t *testing.T) {
	repo := storage.NewMemoryStore()
	ctx := context.Background()
	_, err := repo.Create(ctx, models.MustParseDay("2024-02-02"), models.UniformMeasurements(8))
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.MustParseDay("2024-01-01"), models.UniformMeasurements(2))
	require.NoError(t, err)
	h := newHandler(t, repo)

	rr := do(t, h, http.MethodGet, "/api/biomarkers/series", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var series []models.Series
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &series))
	require.Len(t, series, 3)
	assert.Equal(t, models.BiomarkerSleep, series[0].Name)
	assert.Equal(t, models.BiomarkerMood, series[1].Name)
	assert.Equal(t, models.BiomarkerEnergy, series[2].Name)
	require.Len(t, series[0].Points, 2)
	assert.Equal(t, 2, series[0].Points[0].Value)
	assert.Equal(t, "2024-02-02", series[0].Points[1].Date.String())

	rr = do(t, h, http.MethodGet, "/api/biomarkers/series?names=gas,bloating", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &series))
	require.Len(t, series, 2)
	assert.Equal(t, "Bloating", series[1].Label)

	rr = do(t, h, http.MethodGet, "/api/biomarkers/series?names=weight", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNames(t *testing.T) {
	h := newHandler(t, nil)

	rr := do(t, h, http.MethodGet, "/api/biomarker-names", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var names []api.BiomarkerInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &names))
	require.Len(t, names, 14)
	assert.Equal(t, models.BiomarkerSleep, names[0].Name)
	assert.Equal(t, "Sex Drive", names[1].Label)
	assert.Equal(t, 10, names[13].Max)
}

// --- middleware, health and metrics -------------------------------------------

func TestRequestID(t *testing.T) {
	h := newHandler(t, nil)

	rr := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	_, err := uuid.Parse(rr.Header().Get(api.RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(api.RequestIDHeader, id)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, id, rr.Header().Get(api.RequestIDHeader))
}

func TestAccessLogIncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := api.New(storage.NewMemoryStore(), api.WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))

	rr := do(t, h, http.MethodGet, "/api/biomarkers", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line), buf.String())
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, rr.Header().Get(api.RequestIDHeader), line["request_id"])
	assert.Equal(t, "GET /api/biomarkers", line["route"])
	assert.Equal(t, float64(200), line["status"])
}

// panicRepo panics on List.
type panicRepo struct {
	storage.Repository
}

func (panicRepo) List(context.Context) ([]*models.Entry, error) { panic("boom") }

func TestRecoverer(t *testing.T) {
	h := newHandler(t, panicRepo{})

	rr := do(t, h, http.MethodGet, "/api/biomarkers", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, api.MsgInternal, message(t, rr))
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHandler(t, nil)
	rr := do(t, h, http.MethodPut, "/api/biomarkers", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMetrics(t *testing.T) {
	h := newHandler(t, nil)

	do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-01", 5, nil))
	do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-01", 5, nil))
	do(t, h, http.MethodPost, "/api/biomarkers", entryBody("2024-06-02", 0, nil))

	rr := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(rr.Body)
	require.NoError(t, err)

	require.Contains(t, families, "biomarkers_entries_created_total")
	assert.Equal(t, 1.0, families["biomarkers_entries_created_total"].GetMetric()[0].GetCounter().GetValue())

	rejected := map[string]float64{}
	for _, m := range families["biomarkers_entries_rejected_total"].GetMetric() {
		rejected[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, 1.0, rejected["duplicate"])
	assert.Equal(t, 1.0, rejected["invalid"])

	require.Contains(t, families, "biomarkers_entries")
	assert.Equal(t, 1.0, families["biomarkers_entries"].GetMetric()[0].GetGauge().GetValue())

	require.Contains(t, families, "biomarkers_http_requests_total")
	var posts float64
	for _, m := range families["biomarkers_http_requests_total"].GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "route" && l.GetValue() == "POST /api/biomarkers" {
				posts += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, posts)
	assert.Equal(t, uint64(1), h.Metrics().Created())
}
