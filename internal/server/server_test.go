package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/summitchronicles/internal/cache"
	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/claude/summitchronicles/internal/models"
	"github.com/claude/summitchronicles/internal/storage"
	"github.com/claude/summitchronicles/internal/weather"
)

const testKey = "test-key-123"

const planCSV = "Week,Monday,Tuesday,Wednesday,Thursday,Friday,Saturday,Sunday\n" +
	"1,\"running: Treadmill Hike Z2 30\ngo: 05:00; easy pace\",,,,,,\n" +
	"2,\"strength: Leg Day 45\n- Goblet squat 3x10\",,,,,,\n"

type memPlans struct {
	mu    sync.Mutex
	plans []*models.TrainingPlan
	down  bool
}

func (m *memPlans) ActivePlan(context.Context) (*models.TrainingPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.plans) == 0 {
		return nil, storage.ErrNoActivePlan
	}
	return m.plans[len(m.plans)-1], nil
}

func (m *memPlans) SavePlan(_ context.Context, p *models.TrainingPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = append(m.plans, p)
	return nil
}

func (m *memPlans) ListPlans(_ context.Context, limit int) ([]models.TrainingPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TrainingPlan
	for i := len(m.plans) - 1; i >= 0 && len(out) < limit; i-- {
		p := *m.plans[i]
		p.Content = nil
		out = append(out, p)
	}
	return out, nil
}

// Ping fails when down is set.
func (m *memPlans) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return fmt.Errorf("connection refused")
	}
	return nil
}

type memLogs struct {
	mu       sync.Mutex
	logs     []storage.ImportLog
	inserted []string
	updated  []string
}

func (m *memLogs) InsertImportLog(_ context.Context, l storage.ImportLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, l)
	m.inserted = append(m.inserted, l.Status)
	return l.ID, nil
}

func (m *memLogs) UpdateImportLog(_ context.Context, id int64, l storage.ImportLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.logs {
		if m.logs[i].ID == id {
			l.ID = id
			m.logs[i] = l
			m.updated = append(m.updated, l.Status)
			return nil
		}
	}
	return fmt.Errorf("import log %d not found", id)
}

func (m *memLogs) QueryImportLogs(_ context.Context, limit int) ([]storage.ImportLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.logs) < limit {
		limit = len(m.logs)
	}
	return append([]storage.ImportLog(nil), m.logs[:limit]...), nil
}

type testEnv struct {
	srv     *Server
	plans   *memPlans
	logs    *memLogs
	queries *cache.Queries
}

type envOptions struct {
	csv        string
	withDB     bool
	weatherURL string
}

func newTestEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	q := cache.NewQueries(cache.New(nil, cache.Options{}, log), log)

	cfg := schedule.LoaderConfig{CSVPath: filepath.Join(t.TempDir(), "missing.csv")}
	if o.csv != "" {
		cfg.CSVPath = filepath.Join(t.TempDir(), "plan.csv")
		if err := os.WriteFile(cfg.CSVPath, []byte(o.csv), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	env := &testEnv{queries: q}
	deps := Deps{
		Queries: q,
		APIKey:  testKey,
		Log:     log,
		Now:     func() time.Time { return schedule.DefaultWeek1Start.AddDate(0, 0, 8) },
	}
	if o.withDB {
		plans := &memPlans{}
		env.plans = plans
		env.logs = &memLogs{}
		deps.Plans = schedule.NewProvider(plans, schedule.Options{}, log)
		deps.Logs = env.logs
		deps.Catalog = plans
		deps.DB = plans
		deps.Loader = schedule.NewLoader(plans, q, cfg, log)
	} else {
		deps.Loader = schedule.NewLoader(nil, q, cfg, log)
	}
	if o.weatherURL != "" {
		api := cache.NewAPICache(q, nil, log)
		deps.Weather = weather.New(o.weatherURL, "", api, cache.Config{TTL: time.Minute})
	}
	env.srv = New(deps)
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// TestWorkoutsFromCSV verifies the envelope for a file-backed plan and that
// the current week follows the clock.
func TestWorkoutsFromCSV(t *testing.T) {
	env := newTestEnv(t, envOptions{csv: planCSV})
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/workouts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decode[workoutsResponse](t, rec)
	if !resp.Success || resp.Source != schedule.SourceCSV {
		t.Errorf("success = %v source = %q", resp.Success, resp.Source)
	}
	if len(resp.AllWeeks) != 2 || resp.CurrentWeek.Week != 2 {
		t.Errorf("weeks = %d current = %d, want 2 and 2", len(resp.AllWeeks), resp.CurrentWeek.Week)
	}
	mon := resp.AllWeeks[0].Workouts["Monday"][0]
	if mon.Title != "Treadmill Hike Z2" || mon.MainWork == nil || *mon.MainWork != 5 {
		t.Errorf("Monday = %+v", mon)
	}
}

// TestWorkoutsFallback verifies a missing plan still returns 200 with the
// placeholder week and success=false.
func TestWorkoutsFallback(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/workouts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[workoutsResponse](t, rec)
	if resp.Success || resp.Source != schedule.SourceFallback || resp.Error == "" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.CurrentWeek.Workouts) != 7 {
		t.Errorf("fallback days = %d, want 7", len(resp.CurrentWeek.Workouts))
	}
}

// TestWorkoutWeek verifies single-week lookup and its error statuses.
func TestWorkoutWeek(t *testing.T) {
	env := newTestEnv(t, envOptions{csv: planCSV})
	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/training/workouts/2", http.StatusOK},
		{"/api/v1/training/workouts/9", http.StatusNotFound},
		{"/api/v1/training/workouts/abc", http.StatusBadRequest},
		{"/api/v1/training/workouts/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/workouts/2", nil))
	if ws := decode[models.WeeklySchedule](t, rec); ws.Week != 2 || ws.StartDate != "2025-10-06" {
		t.Errorf("week = %d start = %s", ws.Week, ws.StartDate)
	}
}

// TestUploadPlanAuth verifies the upload route requires the API key.
func TestUploadPlanAuth(t *testing.T) {
	env := newTestEnv(t, envOptions{withDB: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/training/plans", strings.NewReader(planCSV))
	if rec := env.do(t, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/training/plans", strings.NewReader(planCSV))
	req.Header.Set("X-API-Key", "wrong")
	if rec := env.do(t, req); rec.Code != http.StatusForbidden {
		t.Errorf("bad key = %d, want 403", rec.Code)
	}
}

// TestUploadPlanActivates verifies an uploaded plan replaces the file plan,
// invalidates the cached schedule and is logged.
func TestUploadPlanActivates(t *testing.T) {
	env := newTestEnv(t, envOptions{csv: planCSV, withDB: true})

	// Prime the cache with the file plan.
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/workouts", nil))
	if resp := decode[workoutsResponse](t, rec); resp.Source != schedule.SourceCSV {
		t.Fatalf("source = %q, want csv", resp.Source)
	}

	upload := "Week,Mon,Tue,Wed,Thu,Fri,Sat,Sun\n5,running: Long Run 90,,,,,,\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/training/plans?filename=block2.csv", strings.NewReader(upload))
	req.Header.Set("X-API-Key", testKey)
	rec = env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/workouts", nil))
	resp := decode[workoutsResponse](t, rec)
	if resp.Source != schedule.SourceDatabase || len(resp.AllWeeks) != 1 || resp.AllWeeks[0].Week != 5 {
		t.Errorf("after upload: source = %q weeks = %+v", resp.Source, resp.AllWeeks)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/plans", nil))
	logs := decode[[]storage.ImportLog](t, rec)
	if len(logs) != 1 || logs[0].Status != "success" || logs[0].Filename != "block2.csv" || logs[0].PlanID == nil {
		t.Errorf("import logs = %+v", logs)
	}
}

// TestUploadPlanMultipart verifies the multipart form upload path.
func TestUploadPlanMultipart(t *testing.T) {
	env := newTestEnv(t, envOptions{withDB: true})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "base.csv")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(fw, planCSV)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/training/plans", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", testKey)
	rec := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Filename    string `json:"filename"`
		WeeksParsed int    `json:"weeks_parsed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Filename != "base.csv" || result.WeeksParsed != 2 {
		t.Errorf("result = %+v", result)
	}
}

// TestUploadEmptyPlan verifies a plan with no weeks is a client error and
// the failure is logged.
func TestUploadEmptyPlan(t *testing.T) {
	env := newTestEnv(t, envOptions{withDB: true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/training/plans", strings.NewReader("Week,Mon\n"))
	req.Header.Set("X-API-Key", testKey)
	if rec := env.do(t, req); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(env.logs.logs) != 1 || env.logs.logs[0].Status != "error" {
		t.Errorf("logs = %+v", env.logs.logs)
	}
}

// TestUploadImportLogLifecycle verifies an upload writes a running row and
// then updates that same row with the outcome.
func TestUploadImportLogLifecycle(t *testing.T) {
	env := newTestEnv(t, envOptions{withDB: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/training/plans?filename=base.csv", strings.NewReader(planCSV))
	req.Header.Set("X-API-Key", testKey)
	if rec := env.do(t, req); rec.Code != http.StatusOK {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}
	req = httptest.NewRequest(http.MethodPost, "/api/v1/training/plans?filename=empty.csv", strings.NewReader("Week,Mon\n"))
	req.Header.Set("X-API-Key", testKey)
	if rec := env.do(t, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty upload = %d, want 400", rec.Code)
	}

	if got := strings.Join(env.logs.inserted, ","); got != "running,running" {
		t.Errorf("inserted statuses = %s, want running,running", got)
	}
	if got := strings.Join(env.logs.updated, ","); got != "success,error" {
		t.Errorf("updated statuses = %s, want success,error", got)
	}
	if len(env.logs.logs) != 2 {
		t.Fatalf("rows = %d, want 2", len(env.logs.logs))
	}
	ok, failed := env.logs.logs[0], env.logs.logs[1]
	if ok.ID != 1 || ok.Filename != "base.csv" || ok.WeeksParsed != 2 || ok.DurationMs == nil || ok.PlanID == nil {
		t.Errorf("success row = %+v", ok)
	}
	if failed.ID != 2 || failed.ErrorMessage == nil || failed.PlanID != nil {
		t.Errorf("error row = %+v", failed)
	}
}

// TestUploadWithoutDatabase verifies uploads are refused when no database is configured.
func TestUploadWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/training/plans", strings.NewReader(planCSV))
	req.Header.Set("X-API-Key", testKey)
	if rec := env.do(t, req); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/plans", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("import logs = %d %q", rec.Code, rec.Body.String())
	}
}

// TestInvalidateCache verifies the admin route drops entries by prefix.
func TestInvalidateCache(t *testing.T) {
	env := newTestEnv(t, envOptions{csv: planCSV})
	env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/workouts", nil))
	if env.queries.Cache().Len() != 1 {
		t.Fatalf("cache len = %d, want 1", env.queries.Cache().Len())
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cache?prefix=schedule:", nil)
	if rec := env.do(t, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key = %d, want 401", rec.Code)
	}
	req.Header.Set("X-API-Key", testKey)
	if rec := env.do(t, req); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if env.queries.Cache().Len() != 0 {
		t.Errorf("cache len = %d, want 0", env.queries.Cache().Len())
	}
}

// TestWeather verifies lookups pass through upstream JSON and map errors.
func TestWeather(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") == "10.0000" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"current":{"temperature_2m":3.5}}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, envOptions{weatherURL: upstream.URL})
	tests := []struct {
		query string
		want  int
	}{
		{"lat=45.83&lon=6.86", http.StatusOK},
		{"lat=10&lon=6.86", http.StatusBadGateway},
		{"lat=abc&lon=1", http.StatusBadRequest},
		{"lat=95&lon=1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather?"+tt.query, nil))
		if rec.Code != tt.want {
			t.Errorf("weather?%s = %d, want %d", tt.query, rec.Code, tt.want)
		}
		if tt.want == http.StatusOK && !strings.Contains(rec.Body.String(), "temperature_2m") {
			t.Errorf("body = %q", rec.Body.String())
		}
	}
}

// TestWeatherConditions verifies the decoded conditions endpoint and that
// it maps upstream failures like the raw one.
func TestWeatherConditions(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") == "10.0000" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"current":{"temperature_2m":-7.25,"wind_gusts_10m":80,"weather_code":75}}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, envOptions{weatherURL: upstream.URL})
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather/conditions?lat=45.83&lon=6.86", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	cond := decode[weather.Conditions](t, rec)
	if cond.Temperature != -7.25 || cond.WindGusts != 80 || cond.WeatherCode != 75 {
		t.Errorf("conditions = %+v", cond)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather/conditions?lat=10&lon=6.86", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("upstream failure status = %d, want 502", rec.Code)
	}
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather/conditions?lat=1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing lon status = %d, want 400", rec.Code)
	}
}

// TestWeatherDisabled verifies 503 when no weather client is configured.
func TestWeatherDisabled(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/weather?lat=1&lon=1", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// TestCORSPreflight verifies OPTIONS short-circuits with CORS headers.
func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, httptest.NewRequest(http.MethodOptions, "/api/v1/cache", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Errorf("allow methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

// TestStoredPlans verifies uploaded plans are listed newest first without
// their content, and that the list is empty without a database.
func TestStoredPlans(t *testing.T) {
	env := newTestEnv(t, envOptions{withDB: true})
	for _, name := range []string{"base.csv", "peak.csv"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/training/plans?filename="+name, strings.NewReader(planCSV))
		req.Header.Set("X-API-Key", testKey)
		if rec := env.do(t, req); rec.Code != http.StatusOK {
			t.Fatalf("upload %s = %d", name, rec.Code)
		}
	}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/plans/stored", nil))
	plans := decode[[]models.TrainingPlan](t, rec)
	if len(plans) != 2 || plans[0].Filename != "peak.csv" {
		t.Errorf("plans = %+v", plans)
	}

	bare := newTestEnv(t, envOptions{})
	rec = bare.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training/plans/stored", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("without database = %s, want []", body)
	}
}

// TestHealth verifies the database state is reported and an unreachable
// database turns the check into a 503.
func TestHealth(t *testing.T) {
	bare := newTestEnv(t, envOptions{})
	rec := bare.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if got := decode[map[string]any](t, rec); rec.Code != http.StatusOK || got["database"] != "disabled" {
		t.Errorf("no db: %d %v", rec.Code, got)
	}

	env := newTestEnv(t, envOptions{withDB: true})
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if got := decode[map[string]any](t, rec); rec.Code != http.StatusOK || got["database"] != "ok" {
		t.Errorf("db up: %d %v", rec.Code, got)
	}

	env.plans.mu.Lock()
	env.plans.down = true
	env.plans.mu.Unlock()
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if got := decode[map[string]any](t, rec); rec.Code != http.StatusServiceUnavailable || got["status"] != "degraded" {
		t.Errorf("db down: %d %v", rec.Code, got)
	}
}
