package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/sweep"
)

// memoryRepo is an in-memory Repository for handler tests.
type memoryRepo struct {
	mu     sync.Mutex
	sweeps map[string]*domain.Sweep
	alerts []*domain.Alert
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sweeps: make(map[string]*domain.Sweep)}
}

func (r *memoryRepo) SaveSweep(_ context.Context, tenantID string, sweep *domain.Sweep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := *sweep
	s.TenantID = tenantID
	r.sweeps[tenantID+"/"+sweep.ID] = &s
	return nil
}

func (r *memoryRepo) GetSweep(_ context.Context, tenantID string, sweepID string) (*domain.Sweep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sweeps[tenantID+"/"+sweepID]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepo) ListSweeps(_ context.Context, tenantID string, _ int) ([]*domain.Sweep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Sweep
	for _, s := range r.sweeps {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveAlert(_ context.Context, tenantID string, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := *alert
	a.TenantID = tenantID
	r.alerts = append(r.alerts, &a)
	return nil
}

func (r *memoryRepo) ListAlerts(_ context.Context, tenantID string, _ int) ([]*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Alert
	for _, a := range r.alerts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) Ping(context.Context) error { return nil }
func (r *memoryRepo) Close() error               { return nil }

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sweeps)
}

// testForest splits on the Amount feature: cheap rows score 1, expensive
// rows score 90.
func testForest() *model.Forest {
	return &model.Forest{
		FeatureNames: domain.CanonicalFeatures(),
		Trees: []model.Tree{{
			Feature:   []int{29, -1, -1},
			Threshold: []float64{50, 0, 0},
			Left:      []int{1, -1, -1},
			Right:     []int{2, -1, -1},
			Prob:      []float64{0, 0.01, 0.9},
		}},
	}
}

func newTestServer(t *testing.T, rateLimit int) (*Server, *memoryRepo) {
	t.Helper()

	forest := testForest()
	svc, err := sweep.NewService(forest, report.NewFormatter(report.BoundaryExplainer{}), 5)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	repo := newMemoryRepo()
	scoring := domain.ScoringConfig{
		Threshold:       5,
		AlertScore:      80,
		RateLimitPerMin: rateLimit,
		SummaryCacheTTL: 300,
	}
	srv := NewServer(
		domain.ServerConfig{MaxUploadBytes: 1 << 20},
		scoring,
		svc, repo,
		cache.NewLRUCache(100),
		bus.NewChannelBus(10),
		forest,
		"test",
	)
	return srv, repo
}

const retailCSV = "merchant,category,amt,unix_time\nAcme Corp,grocery_pos,2000,1700000000\nGlobex,travel,12,1700000060\n"

func postSweep(t *testing.T, srv *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sweep", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestSweepEndpoint(t *testing.T) {
	srv, repo := newTestServer(t, 0)

	rec := postSweep(t, srv, retailCSV, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var summary domain.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}

	if summary.TotalScanned != 2 || summary.FoundCount != 1 {
		t.Errorf("expected 2 scanned / 1 found, got %d / %d", summary.TotalScanned, summary.FoundCount)
	}
	if summary.TotalExposure != 2000 {
		t.Errorf("expected exposure 2000, got %v", summary.TotalExposure)
	}
	if len(summary.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(summary.Anomalies))
	}
	a := summary.Anomalies[0]
	if a.ID != "Acme Corp" || a.Amount != "$2,000.00" || a.Score != 90 || a.Artifact != "GROCERY_POS" {
		t.Errorf("unexpected anomaly: %+v", a)
	}

	if rec.Header().Get("X-Sweep-ID") == "" {
		t.Error("expected X-Sweep-ID header")
	}
	if repo.count() != 1 {
		t.Errorf("expected sweep persisted, have %d", repo.count())
	}
}

func TestSweepMultipartUpload(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "batch.csv")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write([]byte(retailCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/sweep", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var summary domain.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if summary.FoundCount != 1 {
		t.Errorf("expected 1 found, got %d", summary.FoundCount)
	}
}

func TestSweepEmptyUpload(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := postSweep(t, srv, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty upload, got %d", rec.Code)
	}
}

func TestSweepEmptyBatchSerializesAnomaliesArray(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := postSweep(t, srv, "merchant,amt\n", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"anomalies":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestSweepCacheHit(t *testing.T) {
	srv, repo := newTestServer(t, 0)

	first := postSweep(t, srv, retailCSV, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	if first.Header().Get("X-Cache") == "HIT" {
		t.Fatal("first request must not be a cache hit")
	}

	second := postSweep(t, srv, retailCSV, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", second.Code)
	}
	if second.Header().Get("X-Cache") != "HIT" {
		t.Error("expected cache hit for identical upload")
	}
	if second.Body.String() != first.Body.String() {
		t.Error("cached summary must match the original response")
	}
	if repo.count() != 1 {
		t.Errorf("cache hit must not persist a new sweep, have %d", repo.count())
	}
}

func TestSweepRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	// Distinct bodies so the summary cache does not satisfy the request
	// before the limiter sees it.
	bodies := []string{
		"merchant,amt\nA,1\n",
		"merchant,amt\nB,2\n",
		"merchant,amt\nC,3\n",
	}

	for i, body := range bodies[:2] {
		if rec := postSweep(t, srv, body, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := postSweep(t, srv, bodies[2], nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Other tenants are not affected.
	other := postSweep(t, srv, bodies[0], map[string]string{TenantIDHeader: "tenant-b"})
	if other.Code != http.StatusOK {
		t.Errorf("expected other tenant unaffected, got %d", other.Code)
	}
}

func TestGetSweep(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := postSweep(t, srv, retailCSV, nil)
	sweepID := rec.Header().Get("X-Sweep-ID")
	if sweepID == "" {
		t.Fatal("expected X-Sweep-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/sweeps/"+sweepID, nil)
	got := httptest.NewRecorder()
	srv.Router().ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", got.Code)
	}

	var record domain.Sweep
	if err := json.Unmarshal(got.Body.Bytes(), &record); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if record.ID != sweepID || record.Summary.FoundCount != 1 {
		t.Errorf("unexpected sweep record: %+v", record)
	}

	// Other tenants cannot see it.
	req = httptest.NewRequest(http.MethodGet, "/sweeps/"+sweepID, nil)
	req.Header.Set(TenantIDHeader, "tenant-b")
	isolated := httptest.NewRecorder()
	srv.Router().ServeHTTP(isolated, req)
	if isolated.Code != http.StatusNotFound {
		t.Errorf("expected 404 for other tenant, got %d", isolated.Code)
	}
}

func TestListAlertsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"alerts":[]`) {
		t.Errorf("expected empty alerts array, got %s", rec.Body.String())
	}
}

func TestModelInfo(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/model", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var info struct {
		Features  int `json:"features"`
		Trees     int `json:"trees"`
		Threshold int `json:"threshold"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if info.Features != 30 || info.Trees != 1 || info.Threshold != 5 {
		t.Errorf("unexpected model info: %+v", info)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("expected healthy status, got %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/sweep", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected open CORS policy, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
