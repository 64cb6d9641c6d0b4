package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/sitehealth/report"
	"github.com/jonwraymond/sitehealth/store"
)

func serve(t *testing.T, reports Reports, wrap func(http.Handler) http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	RegisterHandlers(mux, reports, wrap)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func savedStore(t *testing.T, scores ...int) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Dir: filepath.Join(t.TempDir(), "reports")})
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range scores {
		r := &report.Report{RunID: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Hour), OverallScore: score}
		if _, err := s.Save(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestLivenessHandler(t *testing.T) {
	rec := serve(t, savedStore(t), nil, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Body = %v, want 'OK'", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %v, want 'text/plain'", rec.Header().Get("Content-Type"))
	}
}

func TestReadinessHandler(t *testing.T) {
	rec := serve(t, savedStore(t), nil, "/readyz")
	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != "NO REPORT" {
		t.Errorf("empty store: %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(t, savedStore(t, 70), nil, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
}

type brokenReports struct{}

func (brokenReports) LatestBytes() ([]byte, error) { return nil, errors.New("disk on fire") }
func (brokenReports) List() ([]store.Entry, error) { return nil, errors.New("disk on fire") }
func (brokenReports) Get(string) (*report.Report, error) {
	return nil, errors.New("disk on fire")
}

func TestReadinessHandler_StoreError(t *testing.T) {
	rec := serve(t, brokenReports{}, nil, "/readyz")
	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != "UNAVAILABLE" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestLatestHandler(t *testing.T) {
	s := savedStore(t, 40, 80)
	rec := serve(t, s, nil, "/report/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	want, _ := s.LatestBytes()
	if rec.Body.String() != string(want) {
		t.Error("body differs from the stored report")
	}
	r, err := report.Unmarshal(rec.Body.Bytes())
	if err != nil || r.OverallScore != 80 {
		t.Errorf("latest = %v, %v", r, err)
	}
}

func TestLatestHandler_NoReport(t *testing.T) {
	rec := serve(t, savedStore(t), nil, "/report/latest")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
	if rec := serve(t, brokenReports{}, nil, "/report/latest"); rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rec.Code)
	}
}

func TestHistoryHandler(t *testing.T) {
	s := savedStore(t, 40, 60, 50)

	rec := serve(t, s, nil, "/report/history")
	var h store.History
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(h.Entries) != 3 || h.Entries[0].Score != 50 || h.Trend != store.TrendDeclining {
		t.Errorf("history = %+v", h)
	}

	rec = serve(t, s, nil, "/report/history?limit=1")
	h = store.History{}
	_ = json.Unmarshal(rec.Body.Bytes(), &h)
	if len(h.Entries) != 1 || h.Trend != store.TrendFirstRun {
		t.Errorf("limited history = %+v", h)
	}

	if rec := serve(t, s, nil, "/report/history?limit=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestReportHandler(t *testing.T) {
	s := savedStore(t, 40, 80)

	rec := serve(t, s, nil, "/report/a")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	r, err := report.Unmarshal(rec.Body.Bytes())
	if err != nil || r.RunID != "a" || r.OverallScore != 40 {
		t.Errorf("report = %+v, %v", r, err)
	}

	if rec := serve(t, s, nil, "/report/zzz"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run Status = %d, want 404", rec.Code)
	}
	if rec := serve(t, brokenReports{}, nil, "/report/a"); rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rec.Code)
	}
	// Literal routes still win over the run id pattern.
	if rec := serve(t, s, nil, "/report/latest"); rec.Code != http.StatusOK {
		t.Errorf("latest Status = %d", rec.Code)
	}
}

func TestRegisterHandlers_Wrap(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	s := savedStore(t, 10)
	if rec := serve(t, s, deny, "/report/latest"); rec.Code != http.StatusUnauthorized {
		t.Errorf("latest Status = %d, want 401", rec.Code)
	}
	if rec := serve(t, s, deny, "/report/a"); rec.Code != http.StatusUnauthorized {
		t.Errorf("report Status = %d, want 401", rec.Code)
	}
	if rec := serve(t, s, deny, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz Status = %d, want 200 without auth", rec.Code)
	}
}
