package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jonwraymond/sitehealth/report"
	"github.com/jonwraymond/sitehealth/store"
)

// Reports is the read side of the report store.
type Reports interface {
	LatestBytes() ([]byte, error)
	List() ([]store.Entry, error)
	Get(runID string) (*report.Report, error)
}

var _ Reports = (*store.Store)(nil)

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the service is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler reports ready once a report has been stored.
func ReadinessHandler(reports Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if _, err := reports.LatestBytes(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if errors.Is(err, store.ErrNoLatest) || errors.Is(err, store.ErrNotFound) {
				_, _ = w.Write([]byte("NO REPORT"))
				return
			}
			_, _ = w.Write([]byte("UNAVAILABLE"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// LatestHandler serves the latest report exactly as stored.
func LatestHandler(reports Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := reports.LatestBytes()
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// ReportHandler serves the stored report whose run id is the "id" path
// value.
func ReportHandler(reports Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := reports.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		data, err := report.Marshal(rep)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// HistoryHandler serves the stored runs, newest first. The optional
// "limit" query parameter bounds the list.
func HistoryHandler(reports Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := reports.List()
		if err != nil {
			writeError(w, err)
			return
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			if n < len(entries) {
				entries = entries[:n]
			}
		}
		writeJSON(w, http.StatusOK, store.Summarize(entries))
	}
}

// RegisterHandlers registers all handlers on the given mux. Wrap is applied
// to the report endpoints, for authentication; nil leaves them open.
func RegisterHandlers(mux *http.ServeMux, reports Reports, wrap func(http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(h http.Handler) http.Handler { return h }
	}
	mux.HandleFunc("GET /healthz", LivenessHandler())
	mux.HandleFunc("GET /readyz", ReadinessHandler(reports))
	mux.Handle("GET /report/latest", wrap(LatestHandler(reports)))
	mux.Handle("GET /report/history", wrap(HistoryHandler(reports)))
	mux.Handle("GET /report/{id}", wrap(ReportHandler(reports)))
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNoLatest) || errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
