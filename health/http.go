package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Report is the JSON body of the detailed endpoints.
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckReport `json:"checks,omitempty"`
}

// CheckReport is one component in a Report.
type CheckReport struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func reportFor(r Result) CheckReport {
	cr := CheckReport{
		Status:   r.Status,
		Message:  r.Message,
		Duration: r.Duration.String(),
		Details:  r.Details,
	}
	if r.Error != nil {
		cr.Error = r.Error.Error()
	}
	return cr
}

func statusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Mount registers the probe endpoints on r:
//
//	GET /healthz        liveness, always 200
//	GET /readyz         readiness, 503 only when a component is unhealthy
//	GET /health         JSON report of every component
//	GET /health/{name}  JSON report of one component
func Mount(r chi.Router, agg *Aggregator) {
	r.Get("/healthz", LivenessHandler())
	r.Get("/readyz", ReadinessHandler(agg))
	r.Get("/health", DetailedHandler(agg))
	r.Get("/health/{name}", SingleCheckHandler(agg))
}

// LivenessHandler reports that the process is serving.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler runs every check and answers with the overall status.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := Overall(agg.CheckAll(r.Context()))
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(statusCode(status))
		_, _ = w.Write([]byte(status.String()))
	}
}

// DetailedHandler renders a Report of every component.
func DetailedHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := agg.CheckAll(r.Context())
		rep := Report{
			Status:    Overall(results),
			Timestamp: time.Now().UTC(),
			Checks:    make(map[string]CheckReport, len(results)),
		}
		for name, res := range results {
			rep.Checks[name] = reportFor(res)
		}
		writeJSON(w, statusCode(rep.Status), rep)
	}
}

// SingleCheckHandler renders the component named by the {name} URL parameter.
func SingleCheckHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := agg.Check(r.Context(), chi.URLParam(r, "name"))
		if errors.Is(err, ErrCheckerNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, statusCode(res.Status), reportFor(res))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
