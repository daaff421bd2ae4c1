package monitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// TargetResponse is the JSON shape for a single target's status.
type TargetResponse struct {
	TargetID             string `json:"target_id"`
	Status               string `json:"status"`
	Message              string `json:"message,omitempty"`
	ResponseTime         string `json:"response_time,omitempty"`
	LastCheck            string `json:"last_check,omitempty"`
	LastHealthy          string `json:"last_healthy,omitempty"`
	ConsecutiveFailures  int    `json:"consecutive_failures"`
	ConsecutiveSuccesses int    `json:"consecutive_successes"`
	BreakerState         string `json:"breaker_state"`
}

// BucketResponse is the JSON shape for one aggregated metric bucket.
type BucketResponse struct {
	Metric      string  `json:"metric"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	Avg         float64 `json:"avg"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	SampleCount int64   `json:"sample_count"`
}

// IncidentResponse is the JSON shape for a cascade incident.
type IncidentResponse struct {
	ID         string   `json:"id"`
	RootCause  string   `json:"root_cause"`
	Affected   []string `json:"affected"`
	Severity   string   `json:"severity"`
	UserImpact string   `json:"user_impact"`
	DetectedAt string   `json:"detected_at"`
	StartedAt  string   `json:"started_at"`
	UpdatedAt  string   `json:"updated_at"`
	Resolution string   `json:"resolution"`
}

// LivenessHandler returns an HTTP handler for liveness probes of the
// monitor process itself.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// TargetsHandler returns an HTTP handler listing every target's status.
func TargetsHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := m.Statuses(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		out := make([]TargetResponse, 0, len(views))
		for _, view := range views {
			out = append(out, targetResponse(view))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// TargetHandler returns an HTTP handler for a single target's status.
// The route must carry an {id} path value.
func TargetHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := m.StatusOf(r.Context(), r.PathValue("id"))
		if errors.Is(err, ErrNotRegistered) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, targetResponse(view))
	}
}

// MetricsHandler returns an HTTP handler for aggregated metric buckets.
// Query parameters: target (required), metric (required), hours
// (trailing window, default 24).
func MetricsHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID := r.URL.Query().Get("target")
		metric := r.URL.Query().Get("metric")
		if targetID == "" || metric == "" {
			writeError(w, http.StatusBadRequest, errors.New("monitor: target and metric are required"))
			return
		}

		hours := 24
		if raw := r.URL.Query().Get("hours"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, errors.New("monitor: hours must be a positive integer"))
				return
			}
			hours = parsed
		}

		to := time.Now().UTC()
		from := to.Add(-time.Duration(hours) * time.Hour)
		buckets, err := m.Buckets(r.Context(), targetID, metric, from, to)
		if errors.Is(err, ErrNotRegistered) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		out := make([]BucketResponse, 0, len(buckets))
		for _, b := range buckets {
			out = append(out, BucketResponse{
				Metric:      b.Metric,
				PeriodStart: b.PeriodStart.Format(time.RFC3339),
				PeriodEnd:   b.PeriodEnd.Format(time.RFC3339),
				Avg:         b.Avg,
				Min:         b.Min,
				Max:         b.Max,
				SampleCount: b.SampleCount,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// IncidentsHandler returns an HTTP handler listing open cascade incidents.
func IncidentsHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidents, err := m.OpenIncidents(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		out := make([]IncidentResponse, 0, len(incidents))
		for _, incident := range incidents {
			out = append(out, IncidentResponse{
				ID:         incident.ID.String(),
				RootCause:  incident.RootCause,
				Affected:   incident.Affected,
				Severity:   string(incident.Severity),
				UserImpact: string(incident.UserImpact),
				DetectedAt: incident.DetectedAt.Format(time.RFC3339),
				StartedAt:  incident.StartedAt.Format(time.RFC3339),
				UpdatedAt:  incident.UpdatedAt.Format(time.RFC3339),
				Resolution: string(incident.Resolution),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// NewMux returns a ServeMux with all monitor routes registered.
func NewMux(m *Monitor) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", LivenessHandler())
	mux.HandleFunc("GET /monitor/targets", TargetsHandler(m))
	mux.HandleFunc("GET /monitor/targets/{id}", TargetHandler(m))
	mux.HandleFunc("GET /monitor/metrics", MetricsHandler(m))
	mux.HandleFunc("GET /monitor/incidents", IncidentsHandler(m))
	return mux
}

func targetResponse(view TargetView) TargetResponse {
	resp := TargetResponse{
		TargetID:             view.Status.TargetID,
		Status:               view.Status.Status.String(),
		Message:              view.Status.Message,
		ConsecutiveFailures:  view.Status.ConsecutiveFailures,
		ConsecutiveSuccesses: view.Status.ConsecutiveSuccesses,
		BreakerState:         view.Breaker.State.String(),
	}
	if view.Status.ResponseTime > 0 {
		resp.ResponseTime = view.Status.ResponseTime.String()
	}
	if !view.Status.LastCheck.IsZero() {
		resp.LastCheck = view.Status.LastCheck.Format(time.RFC3339)
	}
	if !view.Status.LastHealthy.IsZero() {
		resp.LastHealthy = view.Status.LastHealthy.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
