package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/fitsync/internal/application"
	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeReauthRequired tells the client the user has to authorize again.
func writeReauthRequired(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: message, Reauthorize: true})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error       string `json:"error"`
	Reauthorize bool   `json:"reauthorize,omitempty"`
}

// RecordResponse is the JSON representation of a daily record. Every metric
// is present; metrics without a value are null.
type RecordResponse struct {
	UserID    string                 `json:"user_id"`
	Day       string                 `json:"day"`
	Metrics   map[string]model.Value `json:"metrics"`
	UpdatedAt string                 `json:"updated_at,omitempty"`
}

// SyncResponse is the JSON representation of one fetch run.
type SyncResponse struct {
	Record      RecordResponse              `json:"record"`
	Observed    int                         `json:"observed"`
	Failures    []application.MetricFailure `json:"failures"`
	Reauthorize bool                        `json:"reauthorize"`
}

// BackfillResponse reports the outcome of a backfill run.
type BackfillResponse struct {
	UserID    string `json:"user_id"`
	Days      int    `json:"days"`
	Populated int    `json:"populated"`
}

// AuthStartResponse carries the consent URL the user must visit.
type AuthStartResponse struct {
	AuthURL string `json:"auth_url"`
}

// AuthCallbackResponse confirms a completed authorization.
type AuthCallbackResponse struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toRecordResponse(r model.DailyRecord) RecordResponse {
	metrics := make(map[string]model.Value, len(model.AllMetrics))
	for _, m := range model.AllMetrics {
		metrics[string(m)] = r.Get(m)
	}

	resp := RecordResponse{
		UserID:  r.UserID,
		Day:     r.DayKey(),
		Metrics: metrics,
	}
	if !r.UpdatedAt.IsZero() {
		resp.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toSyncResponse(result application.SyncResult) SyncResponse {
	failures := result.Failures
	if failures == nil {
		failures = []application.MetricFailure{}
	}
	return SyncResponse{
		Record:      toRecordResponse(result.Record),
		Observed:    result.Observed,
		Failures:    failures,
		Reauthorize: result.NeedsReauthorization(),
	}
}
