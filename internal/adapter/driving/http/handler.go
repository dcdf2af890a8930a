// Package httphandler is the JSON API driving adapter.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ericfisherdev/fitsync/internal/application"
	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

const (
	defaultBackfillDays = 7
	maxBackfillDays     = 90
	defaultRecordDays   = 7
	maxRecordDays       = 366
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	syncSvc *application.SyncService
	authSvc *application.AuthService
	records driven.DailyRecordStore
	db      Pinger
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	syncSvc *application.SyncService,
	authSvc *application.AuthService,
	records driven.DailyRecordStore,
	db Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		syncSvc: syncSvc,
		authSvc: authSvc,
		records: records,
		db:      db,
		logger:  logger,
	}
}

// NewRouter creates an http.Handler with all routes registered and wrapped
// with request id, logging and recovery middleware.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery innermost so panics are caught before logging.
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/sync", h.SyncAll)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/sync", h.SyncUser)
			r.Post("/backfill", h.Backfill)
			r.Get("/records", h.ListRecords)
			r.Delete("/credentials", h.Disconnect)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Get("/start", h.AuthStart)
			r.Get("/callback", h.AuthCallback)
		})
	})

	return r
}

// SyncUser fetches every metric for one user and day and returns the merged
// record. The day defaults to today.
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	window := h.syncSvc.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		day, err := time.ParseInLocation(model.DayLayout, v, h.syncSvc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
			return
		}
		window = h.syncSvc.DayWindow(day)
	}

	result, err := h.syncSvc.FetchAll(r.Context(), userID, window)
	if err != nil {
		if model.RequiresReauthorization(err) {
			writeReauthRequired(w, "authorization required")
			return
		}
		h.logger.Error("failed to sync user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSyncResponse(result))
}

// Backfill fetches up to the requested number of past days that have no
// stored record yet.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	days := defaultBackfillDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxBackfillDays {
			writeError(w, http.StatusBadRequest, "invalid days: expected 1-"+strconv.Itoa(maxBackfillDays))
			return
		}
		days = n
	}

	populated, err := h.syncSvc.Backfill(r.Context(), userID, days)
	if err != nil {
		if model.RequiresReauthorization(err) {
			writeReauthRequired(w, "authorization required")
			return
		}
		h.logger.Error("failed to backfill user", "user_id", userID, "days", days, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, BackfillResponse{UserID: userID, Days: days, Populated: populated})
}

// ListRecords returns the stored records for a user between from and to,
// inclusive. The range defaults to the last seven days.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	loc := h.syncSvc.Location()

	to := h.syncSvc.Today().Start
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.ParseInLocation(model.DayLayout, v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: expected YYYY-MM-DD")
			return
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -(defaultRecordDays - 1))
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.ParseInLocation(model.DayLayout, v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: expected YYYY-MM-DD")
			return
		}
		from = parsed
	}

	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}
	if from.AddDate(0, 0, maxRecordDays).Before(to) {
		writeError(w, http.StatusBadRequest, "range too large")
		return
	}

	records, err := h.records.ListRange(r.Context(), userID, from, to)
	if err != nil {
		h.logger.Error("failed to list records", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toRecordResponse(rec.WithDefaults()))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Disconnect removes the stored credential pair for a user.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.authSvc.Disconnect(r.Context(), userID); err != nil {
		h.logger.Error("failed to disconnect user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncAll triggers an immediate sync of every connected user.
func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	if err := h.syncSvc.SyncNow(r.Context()); err != nil {
		h.logger.Error("manual sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

// AuthStart begins the authorization handshake for a user.
func (h *Handler) AuthStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.authSvc.Begin(r.URL.Query().Get("user_id"))
	if err != nil {
		if errors.Is(err, application.ErrMissingUserID) {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		h.logger.Error("failed to start authorization", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, AuthStartResponse{AuthURL: authURL})
}

// AuthCallback completes the authorization handshake.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if reason := q.Get("error"); reason != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+reason)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	userID, err := h.authSvc.Complete(r.Context(), q.Get("state"), code)
	if err != nil {
		if errors.Is(err, application.ErrUnknownAuthState) {
			writeError(w, http.StatusBadRequest, "unknown or expired state")
			return
		}
		h.logger.Error("failed to complete authorization", "error", err)
		writeError(w, http.StatusBadGateway, "authorization exchange failed")
		return
	}

	writeJSON(w, http.StatusOK, AuthCallbackResponse{UserID: userID, Status: "connected"})
}

// Health reports whether the service and its database are reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, HealthResponse{
		Status: status,
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
