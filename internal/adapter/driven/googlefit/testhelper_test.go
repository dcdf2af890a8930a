package googlefit_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitsync/internal/adapter/driven/googlefit"
	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

const testUser = "user-1"

// memCredentialStore is an in-memory driven.CredentialStore.
type memCredentialStore struct {
	mu    sync.Mutex
	pairs map[string]model.CredentialPair
	sets  int
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{pairs: make(map[string]model.CredentialPair)}
}

func (m *memCredentialStore) Get(_ context.Context, userID string) (*model.CredentialPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair, ok := m.pairs[userID]
	if !ok {
		return nil, nil
	}
	return &pair, nil
}

func (m *memCredentialStore) Set(_ context.Context, userID, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair := m.pairs[userID]
	pair.UserID = userID
	pair.AccessToken = access
	if refresh != "" {
		pair.RefreshToken = refresh
	}
	pair.UpdatedAt = time.Now()
	m.pairs[userID] = pair
	m.sets++
	return nil
}

func (m *memCredentialStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pairs, userID)
	return nil
}

func (m *memCredentialStore) ListUserIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.pairs))
	for id := range m.pairs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memCredentialStore) pair(userID string) model.CredentialPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs[userID]
}

// fakeProvider serves the API under test and the token endpoint from one
// httptest server. api and token are swapped per test.
type fakeProvider struct {
	server *httptest.Server

	api   http.HandlerFunc
	token http.HandlerFunc

	apiCalls   atomic.Int32
	tokenCalls atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{}
	fp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			fp.tokenCalls.Add(1)
			if fp.token == nil {
				http.Error(w, "no token handler", http.StatusInternalServerError)
				return
			}
			fp.token(w, r)
			return
		}
		fp.apiCalls.Add(1)
		if fp.api == nil {
			http.NotFound(w, r)
			return
		}
		fp.api(w, r)
	}))
	t.Cleanup(fp.server.Close)
	return fp
}

// testEnv bundles a Client wired against a fakeProvider.
type testEnv struct {
	provider  *fakeProvider
	creds     *memCredentialStore
	refresher *googlefit.Refresher
	exec      *googlefit.Executor
	client    *googlefit.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fp := newFakeProvider(t)
	creds := newMemCredentialStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	oauthCfg := googlefit.NewOAuthConfig("client-id", "client-secret", "", fp.server.URL+"/auth", fp.server.URL+"/token")
	refresher := googlefit.NewRefresher(oauthCfg, fp.server.Client(), creds, logger)
	exec := googlefit.NewExecutor(fp.server.Client(), fp.server.URL, creds, refresher, logger)

	return &testEnv{
		provider:  fp,
		creds:     creds,
		refresher: refresher,
		exec:      exec,
		client:    googlefit.NewClient(exec, logger),
	}
}

func (e *testEnv) storeCredentials(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, e.creds.Set(context.Background(), testUser, access, refresh))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeGoogleError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func tokenResponse(access, refresh string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{
			"access_token": access,
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if refresh != "" {
			body["refresh_token"] = refresh
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// JSON builders for provider payloads.

type pointJSON struct {
	StartTimeNanos string      `json:"startTimeNanos,omitempty"`
	EndTimeNanos   string      `json:"endTimeNanos,omitempty"`
	Value          []valueJSON `json:"value"`
}

type valueJSON struct {
	IntVal *int64   `json:"intVal,omitempty"`
	FpVal  *float64 `json:"fpVal,omitempty"`
}

func intPoint(start, end time.Time, v int64) pointJSON {
	return pointJSON{StartTimeNanos: nanos(start), EndTimeNanos: nanos(end), Value: []valueJSON{{IntVal: &v}}}
}

func fpPoint(start, end time.Time, v float64) pointJSON {
	return pointJSON{StartTimeNanos: nanos(start), EndTimeNanos: nanos(end), Value: []valueJSON{{FpVal: &v}}}
}

func nanos(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

// aggregateJSON builds an aggregate response with one dataset per bucket.
func aggregateJSON(buckets ...[]pointJSON) map[string]any {
	out := make([]map[string]any, 0, len(buckets))
	for _, points := range buckets {
		out = append(out, map[string]any{
			"dataset": []map[string]any{{"point": points}},
		})
	}
	return map[string]any{"bucket": out}
}

var testDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func testWindow() model.TimeWindow {
	return model.DayWindow(testDay, time.UTC)
}

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}
