package application_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// --- Mock implementations ---

type fetchCall struct {
	UserID string
	Metric model.Metric
	Window model.TimeWindow
}

type mockFitnessClient struct {
	mu    sync.Mutex
	calls []fetchCall
	fetch func(userID string, metric model.Metric, window model.TimeWindow) (model.Value, error)
}

func (m *mockFitnessClient) FetchMetric(_ context.Context, userID string, metric model.Metric, window model.TimeWindow) (model.Value, error) {
	m.mu.Lock()
	m.calls = append(m.calls, fetchCall{UserID: userID, Metric: metric, Window: window})
	m.mu.Unlock()
	if m.fetch == nil {
		return model.Absent(), nil
	}
	return m.fetch(userID, metric, window)
}

func (m *mockFitnessClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// fetchedDays returns the distinct window start days requested, in call order.
func (m *mockFitnessClient) fetchedDays() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var days []string
	for _, c := range m.calls {
		key := c.Window.Start.Format(model.DayLayout)
		if !seen[key] {
			seen[key] = true
			days = append(days, key)
		}
	}
	return days
}

type mockCredentialStore struct {
	mu    sync.Mutex
	pairs map[string]model.CredentialPair
}

func newMockCredentialStore(userIDs ...string) *mockCredentialStore {
	m := &mockCredentialStore{pairs: make(map[string]model.CredentialPair)}
	for _, id := range userIDs {
		m.pairs[id] = model.CredentialPair{UserID: id, AccessToken: "access-" + id, RefreshToken: "refresh-" + id}
	}
	return m
}

func (m *mockCredentialStore) Get(_ context.Context, userID string) (*model.CredentialPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair, ok := m.pairs[userID]
	if !ok {
		return nil, nil
	}
	return &pair, nil
}

func (m *mockCredentialStore) Set(_ context.Context, userID, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair := m.pairs[userID]
	pair.UserID = userID
	pair.AccessToken = access
	if refresh != "" {
		pair.RefreshToken = refresh
	}
	m.pairs[userID] = pair
	return nil
}

func (m *mockCredentialStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pairs, userID)
	return nil
}

func (m *mockCredentialStore) ListUserIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.pairs))
	for id := range m.pairs {
		ids = append(ids, id)
	}
	return ids, nil
}

// mockRecordStore merges field by field like the real store.
type mockRecordStore struct {
	mu        sync.Mutex
	records   map[string]model.DailyRecord
	upserts   int
	upsertErr error
}

func newMockRecordStore() *mockRecordStore {
	return &mockRecordStore{records: make(map[string]model.DailyRecord)}
}

func recordKey(userID string, day time.Time) string {
	return userID + "/" + day.Format(model.DayLayout)
}

func (m *mockRecordStore) seed(userID string, day time.Time, values map[model.Metric]model.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := model.NewDailyRecord(userID, day)
	for metric, v := range values {
		r.Set(metric, v)
	}
	m.records[recordKey(userID, day)] = r
}

func (m *mockRecordStore) Upsert(_ context.Context, userID string, day time.Time, partial model.DailyRecord) (model.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return model.DailyRecord{}, m.upsertErr
	}

	key := recordKey(userID, day)
	stored, ok := m.records[key]
	if !ok {
		stored = model.NewDailyRecord(userID, day)
	}
	for _, metric := range model.AllMetrics {
		if v := partial.Get(metric); !v.IsAbsent() {
			stored.Set(metric, v)
		}
	}
	m.records[key] = stored
	return stored, nil
}

func (m *mockRecordStore) Get(_ context.Context, userID string, day time.Time) (*model.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordKey(userID, day)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *mockRecordStore) Exists(_ context.Context, userID string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[recordKey(userID, day)]
	return ok, nil
}

func (m *mockRecordStore) ListRange(_ context.Context, userID string, from, to time.Time) ([]model.DailyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DailyRecord
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if r, ok := m.records[recordKey(userID, d)]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRecordStore) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

type reportCall struct {
	Err  error
	Tags map[string]string
}

type mockReporter struct {
	mu    sync.Mutex
	calls []reportCall
}

func (m *mockReporter) Report(_ context.Context, err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, reportCall{Err: err, Tags: tags})
}

func (m *mockReporter) reports() []reportCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reportCall(nil), m.calls...)
}

type mockCodeExchanger struct {
	grant    driven.TokenGrant
	err      error
	lastCode string
}

func (m *mockCodeExchanger) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockCodeExchanger) Exchange(_ context.Context, code string) (driven.TokenGrant, error) {
	m.lastCode = code
	return m.grant, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
