// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// MetricFailure describes one metric whose fetch did not succeed in a run.
type MetricFailure struct {
	Metric  model.Metric    `json:"metric"`
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

// SyncResult is the outcome of one FetchAll run. Record is the stored merged
// record with count-style defaults applied. Observed counts the metrics that
// produced a value in this run.
type SyncResult struct {
	Record   model.DailyRecord
	Failures []MetricFailure
	Observed int
}

// NeedsReauthorization reports whether any metric failed because the user's
// credential can no longer be refreshed.
func (r SyncResult) NeedsReauthorization() bool {
	for _, f := range r.Failures {
		switch f.Kind {
		case model.KindUnauthenticated, model.KindReauthRequired,
			model.KindNoRefreshCredential, model.KindRefreshCredentialExpired:
			return true
		}
	}
	return false
}

// SyncConfig holds the tunables of a SyncService. Zero values select defaults.
type SyncConfig struct {
	Location      *time.Location
	Interval      time.Duration
	BackfillDelay time.Duration

	// Now and Sleep are overridden in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// SyncService fetches every metric for a user and day, merges the outcome
// into the daily record store and drives backfill and scheduled syncs.
type SyncService struct {
	client   driven.FitnessClient
	creds    driven.CredentialStore
	records  driven.DailyRecordStore
	reporter driven.ErrorReporter
	logger   *slog.Logger

	loc           *time.Location
	interval      time.Duration
	backfillDelay time.Duration
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error

	syncCh chan chan error
}

// NewSyncService creates a new SyncService with all required dependencies.
// reporter may be nil.
func NewSyncService(
	client driven.FitnessClient,
	creds driven.CredentialStore,
	records driven.DailyRecordStore,
	reporter driven.ErrorReporter,
	cfg SyncConfig,
	logger *slog.Logger,
) *SyncService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncService{
		client:        client,
		creds:         creds,
		records:       records,
		reporter:      reporter,
		logger:        logger,
		loc:           cfg.Location,
		interval:      cfg.Interval,
		backfillDelay: cfg.BackfillDelay,
		now:           cfg.Now,
		sleep:         cfg.Sleep,
		syncCh:        make(chan chan error),
	}
}

// Location returns the time zone calendar days are computed in.
func (s *SyncService) Location() *time.Location {
	return s.loc
}

// Today returns the window covering the current calendar day.
func (s *SyncService) Today() model.TimeWindow {
	return model.DayWindow(s.now(), s.loc)
}

// DayWindow returns the window covering day in the service's location.
func (s *SyncService) DayWindow(day time.Time) model.TimeWindow {
	return model.DayWindow(day, s.loc)
}

// FetchAll resolves all metrics for userID over window concurrently, merges
// the observed values into the stored record for the window's day and returns
// the merged record. Individual metric failures never fail the run; they are
// listed in SyncResult.Failures.
//
// Errors: model.ErrUnauthenticated when the user has no stored credential,
// or a wrapped store error when the record could not be persisted.
func (s *SyncService) FetchAll(ctx context.Context, userID string, window model.TimeWindow) (SyncResult, error) {
	pair, err := s.creds.Get(ctx, userID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load credentials for %s: %w", userID, err)
	}
	if pair == nil || pair.AccessToken == "" {
		return SyncResult{}, model.ErrUnauthenticated
	}

	start := time.Now()
	values := make([]model.Value, len(model.AllMetrics))
	errs := make([]error, len(model.AllMetrics))

	// Every task returns nil so one failed metric never cancels the others.
	var g errgroup.Group
	for i, metric := range model.AllMetrics {
		g.Go(func() error {
			values[i], errs[i] = s.client.FetchMetric(ctx, userID, metric, window)
			return nil
		})
	}
	_ = g.Wait()

	day := model.StartOfDay(window.Start, s.loc)
	partial := model.NewDailyRecord(userID, day)
	var failures []MetricFailure
	for i, metric := range model.AllMetrics {
		if errs[i] != nil {
			failures = append(failures, s.recordFailure(ctx, userID, metric, errs[i]))
			continue
		}
		partial.Set(metric, values[i])
	}
	observed := partial.PresentCount()

	stored, err := s.records.Upsert(ctx, userID, day, partial)
	if err != nil {
		return SyncResult{Record: partial.WithDefaults(), Failures: failures, Observed: observed},
			fmt.Errorf("store record for %s on %s: %w", userID, day.Format(model.DayLayout), err)
	}

	s.logger.Info("metrics fetched",
		"user_id", userID,
		"day", day.Format(model.DayLayout),
		"observed", observed,
		"failed", len(failures),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return SyncResult{Record: stored.WithDefaults(), Failures: failures, Observed: observed}, nil
}

// recordFailure logs a metric failure, reports it when it points at a
// provider-side problem and returns its summary.
func (s *SyncService) recordFailure(ctx context.Context, userID string, metric model.Metric, err error) MetricFailure {
	kind := model.KindOf(err)
	s.logger.Warn("metric failed",
		"user_id", userID,
		"metric", metric,
		"kind", kind,
		"error", err,
	)

	if s.reporter != nil && reportable(ctx, kind, err) {
		s.reporter.Report(ctx, err, map[string]string{
			"user_id": userID,
			"metric":  string(metric),
			"kind":    string(kind),
		})
	}

	return MetricFailure{Metric: metric, Kind: kind, Message: err.Error()}
}

// reportable reports provider-side failures only. Failures caused by the
// caller giving up are not.
func reportable(ctx context.Context, kind model.ErrorKind, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	return kind == model.KindProviderError || kind == model.KindRefreshFailed
}

// Backfill walks calendar days from today backward, fetching every day that
// has no stored record yet. It returns the number of fetched days that
// produced at least one value. A fixed delay separates consecutive fetches.
func (s *SyncService) Backfill(ctx context.Context, userID string, days int) (int, error) {
	if days < 1 {
		return 0, fmt.Errorf("backfill days must be positive, got %d", days)
	}

	today := model.StartOfDay(s.now(), s.loc)
	var fetched, skipped, populated int

	for i := range days {
		day := today.AddDate(0, 0, -i)

		exists, err := s.records.Exists(ctx, userID, day)
		if err != nil {
			return populated, fmt.Errorf("check record for %s: %w", day.Format(model.DayLayout), err)
		}
		if exists {
			skipped++
			continue
		}

		if fetched > 0 {
			if err := s.sleep(ctx, s.backfillDelay); err != nil {
				return populated, err
			}
		}
		fetched++

		result, err := s.FetchAll(ctx, userID, model.DayWindow(day, s.loc))
		if err != nil {
			if model.RequiresReauthorization(err) {
				return populated, err
			}
			s.logger.Error("backfill day failed", "user_id", userID, "day", day.Format(model.DayLayout), "error", err)
			continue
		}
		if result.Observed > 0 {
			populated++
		}
	}

	s.logger.Info("backfill complete",
		"user_id", userID,
		"days", days,
		"fetched", fetched,
		"skipped", skipped,
		"populated", populated,
	)
	return populated, nil
}

// Start begins the scheduled sync loop. It syncs today for every user
// immediately, then on the configured interval. It also serves SyncNow
// requests. Start blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	if err := s.syncAll(ctx); err != nil {
		s.logger.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			if err := s.syncAll(ctx); err != nil {
				s.logger.Error("sync cycle failed", "error", err)
			}
		case done := <-s.syncCh:
			done <- s.syncAll(ctx)
		}
	}
}

// SyncNow triggers an immediate sync of every user, bypassing the interval.
// It blocks until the cycle completes or the context is canceled.
func (s *SyncService) SyncNow(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case s.syncCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// syncAll fetches today for every user with stored credentials.
func (s *SyncService) syncAll(ctx context.Context) error {
	start := time.Now()

	userIDs, err := s.creds.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	window := s.Today()
	var synced, needsReauth, failed int
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := s.FetchAll(ctx, userID, window)
		switch {
		case errors.Is(err, model.ErrUnauthenticated):
			needsReauth++
			s.logger.Warn("user skipped, authorization required", "user_id", userID)
		case err != nil:
			failed++
			s.logger.Error("user sync failed", "user_id", userID, "error", err)
		case result.NeedsReauthorization():
			needsReauth++
			s.logger.Warn("user credential needs reauthorization", "user_id", userID)
		default:
			synced++
		}
	}

	s.logger.Info("sync cycle complete",
		"users", len(userIDs),
		"synced", synced,
		"needs_reauth", needsReauth,
		"failed", failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
