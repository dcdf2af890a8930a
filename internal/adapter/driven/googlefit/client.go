// Package googlefit implements the FitnessClient port against the Google Fit
// REST API.
package googlefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// DefaultBaseURL is the Google Fit REST API root.
const DefaultBaseURL = "https://www.googleapis.com/fitness/v1"

// Compile-time interface satisfaction check.
var _ driven.FitnessClient = (*Client)(nil)

// Client implements the driven.FitnessClient port. Each metric is resolved
// through the shared Executor, so every fetch benefits from the same
// refresh-and-retry handling.
type Client struct {
	exec   *Executor
	logger *slog.Logger
}

// NewClient creates a Client that issues its calls through exec.
func NewClient(exec *Executor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{exec: exec, logger: logger}
}

// FetchMetric resolves metric for userID over window. An unavailable metric
// yields (Absent, nil); any other failure is logged and returned alongside
// Absent so the caller can record it.
func (c *Client) FetchMetric(ctx context.Context, userID string, metric model.Metric, window model.TimeWindow) (model.Value, error) {
	if !window.IsValid() {
		return model.Absent(), fmt.Errorf("fetch %s: invalid window %s..%s", metric, window.Start, window.End)
	}

	var (
		value model.Value
		err   error
	)
	if metric == model.MetricHeartRate {
		value, err = c.resolveHeartRate(ctx, userID, window)
	} else {
		spec, ok := simpleMetrics[metric]
		if !ok {
			return model.Absent(), fmt.Errorf("fetch %s: unknown metric", metric)
		}
		value, err = c.fetchAggregate(ctx, userID, spec, window)
	}

	if err == nil {
		return value, nil
	}
	if errors.Is(err, model.ErrMetricUnavailable) {
		c.logger.Debug("metric unavailable", "user_id", userID, "metric", metric)
		return model.Absent(), nil
	}

	c.logger.Warn("metric fetch failed",
		"user_id", userID,
		"metric", metric,
		"kind", model.KindOf(err),
		"error", err,
	)
	return model.Absent(), fmt.Errorf("fetch %s: %w", metric, err)
}
