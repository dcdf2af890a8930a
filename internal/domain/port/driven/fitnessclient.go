// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// FitnessClient defines the driven port for fetching metrics from the
// fitness-data provider.
type FitnessClient interface {
	// FetchMetric resolves one metric for userID over window. A metric that is
	// not authorized or not present yields (Absent, nil). Any other failure
	// yields (Absent, err) with err classifiable through model.KindOf.
	FetchMetric(ctx context.Context, userID string, metric model.Metric, window model.TimeWindow) (model.Value, error)
}
