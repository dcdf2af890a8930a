package googlefit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// resolveHeartRate runs the aggregate query first and, when that yields no
// value, searches the raw heart-rate streams in listing order. The first
// stream with a value wins.
//
// Listing order is whatever the provider returns; it is not guaranteed to be
// stable across calls.
func (c *Client) resolveHeartRate(ctx context.Context, userID string, window model.TimeWindow) (model.Value, error) {
	resp, aggErr := c.aggregate(ctx, userID, dataTypeHeartRate, window)
	if aggErr == nil {
		if v := latestOrMean(resp.points()); !v.IsAbsent() {
			return v, nil
		}
	} else if stopsSearch(aggErr) {
		return model.Absent(), aggErr
	}

	streams, err := c.listHeartRateStreams(ctx, userID)
	if err != nil {
		if aggErr != nil && !stopsSearch(err) {
			return model.Absent(), aggErr
		}
		return model.Absent(), err
	}

	for _, streamID := range streams {
		points, err := c.fetchStream(ctx, userID, streamID, window)
		if err != nil {
			if stopsSearch(err) {
				return model.Absent(), err
			}
			c.logger.Debug("heart rate stream skipped", "user_id", userID, "stream", streamID, "error", err)
			continue
		}
		if v := latestOrMean(points); !v.IsAbsent() {
			c.logger.Debug("heart rate resolved from raw stream", "user_id", userID, "stream", streamID)
			return v, nil
		}
	}

	return model.Absent(), aggErr
}

// stopsSearch reports whether err ends the heart-rate search. An unavailable
// metric stays unavailable on every stream, and a credential that could not be
// refreshed fails every later call too.
func stopsSearch(err error) bool {
	return errors.Is(err, model.ErrMetricUnavailable) ||
		errors.Is(err, model.ErrReauthRequired) ||
		model.RequiresReauthorization(err)
}

func (c *Client) listHeartRateStreams(ctx context.Context, userID string) ([]string, error) {
	var list dataSourceList
	err := c.exec.Execute(ctx, userID, RequestSpec{
		Method: http.MethodGet,
		Path:   pathDataSources,
		Query:  url.Values{"dataTypeName": {dataTypeHeartRate}},
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("list heart rate streams: %w", err)
	}

	ids := make([]string, 0, len(list.DataSource))
	for _, ds := range list.DataSource {
		if ds.DataStreamID != "" {
			ids = append(ids, ds.DataStreamID)
		}
	}
	return ids, nil
}

func (c *Client) fetchStream(ctx context.Context, userID, streamID string, window model.TimeWindow) ([]dataPoint, error) {
	path := fmt.Sprintf("%s/%s/datasets/%d-%d",
		pathDataSources,
		url.PathEscape(streamID),
		window.Start.UnixNano(),
		window.End.UnixNano(),
	)

	var ds dataset
	if err := c.exec.Execute(ctx, userID, RequestSpec{Method: http.MethodGet, Path: path}, &ds); err != nil {
		return nil, fmt.Errorf("fetch stream %s: %w", streamID, err)
	}
	return ds.Point, nil
}

// latestOrMean returns the rounded value of the point with the latest start
// time, or the rounded mean of all values when no point carries a start time.
func latestOrMean(points []dataPoint) model.Value {
	var (
		latest      float64
		latestStart int64
		haveLatest  bool
		total       float64
		n           int
	)
	for _, p := range points {
		v, ok := p.number()
		if !ok {
			continue
		}
		total += v
		n++
		if p.StartTimeNanos > 0 && (!haveLatest || p.StartTimeNanos > latestStart) {
			latest, latestStart, haveLatest = v, p.StartTimeNanos, true
		}
	}

	switch {
	case haveLatest:
		return model.Count(int64(math.Round(latest)))
	case n > 0:
		return model.Count(int64(math.Round(total / float64(n))))
	default:
		return model.Absent()
	}
}
