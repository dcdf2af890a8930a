package googlefit

import (
	"context"
	"net/http"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

const (
	metresPerKilometre = 1000.0
	msToKmh            = 3.6
)

// metricSpec pairs a provider data type with the rule that turns its
// aggregate response into a single value.
type metricSpec struct {
	dataType string
	extract  func(aggregateResponse) model.Value
}

// simpleMetrics covers every metric resolved by a single aggregate query.
var simpleMetrics = map[model.Metric]metricSpec{
	model.MetricSteps:         {dataTypeSteps, sumCount},
	model.MetricCalories:      {dataTypeCalories, sumQuantity(1)},
	model.MetricDistance:      {dataTypeDistance, sumQuantity(1 / metresPerKilometre)},
	model.MetricActiveMinutes: {dataTypeActiveMinutes, sumCount},
	model.MetricWeight:        {dataTypeWeight, latestBucketValue(1)},
	model.MetricHeight:        {dataTypeHeight, latestBucketValue(1)},
	model.MetricSpeed:         {dataTypeSpeed, latestBucketValue(msToKmh)},
	model.MetricSleep:         {dataTypeSleep, sleepHours},
}

func (c *Client) fetchAggregate(ctx context.Context, userID string, spec metricSpec, window model.TimeWindow) (model.Value, error) {
	resp, err := c.aggregate(ctx, userID, spec.dataType, window)
	if err != nil {
		return model.Absent(), err
	}
	return spec.extract(resp), nil
}

// aggregate runs one day-bucketed aggregate query for dataType.
func (c *Client) aggregate(ctx context.Context, userID, dataType string, window model.TimeWindow) (aggregateResponse, error) {
	body := aggregateRequest{
		AggregateBy:     []aggregateBy{{DataTypeName: dataType}},
		BucketByTime:    bucketByTime{DurationMillis: dayMillis},
		StartTimeMillis: window.Start.UnixMilli(),
		EndTimeMillis:   window.End.UnixMilli(),
	}

	var resp aggregateResponse
	err := c.exec.Execute(ctx, userID, RequestSpec{
		Method: http.MethodPost,
		Path:   pathAggregate,
		Body:   body,
	}, &resp)
	return resp, err
}

func sumCount(resp aggregateResponse) model.Value {
	total, ok := sum(resp)
	if !ok {
		return model.Absent()
	}
	return model.Count(int64(total))
}

func sumQuantity(scale float64) func(aggregateResponse) model.Value {
	return func(resp aggregateResponse) model.Value {
		total, ok := sum(resp)
		if !ok {
			return model.Absent()
		}
		return model.Quantity(total * scale)
	}
}

// sum adds every numeric point value. ok is false when there were no values.
func sum(resp aggregateResponse) (total float64, ok bool) {
	for _, p := range resp.points() {
		if v, has := p.number(); has {
			total += v
			ok = true
		}
	}
	return total, ok
}

// latestBucketValue takes the first point of the most recent bucket that has
// any points. Buckets are returned oldest first.
func latestBucketValue(scale float64) func(aggregateResponse) model.Value {
	return func(resp aggregateResponse) model.Value {
		for i := len(resp.Bucket) - 1; i >= 0; i-- {
			for _, ds := range resp.Bucket[i].Dataset {
				if len(ds.Point) == 0 {
					continue
				}
				if v, ok := ds.Point[0].number(); ok {
					return model.Quantity(v * scale)
				}
			}
		}
		return model.Absent()
	}
}

// sleepHours sums the duration of every segment. The point value (the sleep
// stage) is ignored.
func sleepHours(resp aggregateResponse) model.Value {
	points := resp.points()
	if len(points) == 0 {
		return model.Absent()
	}
	var total time.Duration
	for _, p := range points {
		if p.EndTimeNanos > p.StartTimeNanos {
			total += time.Duration(p.EndTimeNanos - p.StartTimeNanos)
		}
	}
	return model.Quantity(total.Hours())
}
