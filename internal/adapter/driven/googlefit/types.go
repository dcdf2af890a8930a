package googlefit

// Provider data type names, one per metric.
const (
	dataTypeSteps         = "com.google.step_count.delta"
	dataTypeCalories      = "com.google.calories.expended"
	dataTypeDistance      = "com.google.distance.delta"
	dataTypeActiveMinutes = "com.google.active_minutes"
	dataTypeWeight        = "com.google.weight"
	dataTypeHeight        = "com.google.height"
	dataTypeSpeed         = "com.google.speed"
	dataTypeSleep         = "com.google.sleep.segment"
	dataTypeHeartRate     = "com.google.heart_rate.bpm"
)

const (
	pathAggregate   = "/users/me/dataset:aggregate"
	pathDataSources = "/users/me/dataSources"

	dayMillis = int64(24 * 60 * 60 * 1000)
)

// aggregateRequest is the body of POST /users/me/dataset:aggregate.
type aggregateRequest struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

type aggregateResponse struct {
	Bucket []bucket `json:"bucket"`
}

type bucket struct {
	StartTimeMillis string    `json:"startTimeMillis"`
	EndTimeMillis   string    `json:"endTimeMillis"`
	Dataset         []dataset `json:"dataset"`
}

// dataset is shared by aggregate buckets and the raw per-stream endpoint.
type dataset struct {
	DataSourceID string      `json:"dataSourceId"`
	Point        []dataPoint `json:"point"`
}

type dataPoint struct {
	StartTimeNanos int64        `json:"startTimeNanos,string"`
	EndTimeNanos   int64        `json:"endTimeNanos,string"`
	DataTypeName   string       `json:"dataTypeName"`
	Value          []pointValue `json:"value"`
}

type pointValue struct {
	IntVal *int64   `json:"intVal,omitempty"`
	FpVal  *float64 `json:"fpVal,omitempty"`
}

// number returns the first numeric field of the point. Integer and floating
// representations are treated as equivalent.
func (p dataPoint) number() (float64, bool) {
	for _, v := range p.Value {
		switch {
		case v.FpVal != nil:
			return *v.FpVal, true
		case v.IntVal != nil:
			return float64(*v.IntVal), true
		}
	}
	return 0, false
}

// points flattens every point of every dataset in every bucket.
func (r aggregateResponse) points() []dataPoint {
	var out []dataPoint
	for _, b := range r.Bucket {
		for _, ds := range b.Dataset {
			out = append(out, ds.Point...)
		}
	}
	return out
}

type dataSourceList struct {
	DataSource []dataSource `json:"dataSource"`
}

type dataSource struct {
	DataStreamID string `json:"dataStreamId"`
	Type         string `json:"type"`
}
