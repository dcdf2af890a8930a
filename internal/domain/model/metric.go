// Package model holds the fitness domain types: metrics, values, daily
// records, credentials and the fetch error taxonomy.
package model

// Metric identifies one observable fitness quantity fetched from the provider.
type Metric string

const (
	MetricSteps         Metric = "steps"
	MetricHeartRate     Metric = "heart_rate"
	MetricCalories      Metric = "calories"
	MetricDistance      Metric = "distance"
	MetricWeight        Metric = "weight"
	MetricHeight        Metric = "height"
	MetricSleep         Metric = "sleep"
	MetricActiveMinutes Metric = "active_minutes"
	MetricSpeed         Metric = "speed"
)

// AllMetrics lists every metric in a stable order. The orchestrator fans out
// over this slice and the storage layer maps each entry to one column.
var AllMetrics = []Metric{
	MetricSteps,
	MetricHeartRate,
	MetricCalories,
	MetricDistance,
	MetricWeight,
	MetricHeight,
	MetricSleep,
	MetricActiveMinutes,
	MetricSpeed,
}

// IsValid reports whether m is one of the known metrics.
func (m Metric) IsValid() bool {
	for _, known := range AllMetrics {
		if m == known {
			return true
		}
	}
	return false
}

// IsCount reports whether the metric is stored as an integer count rather
// than a decimal quantity.
func (m Metric) IsCount() bool {
	switch m {
	case MetricSteps, MetricHeartRate, MetricActiveMinutes:
		return true
	default:
		return false
	}
}

// DefaultValue is the value substituted when a metric could not be fetched.
// Zero is a legitimate observation for steps and active minutes; every other
// metric falls back to Absent.
func (m Metric) DefaultValue() Value {
	switch m {
	case MetricSteps, MetricActiveMinutes:
		return Count(0)
	default:
		return Absent()
	}
}
