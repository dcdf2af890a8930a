package model

import "time"

// DailyRecord is the merged per-user, per-calendar-day mapping of metric to
// value. Missing map entries are equivalent to Absent.
type DailyRecord struct {
	UserID    string
	Day       time.Time
	Values    map[Metric]Value
	UpdatedAt time.Time
}

// NewDailyRecord returns an empty record for the given user and day.
func NewDailyRecord(userID string, day time.Time) DailyRecord {
	return DailyRecord{
		UserID: userID,
		Day:    day,
		Values: make(map[Metric]Value, len(AllMetrics)),
	}
}

// Get returns the value stored for m, or Absent.
func (r DailyRecord) Get(m Metric) Value {
	if r.Values == nil {
		return Absent()
	}
	return r.Values[m]
}

// Set stores v for m. Setting Absent removes the entry.
func (r *DailyRecord) Set(m Metric, v Value) {
	if r.Values == nil {
		r.Values = make(map[Metric]Value, len(AllMetrics))
	}
	if v.IsAbsent() {
		delete(r.Values, m)
		return
	}
	r.Values[m] = v
}

// PresentCount returns the number of non-absent metrics in the record.
func (r DailyRecord) PresentCount() int {
	n := 0
	for _, v := range r.Values {
		if !v.IsAbsent() {
			n++
		}
	}
	return n
}

// WithDefaults returns a copy of r where every absent metric is replaced by
// its DefaultValue.
func (r DailyRecord) WithDefaults() DailyRecord {
	out := NewDailyRecord(r.UserID, r.Day)
	out.UpdatedAt = r.UpdatedAt
	for _, m := range AllMetrics {
		out.Set(m, r.Get(m).Or(m.DefaultValue()))
	}
	return out
}

// DayKey formats the record day as YYYY-MM-DD.
func (r DailyRecord) DayKey() string {
	return r.Day.Format(DayLayout)
}
