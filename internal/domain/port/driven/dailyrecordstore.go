package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// DailyRecordStore defines the driven port for per-user, per-day metric records.
type DailyRecordStore interface {
	// Upsert merges partial into the record for (userID, day) and returns the
	// stored result. Only present values overwrite stored ones; absent values
	// never erase previously stored data.
	Upsert(ctx context.Context, userID string, day time.Time, partial model.DailyRecord) (model.DailyRecord, error)

	// Get returns the record for (userID, day), or (nil, nil) if none exists.
	Get(ctx context.Context, userID string, day time.Time) (*model.DailyRecord, error)

	// Exists reports whether a record is stored for (userID, day).
	Exists(ctx context.Context, userID string, day time.Time) (bool, error)

	// ListRange returns the records for userID with from <= day <= to, oldest first.
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]model.DailyRecord, error)
}
