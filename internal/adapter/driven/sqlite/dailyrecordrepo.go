package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DailyRecordStore = (*DailyRecordRepo)(nil)

// metricColumns maps every metric to its daily_records column. The column
// names equal the metric identifiers.
var metricColumns = func() []string {
	cols := make([]string, len(model.AllMetrics))
	for i, m := range model.AllMetrics {
		cols[i] = string(m)
	}
	return cols
}()

var (
	upsertRecordQuery = buildUpsertQuery()
	selectRecordCols  = "day, " + strings.Join(metricColumns, ", ") + ", updated_at"
)

// buildUpsertQuery merges column by column: a NULL in the incoming row never
// overwrites a stored value.
func buildUpsertQuery() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(metricColumns)), ", ")

	sets := make([]string, 0, len(metricColumns)+1)
	for _, col := range metricColumns {
		sets = append(sets, fmt.Sprintf("%[1]s = COALESCE(excluded.%[1]s, daily_records.%[1]s)", col))
	}
	sets = append(sets, "updated_at = excluded.updated_at")

	return fmt.Sprintf(
		`INSERT INTO daily_records (user_id, day, %s, updated_at)
		VALUES (?, ?, %s, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, day) DO UPDATE SET %s`,
		strings.Join(metricColumns, ", "),
		placeholders,
		strings.Join(sets, ", "),
	)
}

// DailyRecordRepo is the SQLite implementation of the DailyRecordStore port
// interface. Days are stored as YYYY-MM-DD in the configured location.
type DailyRecordRepo struct {
	db  *DB
	loc *time.Location
}

// NewDailyRecordRepo creates a new DailyRecordRepo. nil loc means UTC.
func NewDailyRecordRepo(db *DB, loc *time.Location) *DailyRecordRepo {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyRecordRepo{db: db, loc: loc}
}

// Upsert merges the present values of partial into the (userID, day) record
// and returns the stored result. The write and the read-back share one
// transaction on the writer connection.
func (r *DailyRecordRepo) Upsert(ctx context.Context, userID string, day time.Time, partial model.DailyRecord) (model.DailyRecord, error) {
	dayKey := r.dayKey(day)

	args := make([]any, 0, len(metricColumns)+2)
	args = append(args, userID, dayKey)
	for _, m := range model.AllMetrics {
		args = append(args, columnValue(m, partial.Get(m)))
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.DailyRecord{}, fmt.Errorf("begin upsert for %s/%s: %w", userID, dayKey, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertRecordQuery, args...); err != nil {
		return model.DailyRecord{}, fmt.Errorf("upsert record %s/%s: %w", userID, dayKey, err)
	}

	query := `SELECT ` + selectRecordCols + ` FROM daily_records WHERE user_id = ? AND day = ?`
	record, err := r.scanRecord(userID, tx.QueryRowContext(ctx, query, userID, dayKey))
	if err != nil {
		return model.DailyRecord{}, fmt.Errorf("read back record %s/%s: %w", userID, dayKey, err)
	}

	if err := tx.Commit(); err != nil {
		return model.DailyRecord{}, fmt.Errorf("commit upsert for %s/%s: %w", userID, dayKey, err)
	}
	return record, nil
}

// Get returns the record for (userID, day), or (nil, nil) if none exists.
func (r *DailyRecordRepo) Get(ctx context.Context, userID string, day time.Time) (*model.DailyRecord, error) {
	dayKey := r.dayKey(day)
	query := `SELECT ` + selectRecordCols + ` FROM daily_records WHERE user_id = ? AND day = ?`

	record, err := r.scanRecord(userID, r.db.Reader.QueryRowContext(ctx, query, userID, dayKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", userID, dayKey, err)
	}
	return &record, nil
}

// Exists reports whether a record is stored for (userID, day).
func (r *DailyRecordRepo) Exists(ctx context.Context, userID string, day time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM daily_records WHERE user_id = ? AND day = ?)`
	var exists bool
	if err := r.db.Reader.QueryRowContext(ctx, query, userID, r.dayKey(day)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check record %s/%s: %w", userID, r.dayKey(day), err)
	}
	return exists, nil
}

// ListRange returns the records for userID with from <= day <= to, oldest first.
func (r *DailyRecordRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]model.DailyRecord, error) {
	query := `SELECT ` + selectRecordCols + ` FROM daily_records
		WHERE user_id = ? AND day >= ? AND day <= ?
		ORDER BY day`
	rows, err := r.db.Reader.QueryContext(ctx, query, userID, r.dayKey(from), r.dayKey(to))
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", userID, err)
	}
	defer rows.Close()

	records := []model.DailyRecord{}
	for rows.Next() {
		record, err := r.scanRecord(userID, rows)
		if err != nil {
			return nil, fmt.Errorf("scan record for %s: %w", userID, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records for %s: %w", userID, err)
	}
	return records, nil
}

func (r *DailyRecordRepo) dayKey(day time.Time) string {
	return day.In(r.loc).Format(model.DayLayout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DailyRecordRepo) scanRecord(userID string, row rowScanner) (model.DailyRecord, error) {
	var (
		dayKey    string
		updatedAt string
	)
	dest := make([]any, 0, len(metricColumns)+2)
	dest = append(dest, &dayKey)

	counts := make(map[model.Metric]*sql.NullInt64)
	quantities := make(map[model.Metric]*sql.NullFloat64)
	for _, m := range model.AllMetrics {
		if m.IsCount() {
			counts[m] = &sql.NullInt64{}
			dest = append(dest, counts[m])
		} else {
			quantities[m] = &sql.NullFloat64{}
			dest = append(dest, quantities[m])
		}
	}
	dest = append(dest, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		return model.DailyRecord{}, err
	}

	day, err := time.ParseInLocation(model.DayLayout, dayKey, r.loc)
	if err != nil {
		return model.DailyRecord{}, fmt.Errorf("parse day %q: %w", dayKey, err)
	}

	record := model.NewDailyRecord(userID, day)
	for m, v := range counts {
		if v.Valid {
			record.Set(m, model.Count(v.Int64))
		}
	}
	for m, v := range quantities {
		if v.Valid {
			record.Set(m, model.Quantity(v.Float64))
		}
	}

	record.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.DailyRecord{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return record, nil
}

// columnValue converts v to the driver value for m's column. Absent maps to NULL.
func columnValue(m model.Metric, v model.Value) any {
	if m.IsCount() {
		if n, ok := v.Int(); ok {
			return n
		}
		return nil
	}
	if f, ok := v.Float(); ok {
		return f
	}
	return nil
}
