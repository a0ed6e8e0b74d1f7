package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)

// insertID runs an INSERT and returns the new row id. The pgx driver does
// not implement LastInsertId, so the postgres path appends RETURNING id.
func insertID(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	if q.Driver() == "postgres" {
		var id int64
		if err := q.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
