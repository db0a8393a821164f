// Package audit provides access to the view_access_log table, the local
// trail of view opens kept alongside the upstream access log.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccessRecord is one row of the local view access trail.
type AccessRecord struct {
	ID       string    `json:"id"`
	ViewSlug string    `json:"view_slug"`
	UserID   string    `json:"user_id"`
	OpenedAt time.Time `json:"opened_at"`
}

// Filter controls which access records to return.
type Filter struct {
	ViewSlug string // optional: filter by view slug
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated access trail results.
type ListResult struct {
	Records []AccessRecord `json:"records"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// Repository defines the interface for access trail operations.
type Repository interface {
	Record(ctx context.Context, viewSlug, userID string) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the access trail in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new access trail repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one access trail row for a view open.
func (r *SQLiteRepository) Record(ctx context.Context, viewSlug, userID string) error {
	id := "acc-" + uuid.NewString()[:8]

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO view_access_log (id, view_slug, user_id, opened_at)
		 VALUES (?, ?, ?, ?)`,
		id, viewSlug, userID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting access record: %w", err)
	}

	return nil
}

// List returns access records matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for trail queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where := ""
	var args []any
	if filter.ViewSlug != "" {
		where = "WHERE view_slug = ?"
		args = append(args, filter.ViewSlug)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM view_access_log %s", where) //nolint:gosec // WHERE is a fixed parameterised clause, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting access records: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE is a fixed parameterised clause, not user input
		"SELECT id, view_slug, user_id, opened_at FROM view_access_log %s ORDER BY opened_at DESC, id LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying access records: %w", err)
	}
	defer rows.Close()

	var records []AccessRecord
	for rows.Next() {
		var rec AccessRecord
		var openedAt string

		if err := rows.Scan(&rec.ID, &rec.ViewSlug, &rec.UserID, &openedAt); err != nil {
			return nil, fmt.Errorf("scanning access record: %w", err)
		}

		t, err := time.Parse(time.RFC3339, openedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing access record timestamp %q: %w", openedAt, err)
		}
		rec.OpenedAt = t

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access records: %w", err)
	}

	if records == nil {
		records = []AccessRecord{}
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
