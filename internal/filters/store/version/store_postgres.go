package version

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sieve/internal/filters/models"
	"sieve/pkg/platform/sentinel"
)

// PostgresStore persists version records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed version store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the filter_versions table when absent. The service
// owns its schema; there is no external migration step.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS filter_versions (
			filter_id        INTEGER PRIMARY KEY,
			version          TEXT NOT NULL DEFAULT '',
			expires          BIGINT NOT NULL DEFAULT 0,
			last_update_time TIMESTAMPTZ NOT NULL,
			last_check_time  TIMESTAMPTZ NOT NULL,
			diff_path        TEXT NOT NULL DEFAULT ''
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure filter_versions schema: %w", err)
	}
	return nil
}

// Get retrieves the version record for one filter.
func (s *PostgresStore) Get(ctx context.Context, id models.FilterID) (*models.FilterVersionRecord, error) {
	query := `
		SELECT filter_id, version, expires, last_update_time, last_check_time, diff_path
		FROM filter_versions
		WHERE filter_id = $1
	`
	var record models.FilterVersionRecord
	err := s.db.QueryRowContext(ctx, query, int64(id)).Scan(
		&record.FilterID,
		&record.Version,
		&record.Expires,
		&record.LastUpdateTime,
		&record.LastCheckTime,
		&record.DiffPath,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("filter %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get filter version: %w", err)
	}
	return &record, nil
}

// Set upserts the full version record for one filter.
func (s *PostgresStore) Set(ctx context.Context, record models.FilterVersionRecord) error {
	query := `
		INSERT INTO filter_versions (filter_id, version, expires, last_update_time, last_check_time, diff_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (filter_id) DO UPDATE SET
			version = EXCLUDED.version,
			expires = EXCLUDED.expires,
			last_update_time = EXCLUDED.last_update_time,
			last_check_time = EXCLUDED.last_check_time,
			diff_path = EXCLUDED.diff_path
	`
	_, err := s.db.ExecContext(ctx, query,
		int64(record.FilterID),
		record.Version,
		record.Expires,
		record.LastUpdateTime,
		record.LastCheckTime,
		record.DiffPath,
	)
	if err != nil {
		return fmt.Errorf("set filter version: %w", err)
	}
	return nil
}

// RefreshLastCheckTime stamps LastCheckTime on every given filter in one
// round trip. Filters without a record are skipped by the WHERE clause.
func (s *PostgresStore) RefreshLastCheckTime(ctx context.Context, ids []models.FilterID, checkedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}

	query := `
		UPDATE filter_versions
		SET last_check_time = $2
		WHERE filter_id = ANY($1::int[])
	`
	_, err := s.db.ExecContext(ctx, query, pq.Array(raw), checkedAt)
	if err != nil {
		return fmt.Errorf("refresh last check time: %w", err)
	}
	return nil
}

// GetAll returns every stored record keyed by filter identifier.
func (s *PostgresStore) GetAll(ctx context.Context) (map[models.FilterID]models.FilterVersionRecord, error) {
	query := `
		SELECT filter_id, version, expires, last_update_time, last_check_time, diff_path
		FROM filter_versions
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list filter versions: %w", err)
	}
	defer rows.Close()

	out := make(map[models.FilterID]models.FilterVersionRecord)
	for rows.Next() {
		var record models.FilterVersionRecord
		if err := rows.Scan(
			&record.FilterID,
			&record.Version,
			&record.Expires,
			&record.LastUpdateTime,
			&record.LastCheckTime,
			&record.DiffPath,
		); err != nil {
			return nil, fmt.Errorf("scan filter version: %w", err)
		}
		out[record.FilterID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filter versions: %w", err)
	}
	return out, nil
}

// Delete removes the record for one filter, if present.
func (s *PostgresStore) Delete(ctx context.Context, id models.FilterID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM filter_versions WHERE filter_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete filter version: %w", err)
	}
	return nil
}
