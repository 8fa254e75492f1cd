package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sieve/internal/filters/models"
	"sieve/pkg/platform/sentinel"
)

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed subscription store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the filter_subscriptions table when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS filter_subscriptions (
			filter_id INTEGER PRIMARY KEY,
			url       TEXT NOT NULL DEFAULT '',
			title     TEXT NOT NULL DEFAULT '',
			enabled   BOOLEAN NOT NULL DEFAULT TRUE,
			trusted   BOOLEAN NOT NULL DEFAULT FALSE,
			added_at  TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure filter_subscriptions schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id models.FilterID) (*models.Subscription, error) {
	query := `
		SELECT filter_id, url, title, enabled, trusted, added_at
		FROM filter_subscriptions
		WHERE filter_id = $1
	`
	var sub models.Subscription
	err := s.db.QueryRowContext(ctx, query, int64(id)).Scan(
		&sub.FilterID,
		&sub.URL,
		&sub.Title,
		&sub.Enabled,
		&sub.Trusted,
		&sub.AddedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subscription %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, sub models.Subscription) error {
	query := `
		INSERT INTO filter_subscriptions (filter_id, url, title, enabled, trusted, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (filter_id) DO UPDATE SET
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			enabled = EXCLUDED.enabled,
			trusted = EXCLUDED.trusted,
			added_at = EXCLUDED.added_at
	`
	_, err := s.db.ExecContext(ctx, query,
		int64(sub.FilterID),
		sub.URL,
		sub.Title,
		sub.Enabled,
		sub.Trusted,
		sub.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id models.FilterID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM filter_subscriptions WHERE filter_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// List returns all subscriptions ordered by filter identifier.
func (s *PostgresStore) List(ctx context.Context) ([]models.Subscription, error) {
	query := `
		SELECT filter_id, url, title, enabled, trusted, added_at
		FROM filter_subscriptions
		ORDER BY filter_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(
			&sub.FilterID,
			&sub.URL,
			&sub.Title,
			&sub.Enabled,
			&sub.Trusted,
			&sub.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

// EnabledFilterIDs returns the identifiers of all enabled subscriptions.
func (s *PostgresStore) EnabledFilterIDs(ctx context.Context) ([]models.FilterID, error) {
	query := `
		SELECT filter_id
		FROM filter_subscriptions
		WHERE enabled
		ORDER BY filter_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled filters: %w", err)
	}
	defer rows.Close()

	var out []models.FilterID
	for rows.Next() {
		var id models.FilterID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan filter id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enabled filters: %w", err)
	}
	return out, nil
}
