package repository

import (
	"context"
	"database/sql"
	"errors"

	"validation-viewer/core/preferences"
)

// PreferenceRepository handles database operations for durable preferences
type PreferenceRepository struct {
	db *DB
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get retrieves a stored preference value
func (r *PreferenceRepository) Get(ctx context.Context, owner, key string) (string, error) {
	query := `
		SELECT value
		FROM preferences
		WHERE owner = $1 AND key = $2
	`

	var value string
	err := r.db.QueryRowContext(ctx, query, owner, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", preferences.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set creates or replaces a preference value
func (r *PreferenceRepository) Set(ctx context.Context, owner, key, value string) error {
	query := `
		INSERT INTO preferences (owner, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (owner, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`

	_, err := r.db.ExecContext(ctx, query, owner, key, value)
	return err
}

// Delete removes a preference value
func (r *PreferenceRepository) Delete(ctx context.Context, owner, key string) error {
	query := `DELETE FROM preferences WHERE owner = $1 AND key = $2`

	_, err := r.db.ExecContext(ctx, query, owner, key)
	return err
}

// ListOwner returns every preference stored for owner
func (r *PreferenceRepository) ListOwner(ctx context.Context, owner string) (map[string]string, error) {
	query := `
		SELECT key, value
		FROM preferences
		WHERE owner = $1
		ORDER BY key
	`

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}
