package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Preference keys. KeyActiveSession holds the in-progress interval
// checkpoint; the legacy keys carry pre-migration flat-list blobs.
const (
	KeyActiveSession  = "active_session"
	KeyLegacyCounters = "counters"
	KeyLegacySessions = "sessions"
	KeyMigratedFlag   = "migrated_to_sqlite"
)

// PreferenceRepository is lightweight per-user key-value storage, the
// backend counterpart of the app's shared preferences.
type PreferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) Get(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(
		ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`,
		userID,
		key,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, nil
}

func (r *PreferenceRepository) Set(ctx context.Context, userID, key, value string) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO preferences (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (r *PreferenceRepository) Delete(ctx context.Context, userID, key string) error {
	if _, err := r.db.ExecContext(
		ctx,
		`DELETE FROM preferences WHERE user_id = ? AND key = ?`,
		userID,
		key,
	); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}

// LegacyUserIDs lists users that still carry pre-migration flat-list blobs.
func (r *PreferenceRepository) LegacyUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT DISTINCT user_id FROM preferences WHERE key IN (?, ?)`,
		KeyLegacyCounters,
		KeyLegacySessions,
	)
	if err != nil {
		return nil, fmt.Errorf("list legacy users: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan legacy user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy users: %w", err)
	}
	return ids, nil
}
