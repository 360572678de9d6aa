package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mantra/backend/internal/model"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns the user's sessions ordered by start time descending. An
// empty counterID returns sessions across all counters.
func (r *SessionRepository) List(ctx context.Context, userID, counterID string, limit int) ([]model.Session, error) {
	query := `SELECT s.id, s.counter_id, s.counter_name, s.count, s.malas, s.chants, s.timestamp, s.duration
		 FROM sessions s
		 JOIN counters c ON c.id = s.counter_id
		 WHERE c.user_id = ?`
	args := []interface{}{userID}
	if counterID != "" {
		query += ` AND s.counter_id = ?`
		args = append(args, counterID)
	}
	query += ` ORDER BY s.timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.Session, 0)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, userID, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT s.id, s.counter_id, s.counter_name, s.count, s.malas, s.chants, s.timestamp, s.duration
		 FROM sessions s
		 JOIN counters c ON c.id = s.counter_id
		 WHERE s.id = ? AND c.user_id = ?`,
		id,
		userID,
	)
	return scanSession(row)
}

func (r *SessionRepository) Insert(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO sessions (id, counter_id, counter_name, count, malas, chants, timestamp, duration)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.CounterID,
		session.CounterName,
		session.Count,
		session.Malas,
		session.Chants,
		session.Timestamp,
		session.Duration,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Update(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE sessions
		 SET count = ?,
		     malas = ?,
		     chants = ?,
		     duration = ?
		 WHERE id = ?`,
		session.Count,
		session.Malas,
		session.Chants,
		session.Duration,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteByCounterID(ctx context.Context, counterID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE counter_id = ?`, counterID); err != nil {
		return fmt.Errorf("delete sessions by counter: %w", err)
	}
	return nil
}

// OwnerOf reports which user holds the session id, through its counter.
func (r *SessionRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var owner string
	err := r.db.QueryRowContext(
		ctx,
		`SELECT c.user_id
		 FROM sessions s
		 JOIN counters c ON c.id = s.counter_id
		 WHERE s.id = ?`,
		id,
	).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("session owner: %w", err)
	}
	return owner, nil
}

func (r *SessionRepository) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(
		ctx,
		`DELETE FROM sessions
		 WHERE counter_id IN (SELECT id FROM counters WHERE user_id = ?)`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}

// TotalCountForCounter sums count over every session of the counter; a
// counter with no sessions reports 0.
func (r *SessionRepository) TotalCountForCounter(ctx context.Context, counterID string) (int, error) {
	var total int
	err := r.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(count), 0) FROM sessions WHERE counter_id = ?`,
		counterID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total count for counter: %w", err)
	}
	return total, nil
}

// CountForCounterSince sums count over sessions starting at or after the
// given epoch-millisecond instant.
func (r *SessionRepository) CountForCounterSince(ctx context.Context, counterID string, since int64) (int, error) {
	var total int
	err := r.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(count), 0) FROM sessions WHERE counter_id = ? AND timestamp >= ?`,
		counterID,
		since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count for counter since: %w", err)
	}
	return total, nil
}

// TodayCountForCounter sums count over sessions whose start falls within the
// local calendar day, recomputed fresh on every call.
func (r *SessionRepository) TodayCountForCounter(ctx context.Context, counterID string) (int, error) {
	return r.CountForCounterSince(ctx, counterID, StartOfTodayMillis(time.Now()))
}

func scanSession(s scanner) (*model.Session, error) {
	var session model.Session
	err := s.Scan(
		&session.ID,
		&session.CounterID,
		&session.CounterName,
		&session.Count,
		&session.Malas,
		&session.Chants,
		&session.Timestamp,
		&session.Duration,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &session, nil
}
