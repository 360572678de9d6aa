package repository

import (
	"context"
	"database/sql"
	"fmt"

	"mantra/backend/internal/model"
)

type CounterRepository struct {
	db *sql.DB
}

func NewCounterRepository(db *sql.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// List returns the user's counters ordered by creation time descending.
func (r *CounterRepository) List(ctx context.Context, userID string) ([]model.Counter, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, name, initial_count, increment_step, goal, daily_goal, created_at
		 FROM counters
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	counters := make([]model.Counter, 0)
	for rows.Next() {
		counter, scanErr := scanCounter(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		counters = append(counters, *counter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counters: %w", err)
	}
	return counters, nil
}

func (r *CounterRepository) GetByID(ctx context.Context, userID, id string) (*model.Counter, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, name, initial_count, increment_step, goal, daily_goal, created_at
		 FROM counters
		 WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	return scanCounter(row)
}

// Insert upserts by primary key, REPLACE-style, so a replayed migration or
// import converges instead of failing on the key.
func (r *CounterRepository) Insert(ctx context.Context, counter *model.Counter) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO counters (id, user_id, name, initial_count, increment_step, goal, daily_goal, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		counter.ID,
		counter.UserID,
		counter.Name,
		counter.InitialCount,
		counter.IncrementStep,
		counter.Goal,
		counter.DailyGoal,
		counter.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert counter: %w", err)
	}
	return nil
}

func (r *CounterRepository) Update(ctx context.Context, counter *model.Counter) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE counters
		 SET name = ?,
		     initial_count = ?,
		     increment_step = ?,
		     goal = ?,
		     daily_goal = ?
		 WHERE id = ? AND user_id = ?`,
		counter.Name,
		counter.InitialCount,
		counter.IncrementStep,
		counter.Goal,
		counter.DailyGoal,
		counter.ID,
		counter.UserID,
	)
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update counter rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a counter; the sessions foreign key cascades, erasing all
// of its history in the same statement.
func (r *CounterRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM counters WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("delete counter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete counter rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// OwnerOf reports which user holds the counter id, regardless of caller.
// Lets write paths that take ids from untrusted data refuse to touch rows
// belonging to someone else.
func (r *CounterRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var owner string
	err := r.db.QueryRowContext(
		ctx,
		`SELECT user_id FROM counters WHERE id = ?`,
		id,
	).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("counter owner: %w", err)
	}
	return owner, nil
}

func (r *CounterRepository) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM counters WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete all counters: %w", err)
	}
	return nil
}

func scanCounter(s scanner) (*model.Counter, error) {
	var counter model.Counter
	err := s.Scan(
		&counter.ID,
		&counter.UserID,
		&counter.Name,
		&counter.InitialCount,
		&counter.IncrementStep,
		&counter.Goal,
		&counter.DailyGoal,
		&counter.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan counter: %w", err)
	}
	return &counter, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}
