// Package migration moves legacy flat-preference data into the relational
// store. The original app kept counters and sessions as JSON arrays under
// the preference keys "counters" and "sessions" before it grew a real
// database; this adapter drains those blobs exactly once per user.
package migration

import (
	"context"
	"encoding/json"
	"fmt"

	"mantra/backend/internal/model"
	"mantra/backend/internal/repository"
)

type LegacyMigrator struct {
	counterRepo *repository.CounterRepository
	sessionRepo *repository.SessionRepository
	prefRepo    *repository.PreferenceRepository
}

func NewLegacyMigrator(
	counterRepo *repository.CounterRepository,
	sessionRepo *repository.SessionRepository,
	prefRepo *repository.PreferenceRepository,
) *LegacyMigrator {
	return &LegacyMigrator{
		counterRepo: counterRepo,
		sessionRepo: sessionRepo,
		prefRepo:    prefRepo,
	}
}

// Run migrates every user that still carries legacy blobs. Errors stop the
// sweep; the failed user's flag stays unset so the whole migration retries
// in full on the next launch.
func (m *LegacyMigrator) Run(ctx context.Context) error {
	userIDs, err := m.prefRepo.LegacyUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list legacy users: %w", err)
	}
	for _, userID := range userIDs {
		if err := m.MigrateUser(ctx, userID); err != nil {
			return fmt.Errorf("migrate user %s: %w", userID, err)
		}
	}
	return nil
}

// MigrateUser transfers one user's legacy counters and sessions into the
// relational store, then sets the migrated flag. Guarded by the flag, so a
// second invocation performs zero inserts.
func (m *LegacyMigrator) MigrateUser(ctx context.Context, userID string) error {
	flag, err := m.prefRepo.Get(ctx, userID, repository.KeyMigratedFlag)
	if err != nil && err != repository.ErrNotFound {
		return fmt.Errorf("read migrated flag: %w", err)
	}
	if flag == "true" {
		return nil
	}

	countersJSON, err := m.prefRepo.Get(ctx, userID, repository.KeyLegacyCounters)
	if err != nil && err != repository.ErrNotFound {
		return fmt.Errorf("read legacy counters: %w", err)
	}
	if err == nil {
		var counters []model.Counter
		if err := json.Unmarshal([]byte(countersJSON), &counters); err != nil {
			return fmt.Errorf("decode legacy counters: %w", err)
		}
		for i := range counters {
			// REPLACE inserts must not reassign a row another user holds.
			owner, err := m.counterRepo.OwnerOf(ctx, counters[i].ID)
			if err != nil && err != repository.ErrNotFound {
				return fmt.Errorf("check legacy counter owner: %w", err)
			}
			if err == nil && owner != userID {
				return fmt.Errorf("legacy counter %s belongs to another user", counters[i].ID)
			}
			counters[i].UserID = userID
			counters[i].IncrementStep = model.ClampStep(counters[i].IncrementStep)
			counters[i].Goal = model.ClampGoal(counters[i].Goal)
			counters[i].DailyGoal = model.ClampGoal(counters[i].DailyGoal)
			if err := m.counterRepo.Insert(ctx, &counters[i]); err != nil {
				return fmt.Errorf("insert legacy counter: %w", err)
			}
		}
	}

	sessionsJSON, err := m.prefRepo.Get(ctx, userID, repository.KeyLegacySessions)
	if err != nil && err != repository.ErrNotFound {
		return fmt.Errorf("read legacy sessions: %w", err)
	}
	if err == nil {
		var sessions []model.Session
		if err := json.Unmarshal([]byte(sessionsJSON), &sessions); err != nil {
			return fmt.Errorf("decode legacy sessions: %w", err)
		}
		for i := range sessions {
			owner, err := m.sessionRepo.OwnerOf(ctx, sessions[i].ID)
			if err != nil && err != repository.ErrNotFound {
				return fmt.Errorf("check legacy session owner: %w", err)
			}
			if err == nil && owner != userID {
				return fmt.Errorf("legacy session %s belongs to another user", sessions[i].ID)
			}
			counterOwner, err := m.counterRepo.OwnerOf(ctx, sessions[i].CounterID)
			if err != nil {
				return fmt.Errorf("check legacy session counter: %w", err)
			}
			if counterOwner != userID {
				return fmt.Errorf("legacy session %s references another user's counter", sessions[i].ID)
			}
			if err := m.sessionRepo.Insert(ctx, &sessions[i]); err != nil {
				return fmt.Errorf("insert legacy session: %w", err)
			}
		}
	}

	if err := m.prefRepo.Set(ctx, userID, repository.KeyMigratedFlag, "true"); err != nil {
		return fmt.Errorf("set migrated flag: %w", err)
	}
	return nil
}
