package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "mantra/backend/internal/errors"
	"mantra/backend/internal/model"
	"mantra/backend/internal/repository"
)

type CounterService struct {
	counterRepo *repository.CounterRepository
	sessionRepo *repository.SessionRepository
	prefRepo    *repository.PreferenceRepository
}

func NewCounterService(
	counterRepo *repository.CounterRepository,
	sessionRepo *repository.SessionRepository,
	prefRepo *repository.PreferenceRepository,
) *CounterService {
	return &CounterService{
		counterRepo: counterRepo,
		sessionRepo: sessionRepo,
		prefRepo:    prefRepo,
	}
}

// CounterInput carries the fields the create/edit dialog collects. Step and
// goals are clamped at this boundary rather than rejected.
type CounterInput struct {
	Name          string `json:"name"`
	InitialCount  int    `json:"initialCount"`
	IncrementStep int    `json:"incrementStep"`
	Goal          int    `json:"goal"`
	DailyGoal     int    `json:"dailyGoal"`
}

// CounterView is a counter plus its derived aggregates. The lifetime total
// is always initialCount plus the session aggregate.
type CounterView struct {
	model.Counter
	TotalCount           int     `json:"totalCount"`
	TotalMalas           int     `json:"totalMalas"`
	TodayCount           int     `json:"todayCount"`
	LifetimeProgress     float64 `json:"lifetimeProgress"`
	DailyProgress        float64 `json:"dailyProgress"`
	LifetimeGoalAchieved bool    `json:"lifetimeGoalAchieved"`
	DailyGoalAchieved    bool    `json:"dailyGoalAchieved"`
}

func (s *CounterService) List(ctx context.Context, userID string) ([]CounterView, *apperrors.APIError) {
	counters, err := s.counterRepo.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list counters")
	}

	views := make([]CounterView, 0, len(counters))
	for _, counter := range counters {
		view, apiErr := s.buildView(ctx, counter)
		if apiErr != nil {
			return nil, apiErr
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *CounterService) Create(ctx context.Context, userID string, input CounterInput) (*CounterView, *apperrors.APIError) {
	if input.Name == "" {
		return nil, apperrors.BadRequest("invalid_name", "counter name is required")
	}

	counter := model.Counter{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          input.Name,
		InitialCount:  input.InitialCount,
		IncrementStep: model.ClampStep(input.IncrementStep),
		Goal:          model.ClampGoal(input.Goal),
		DailyGoal:     model.ClampGoal(input.DailyGoal),
		CreatedAt:     time.Now().UnixMilli(),
	}

	if err := s.counterRepo.Insert(ctx, &counter); err != nil {
		return nil, apperrors.Internal("failed to create counter")
	}
	return s.buildView(ctx, counter)
}

func (s *CounterService) Update(ctx context.Context, userID, id string, input CounterInput) (*CounterView, *apperrors.APIError) {
	if input.Name == "" {
		return nil, apperrors.BadRequest("invalid_name", "counter name is required")
	}

	counter, err := s.counterRepo.GetByID(ctx, userID, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("counter_not_found", "counter not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get counter")
	}

	counter.Name = input.Name
	counter.InitialCount = input.InitialCount
	counter.IncrementStep = model.ClampStep(input.IncrementStep)
	counter.Goal = model.ClampGoal(input.Goal)
	counter.DailyGoal = model.ClampGoal(input.DailyGoal)

	if err := s.counterRepo.Update(ctx, counter); err != nil {
		return nil, apperrors.Internal("failed to update counter")
	}
	return s.buildView(ctx, *counter)
}

// Delete removes the counter and, through the cascade, all of its sessions.
// A checkpoint referencing the deleted counter is discarded silently.
func (s *CounterService) Delete(ctx context.Context, userID, id string) *apperrors.APIError {
	err := s.counterRepo.Delete(ctx, userID, id)
	if err == repository.ErrNotFound {
		return apperrors.NotFound("counter_not_found", "counter not found")
	}
	if err != nil {
		return apperrors.Internal("failed to delete counter")
	}

	if checkpoint := s.loadCheckpoint(ctx, userID); checkpoint != nil && checkpoint.CounterID == id {
		_ = s.prefRepo.Delete(ctx, userID, repository.KeyActiveSession)
	}
	return nil
}

func (s *CounterService) Stats(ctx context.Context, userID, id string) (*CounterView, *apperrors.APIError) {
	counter, err := s.counterRepo.GetByID(ctx, userID, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("counter_not_found", "counter not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get counter")
	}
	return s.buildView(ctx, *counter)
}

func (s *CounterService) History(ctx context.Context, userID, counterID string, limit int) ([]model.Session, *apperrors.APIError) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sessions, err := s.sessionRepo.List(ctx, userID, counterID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to get history")
	}
	return sessions, nil
}

// DeleteSession removes one history row. The in-progress session cannot be
// deleted from history; it is owned by the counting interval.
func (s *CounterService) DeleteSession(ctx context.Context, userID, sessionID string) *apperrors.APIError {
	if checkpoint := s.loadCheckpoint(ctx, userID); checkpoint != nil && checkpoint.SessionID == sessionID {
		return apperrors.Conflict("session_active", "cannot delete the in-progress session", nil)
	}

	if _, err := s.sessionRepo.GetByID(ctx, userID, sessionID); err != nil {
		if err == repository.ErrNotFound {
			return apperrors.NotFound("session_not_found", "session not found")
		}
		return apperrors.Internal("failed to get session")
	}

	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		return apperrors.Internal("failed to delete session")
	}
	return nil
}

// ClearHistory deletes every session of a counter; the counter itself and
// its checkpoint stay untouched.
func (s *CounterService) ClearHistory(ctx context.Context, userID, counterID string) *apperrors.APIError {
	if _, err := s.counterRepo.GetByID(ctx, userID, counterID); err != nil {
		if err == repository.ErrNotFound {
			return apperrors.NotFound("counter_not_found", "counter not found")
		}
		return apperrors.Internal("failed to get counter")
	}
	if err := s.sessionRepo.DeleteByCounterID(ctx, counterID); err != nil {
		return apperrors.Internal("failed to clear history")
	}
	return nil
}

func (s *CounterService) buildView(ctx context.Context, counter model.Counter) (*CounterView, *apperrors.APIError) {
	aggregate, err := s.sessionRepo.TotalCountForCounter(ctx, counter.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to compute lifetime total")
	}
	today, err := s.sessionRepo.TodayCountForCounter(ctx, counter.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to compute today total")
	}

	total := counter.InitialCount + aggregate
	return &CounterView{
		Counter:              counter,
		TotalCount:           total,
		TotalMalas:           model.CountMalas(total),
		TodayCount:           today,
		LifetimeProgress:     counter.LifetimeProgress(total),
		DailyProgress:        counter.DailyProgress(today),
		LifetimeGoalAchieved: counter.IsLifetimeGoalAchieved(total),
		DailyGoalAchieved:    counter.IsDailyGoalAchieved(today),
	}, nil
}

func (s *CounterService) loadCheckpoint(ctx context.Context, userID string) *model.ActiveSession {
	raw, err := s.prefRepo.Get(ctx, userID, repository.KeyActiveSession)
	if err != nil {
		return nil
	}
	var checkpoint model.ActiveSession
	if err := json.Unmarshal([]byte(raw), &checkpoint); err != nil {
		return nil
	}
	return &checkpoint
}
