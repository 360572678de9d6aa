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

// PracticeService is the counting-interval state machine. The whole state of
// an in-progress interval lives in the per-user active_session checkpoint;
// every transition rewrites it, so an interrupted process resumes exactly
// where it left off.
type PracticeService struct {
	counterRepo *repository.CounterRepository
	sessionRepo *repository.SessionRepository
	prefRepo    *repository.PreferenceRepository
}

func NewPracticeService(
	counterRepo *repository.CounterRepository,
	sessionRepo *repository.SessionRepository,
	prefRepo *repository.PreferenceRepository,
) *PracticeService {
	return &PracticeService{
		counterRepo: counterRepo,
		sessionRepo: sessionRepo,
		prefRepo:    prefRepo,
	}
}

// PracticeState is what the counting screen renders. DisplayCount cycles
// within [0, 107]; SessionTotal is the interval's cumulative tap count.
type PracticeState struct {
	Active        bool   `json:"active"`
	CounterID     string `json:"counterId,omitempty"`
	CounterName   string `json:"counterName,omitempty"`
	DisplayCount  int    `json:"displayCount"`
	SessionTotal  int    `json:"sessionTotal"`
	SessionMalas  int    `json:"sessionMalas"`
	StartTime     int64  `json:"startTime,omitempty"`
	ElapsedMillis int64  `json:"elapsedMillis"`
	SessionID     string `json:"sessionId,omitempty"`
	LifetimeTotal int    `json:"lifetimeTotal"`
	TodayTotal    int    `json:"todayTotal"`
}

// State resumes the interval from the checkpoint. A checkpoint whose counter
// has been deleted is discarded silently and the machine reports Idle.
func (s *PracticeService) State(ctx context.Context, userID string) (*PracticeState, *apperrors.APIError) {
	checkpoint, apiErr := s.loadCheckpoint(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	if checkpoint == nil {
		return &PracticeState{}, nil
	}

	counter, err := s.counterRepo.GetByID(ctx, userID, checkpoint.CounterID)
	if err == repository.ErrNotFound {
		if clearErr := s.clearCheckpoint(ctx, userID); clearErr != nil {
			return nil, clearErr
		}
		return &PracticeState{}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get counter")
	}

	return s.buildState(ctx, counter, checkpoint, time.Now().UnixMilli())
}

// Select starts a fresh interval on the given counter, finalizing any
// interval already in progress.
func (s *PracticeService) Select(ctx context.Context, userID, counterID string) (*PracticeState, *apperrors.APIError) {
	counter, err := s.counterRepo.GetByID(ctx, userID, counterID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("counter_not_found", "counter not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get counter")
	}

	if _, apiErr := s.Finish(ctx, userID); apiErr != nil {
		return nil, apiErr
	}

	checkpoint := &model.ActiveSession{
		CounterID:   counter.ID,
		CounterName: counter.Name,
		StartTime:   time.Now().UnixMilli(),
		SessionID:   uuid.NewString(),
	}
	if apiErr := s.saveCheckpoint(ctx, userID, checkpoint); apiErr != nil {
		return nil, apiErr
	}
	return s.buildState(ctx, counter, checkpoint, checkpoint.StartTime)
}

// Tap advances the interval by the counter's step. The display count wraps
// through the 0-107 cycle with modulo, never a reset to zero. The first tap
// creates the session row; later taps update it.
func (s *PracticeService) Tap(ctx context.Context, userID string) (*PracticeState, *apperrors.APIError) {
	counter, checkpoint, apiErr := s.requireActive(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	step := model.ClampStep(counter.IncrementStep)
	wasZero := checkpoint.SessionTotalTaps == 0

	checkpoint.CurrentTapCount = (checkpoint.CurrentTapCount + step) % model.MalaSize
	checkpoint.SessionTotalTaps += step

	now := time.Now().UnixMilli()
	session := s.sessionRow(counter, checkpoint, now)
	if wasZero {
		if err := s.sessionRepo.Insert(ctx, session); err != nil {
			return nil, apperrors.Internal("failed to create session")
		}
	} else {
		if err := s.sessionRepo.Update(ctx, session); err != nil {
			return nil, apperrors.Internal("failed to update session")
		}
	}

	if apiErr := s.saveCheckpoint(ctx, userID, checkpoint); apiErr != nil {
		return nil, apiErr
	}
	return s.buildState(ctx, counter, checkpoint, now)
}

// Decrement undoes one step. It is a no-op when the interval holds fewer
// taps than the step; reaching exactly zero deletes the session row and
// clears the checkpoint, cancelling the interval.
func (s *PracticeService) Decrement(ctx context.Context, userID string) (*PracticeState, *apperrors.APIError) {
	counter, checkpoint, apiErr := s.requireActive(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UnixMilli()
	step := model.ClampStep(counter.IncrementStep)
	if checkpoint.SessionTotalTaps < step {
		return s.buildState(ctx, counter, checkpoint, now)
	}

	checkpoint.SessionTotalTaps -= step
	if checkpoint.CurrentTapCount >= step {
		checkpoint.CurrentTapCount -= step
	} else {
		checkpoint.CurrentTapCount = model.MalaSize - (step - checkpoint.CurrentTapCount)
	}

	if checkpoint.SessionTotalTaps == 0 {
		if err := s.sessionRepo.Delete(ctx, checkpoint.SessionID); err != nil {
			return nil, apperrors.Internal("failed to delete session")
		}
		if clearErr := s.clearCheckpoint(ctx, userID); clearErr != nil {
			return nil, clearErr
		}
		return &PracticeState{}, nil
	}

	if err := s.sessionRepo.Update(ctx, s.sessionRow(counter, checkpoint, now)); err != nil {
		return nil, apperrors.Internal("failed to update session")
	}
	if apiErr := s.saveCheckpoint(ctx, userID, checkpoint); apiErr != nil {
		return nil, apiErr
	}
	return s.buildState(ctx, counter, checkpoint, now)
}

// Finish persists the final row state and returns to Idle. The session row
// stays behind as permanent history.
func (s *PracticeService) Finish(ctx context.Context, userID string) (*PracticeState, *apperrors.APIError) {
	checkpoint, apiErr := s.loadCheckpoint(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	if checkpoint == nil {
		return &PracticeState{}, nil
	}

	if checkpoint.SessionTotalTaps > 0 {
		counter, err := s.counterRepo.GetByID(ctx, userID, checkpoint.CounterID)
		if err == nil {
			now := time.Now().UnixMilli()
			if updateErr := s.sessionRepo.Update(ctx, s.sessionRow(counter, checkpoint, now)); updateErr != nil {
				return nil, apperrors.Internal("failed to finalize session")
			}
		} else if err != repository.ErrNotFound {
			return nil, apperrors.Internal("failed to get counter")
		}
	}

	if clearErr := s.clearCheckpoint(ctx, userID); clearErr != nil {
		return nil, clearErr
	}
	return &PracticeState{}, nil
}

// Reset cancels the current interval: the session row is deleted entirely
// and a fresh interval starts on the same counter.
func (s *PracticeService) Reset(ctx context.Context, userID string) (*PracticeState, *apperrors.APIError) {
	counter, checkpoint, apiErr := s.requireActive(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	if checkpoint.SessionTotalTaps > 0 {
		if err := s.sessionRepo.Delete(ctx, checkpoint.SessionID); err != nil {
			return nil, apperrors.Internal("failed to delete session")
		}
	}
	return s.freshInterval(ctx, userID, counter)
}

// ResetCounter erases the counter's entire history, lifetime total
// included, and starts a brand-new interval.
func (s *PracticeService) ResetCounter(ctx context.Context, userID string) (*PracticeState, *apperrors.APIError) {
	counter, _, apiErr := s.requireActive(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	if err := s.sessionRepo.DeleteByCounterID(ctx, counter.ID); err != nil {
		return nil, apperrors.Internal("failed to reset counter")
	}
	return s.freshInterval(ctx, userID, counter)
}

// Tick recomputes elapsed time and, when a row exists, re-persists its
// duration and counts. Lost per-tap writes get resynced here.
func (s *PracticeService) Tick(ctx context.Context, userID string) (*PracticeState, *apperrors.APIError) {
	counter, checkpoint, apiErr := s.requireActive(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UnixMilli()
	if checkpoint.SessionTotalTaps > 0 {
		if err := s.sessionRepo.Update(ctx, s.sessionRow(counter, checkpoint, now)); err != nil {
			return nil, apperrors.Internal("failed to resync session")
		}
	}
	return s.buildState(ctx, counter, checkpoint, now)
}

func (s *PracticeService) freshInterval(ctx context.Context, userID string, counter *model.Counter) (*PracticeState, *apperrors.APIError) {
	checkpoint := &model.ActiveSession{
		CounterID:   counter.ID,
		CounterName: counter.Name,
		StartTime:   time.Now().UnixMilli(),
		SessionID:   uuid.NewString(),
	}
	if apiErr := s.saveCheckpoint(ctx, userID, checkpoint); apiErr != nil {
		return nil, apiErr
	}
	return s.buildState(ctx, counter, checkpoint, checkpoint.StartTime)
}

func (s *PracticeService) requireActive(ctx context.Context, userID string) (*model.Counter, *model.ActiveSession, *apperrors.APIError) {
	checkpoint, apiErr := s.loadCheckpoint(ctx, userID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	if checkpoint == nil {
		return nil, nil, apperrors.Conflict("no_active_session", "no counting interval in progress", nil)
	}

	counter, err := s.counterRepo.GetByID(ctx, userID, checkpoint.CounterID)
	if err == repository.ErrNotFound {
		if clearErr := s.clearCheckpoint(ctx, userID); clearErr != nil {
			return nil, nil, clearErr
		}
		return nil, nil, apperrors.Conflict("no_active_session", "no counting interval in progress", nil)
	}
	if err != nil {
		return nil, nil, apperrors.Internal("failed to get counter")
	}
	return counter, checkpoint, nil
}

// sessionRow builds the persisted form of the interval. The mala invariant
// holds on every write: malas is recomputed as total/108.
func (s *PracticeService) sessionRow(counter *model.Counter, checkpoint *model.ActiveSession, nowMillis int64) *model.Session {
	return &model.Session{
		ID:          checkpoint.SessionID,
		CounterID:   counter.ID,
		CounterName: checkpoint.CounterName,
		Count:       checkpoint.SessionTotalTaps,
		Malas:       model.CountMalas(checkpoint.SessionTotalTaps),
		Chants:      checkpoint.SessionTotalTaps,
		Timestamp:   checkpoint.StartTime,
		Duration:    nowMillis - checkpoint.StartTime,
	}
}

func (s *PracticeService) buildState(ctx context.Context, counter *model.Counter, checkpoint *model.ActiveSession, nowMillis int64) (*PracticeState, *apperrors.APIError) {
	aggregate, err := s.sessionRepo.TotalCountForCounter(ctx, counter.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to compute lifetime total")
	}
	today, err := s.sessionRepo.TodayCountForCounter(ctx, counter.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to compute today total")
	}

	return &PracticeState{
		Active:        true,
		CounterID:     counter.ID,
		CounterName:   checkpoint.CounterName,
		DisplayCount:  checkpoint.CurrentTapCount,
		SessionTotal:  checkpoint.SessionTotalTaps,
		SessionMalas:  model.CountMalas(checkpoint.SessionTotalTaps),
		StartTime:     checkpoint.StartTime,
		ElapsedMillis: nowMillis - checkpoint.StartTime,
		SessionID:     checkpoint.SessionID,
		LifetimeTotal: counter.InitialCount + aggregate,
		TodayTotal:    today,
	}, nil
}

func (s *PracticeService) loadCheckpoint(ctx context.Context, userID string) (*model.ActiveSession, *apperrors.APIError) {
	raw, err := s.prefRepo.Get(ctx, userID, repository.KeyActiveSession)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load checkpoint")
	}

	var checkpoint model.ActiveSession
	if err := json.Unmarshal([]byte(raw), &checkpoint); err != nil {
		// A corrupt checkpoint is discarded, not surfaced.
		if clearErr := s.clearCheckpoint(ctx, userID); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	return &checkpoint, nil
}

func (s *PracticeService) saveCheckpoint(ctx context.Context, userID string, checkpoint *model.ActiveSession) *apperrors.APIError {
	raw, err := json.Marshal(checkpoint)
	if err != nil {
		return apperrors.Internal("failed to encode checkpoint")
	}
	if err := s.prefRepo.Set(ctx, userID, repository.KeyActiveSession, string(raw)); err != nil {
		return apperrors.Internal("failed to save checkpoint")
	}
	return nil
}

func (s *PracticeService) clearCheckpoint(ctx context.Context, userID string) *apperrors.APIError {
	if err := s.prefRepo.Delete(ctx, userID, repository.KeyActiveSession); err != nil {
		return apperrors.Internal("failed to clear checkpoint")
	}
	return nil
}
