package service

import (
	"context"
	"encoding/json"
	"time"

	apperrors "mantra/backend/internal/errors"
	"mantra/backend/internal/model"
	"mantra/backend/internal/repository"
)

type BackupService struct {
	counterRepo *repository.CounterRepository
	sessionRepo *repository.SessionRepository
	prefRepo    *repository.PreferenceRepository
}

func NewBackupService(
	counterRepo *repository.CounterRepository,
	sessionRepo *repository.SessionRepository,
	prefRepo *repository.PreferenceRepository,
) *BackupService {
	return &BackupService{
		counterRepo: counterRepo,
		sessionRepo: sessionRepo,
		prefRepo:    prefRepo,
	}
}

// Export snapshots the user's full dataset into the portable bundle.
func (s *BackupService) Export(ctx context.Context, userID string) (*model.ExportData, *apperrors.APIError) {
	counters, err := s.counterRepo.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to export counters")
	}
	sessions, err := s.sessionRepo.List(ctx, userID, "", 1<<30)
	if err != nil {
		return nil, apperrors.Internal("failed to export sessions")
	}

	return &model.ExportData{
		ExportVersion: model.ExportVersion,
		ExportDate:    time.Now().UnixMilli(),
		Counters:      counters,
		Sessions:      sessions,
	}, nil
}

// ExportFilename follows the backup naming convention,
// mantrajapa_backup_<yyyy-MM-dd_HH-mm-ss>.json.
func ExportFilename(now time.Time) string {
	return "mantrajapa_backup_" + now.Format("2006-01-02_15-04-05") + ".json"
}

// Import replaces the user's entire dataset with the decoded bundle. The
// decode fails closed: any missing or mistyped field rejects the file before
// the store is touched. On success the active-session checkpoint is cleared,
// since an in-progress interval may reference deleted counters.
func (s *BackupService) Import(ctx context.Context, userID string, raw []byte) (*model.ExportData, *apperrors.APIError) {
	data, apiErr := decodeExportData(raw)
	if apiErr != nil {
		return nil, apiErr
	}

	// The REPLACE inserts below are keyed on bundle-supplied ids. An id that
	// already exists under another user must never be touched: reassigning
	// such a row would hand it to the importer and cascade away the owner's
	// history. Checked before any row is deleted.
	for i := range data.Counters {
		owner, err := s.counterRepo.OwnerOf(ctx, data.Counters[i].ID)
		if err != nil && err != repository.ErrNotFound {
			return nil, apperrors.Internal("failed to validate import")
		}
		if err == nil && owner != userID {
			return nil, errInvalidFormat
		}
	}
	for i := range data.Sessions {
		owner, err := s.sessionRepo.OwnerOf(ctx, data.Sessions[i].ID)
		if err != nil && err != repository.ErrNotFound {
			return nil, apperrors.Internal("failed to validate import")
		}
		if err == nil && owner != userID {
			return nil, errInvalidFormat
		}
	}

	if err := s.sessionRepo.DeleteAll(ctx, userID); err != nil {
		return nil, apperrors.Internal("failed to clear sessions")
	}
	if err := s.counterRepo.DeleteAll(ctx, userID); err != nil {
		return nil, apperrors.Internal("failed to clear counters")
	}

	for i := range data.Counters {
		data.Counters[i].UserID = userID
		if err := s.counterRepo.Insert(ctx, &data.Counters[i]); err != nil {
			return nil, apperrors.Internal("failed to import counters")
		}
	}
	for i := range data.Sessions {
		if err := s.sessionRepo.Insert(ctx, &data.Sessions[i]); err != nil {
			return nil, apperrors.Internal("failed to import sessions")
		}
	}

	if err := s.prefRepo.Delete(ctx, userID, repository.KeyActiveSession); err != nil {
		return nil, apperrors.Internal("failed to clear checkpoint")
	}
	return data, nil
}

// Pointer-field documents let the decoder tell a missing field from a zero
// value, so the import can reject incomplete bundles outright.
type exportDocument struct {
	ExportVersion *int              `json:"exportVersion"`
	ExportDate    *int64            `json:"exportDate"`
	Counters      []counterDocument `json:"counters"`
	Sessions      []sessionDocument `json:"sessions"`
}

type counterDocument struct {
	ID            *string `json:"id"`
	Name          *string `json:"name"`
	Count         *int    `json:"count"`
	Malas         *int    `json:"malas"`
	Chants        *int    `json:"chants"`
	InitialCount  *int    `json:"initialCount"`
	IncrementStep *int    `json:"incrementStep"`
	Goal          *int    `json:"goal"`
	DailyGoal     *int    `json:"dailyGoal"`
	CreatedAt     *int64  `json:"createdAt"`
}

type sessionDocument struct {
	ID          *string `json:"id"`
	CounterID   *string `json:"counterId"`
	CounterName *string `json:"counterName"`
	Count       *int    `json:"count"`
	Malas       *int    `json:"malas"`
	Chants      *int    `json:"chants"`
	Timestamp   *int64  `json:"timestamp"`
	Duration    *int64  `json:"duration"`
}

var errInvalidFormat = apperrors.BadRequest("invalid_format", "Invalid import file format")

func decodeExportData(raw []byte) (*model.ExportData, *apperrors.APIError) {
	var doc exportDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errInvalidFormat
	}
	if doc.ExportVersion == nil || *doc.ExportVersion < 1 || doc.ExportDate == nil {
		return nil, errInvalidFormat
	}
	if doc.Counters == nil || doc.Sessions == nil {
		return nil, errInvalidFormat
	}

	data := model.ExportData{
		ExportVersion: *doc.ExportVersion,
		ExportDate:    *doc.ExportDate,
		Counters:      make([]model.Counter, 0, len(doc.Counters)),
		Sessions:      make([]model.Session, 0, len(doc.Sessions)),
	}

	counterIDs := make(map[string]struct{}, len(doc.Counters))
	for _, c := range doc.Counters {
		if c.ID == nil || c.Name == nil || c.Count == nil || c.Malas == nil || c.Chants == nil ||
			c.InitialCount == nil || c.IncrementStep == nil || c.Goal == nil || c.DailyGoal == nil || c.CreatedAt == nil {
			return nil, errInvalidFormat
		}
		counterIDs[*c.ID] = struct{}{}
		data.Counters = append(data.Counters, model.Counter{
			ID:            *c.ID,
			Name:          *c.Name,
			InitialCount:  *c.InitialCount,
			IncrementStep: model.ClampStep(*c.IncrementStep),
			Goal:          model.ClampGoal(*c.Goal),
			DailyGoal:     model.ClampGoal(*c.DailyGoal),
			CreatedAt:     *c.CreatedAt,
		})
	}

	for _, sess := range doc.Sessions {
		if sess.ID == nil || sess.CounterID == nil || sess.CounterName == nil || sess.Count == nil ||
			sess.Malas == nil || sess.Chants == nil || sess.Timestamp == nil || sess.Duration == nil {
			return nil, errInvalidFormat
		}
		// A session pointing at a counter absent from the bundle would break
		// the foreign key halfway through the bulk insert.
		if _, ok := counterIDs[*sess.CounterID]; !ok {
			return nil, errInvalidFormat
		}
		data.Sessions = append(data.Sessions, model.Session{
			ID:          *sess.ID,
			CounterID:   *sess.CounterID,
			CounterName: *sess.CounterName,
			Count:       *sess.Count,
			Malas:       model.CountMalas(*sess.Count),
			Chants:      *sess.Count,
			Timestamp:   *sess.Timestamp,
			Duration:    *sess.Duration,
		})
	}

	return &data, nil
}
