package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"

	"mantra/backend/internal/db"
	"mantra/backend/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func createTestUser(t *testing.T, database *sql.DB) string {
	t.Helper()
	users := NewUserRepository(database)
	user := model.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UnixMilli(),
		UpdatedAt:    time.Now().UnixMilli(),
	}
	if err := users.Create(context.Background(), &user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user.ID
}

func createTestCounter(t *testing.T, database *sql.DB, userID, name string) model.Counter {
	t.Helper()
	counters := NewCounterRepository(database)
	counter := model.Counter{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		IncrementStep: 1,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if err := counters.Insert(context.Background(), &counter); err != nil {
		t.Fatalf("insert counter: %v", err)
	}
	return counter
}

func insertTestSession(t *testing.T, database *sql.DB, counter model.Counter, count int, timestamp int64) model.Session {
	t.Helper()
	sessions := NewSessionRepository(database)
	session := model.Session{
		ID:          uuid.NewString(),
		CounterID:   counter.ID,
		CounterName: counter.Name,
		Count:       count,
		Malas:       model.CountMalas(count),
		Chants:      count,
		Timestamp:   timestamp,
	}
	if err := sessions.Insert(context.Background(), &session); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	return session
}

func TestTotalCountForCounter(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, database)
	counter := createTestCounter(t, database, userID, "Gayatri")
	sessions := NewSessionRepository(database)

	total, err := sessions.TotalCountForCounter(ctx, counter.ID)
	if err != nil {
		t.Fatalf("total count: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 for counter with no sessions, got %d", total)
	}

	now := time.Now().UnixMilli()
	insertTestSession(t, database, counter, 108, now)
	insertTestSession(t, database, counter, 54, now)
	insertTestSession(t, database, counter, 1, now)

	total, err = sessions.TotalCountForCounter(ctx, counter.ID)
	if err != nil {
		t.Fatalf("total count: %v", err)
	}
	if total != 163 {
		t.Fatalf("expected total 163, got %d", total)
	}

	// Another counter's sessions must not bleed into the total.
	other := createTestCounter(t, database, userID, "Other")
	insertTestSession(t, database, other, 500, now)
	total, err = sessions.TotalCountForCounter(ctx, counter.ID)
	if err != nil {
		t.Fatalf("total count: %v", err)
	}
	if total != 163 {
		t.Fatalf("expected total 163 after inserting for another counter, got %d", total)
	}
}

func TestCountForCounterSinceBoundary(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, database)
	counter := createTestCounter(t, database, userID, "Boundary")
	sessions := NewSessionRepository(database)

	midnight := StartOfTodayMillis(time.Now())
	insertTestSession(t, database, counter, 10, midnight)   // 00:00:00.000 today
	insertTestSession(t, database, counter, 20, midnight-1) // 23:59:59.999 yesterday
	insertTestSession(t, database, counter, 30, midnight+1000)

	today, err := sessions.CountForCounterSince(ctx, counter.ID, midnight)
	if err != nil {
		t.Fatalf("count since: %v", err)
	}
	if today != 40 {
		t.Fatalf("expected 40 (midnight session included, pre-midnight excluded), got %d", today)
	}
}

func TestDeleteCounterCascadesSessions(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, database)
	counter := createTestCounter(t, database, userID, "Cascade")
	counters := NewCounterRepository(database)
	sessions := NewSessionRepository(database)

	now := time.Now().UnixMilli()
	for i := 0; i < 3; i++ {
		insertTestSession(t, database, counter, 10, now)
	}

	if err := counters.Delete(ctx, userID, counter.ID); err != nil {
		t.Fatalf("delete counter: %v", err)
	}

	remaining, err := sessions.List(ctx, userID, "", 100)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	for _, s := range remaining {
		if s.CounterID == counter.ID {
			t.Fatalf("session %s survived counter cascade delete", s.ID)
		}
	}
}

func TestDeleteSessionsKeepsCounter(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, database)
	counter := createTestCounter(t, database, userID, "Keep")
	counters := NewCounterRepository(database)
	sessions := NewSessionRepository(database)

	insertTestSession(t, database, counter, 108, time.Now().UnixMilli())
	if err := sessions.DeleteByCounterID(ctx, counter.ID); err != nil {
		t.Fatalf("delete sessions by counter: %v", err)
	}

	if _, err := counters.GetByID(ctx, userID, counter.ID); err != nil {
		t.Fatalf("counter should survive session deletion: %v", err)
	}
	total, err := sessions.TotalCountForCounter(ctx, counter.ID)
	if err != nil {
		t.Fatalf("total count: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected total 0 after history wipe, got %d", total)
	}
}

func TestSessionListOrderAndFilter(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, database)
	a := createTestCounter(t, database, userID, "A")
	b := createTestCounter(t, database, userID, "B")
	sessions := NewSessionRepository(database)

	base := time.Now().UnixMilli()
	oldest := insertTestSession(t, database, a, 1, base-2000)
	insertTestSession(t, database, b, 2, base-1000)
	newest := insertTestSession(t, database, a, 3, base)

	all, err := sessions.List(ctx, userID, "", 100)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if all[0].ID != newest.ID || all[2].ID != oldest.ID {
		t.Fatal("sessions not ordered by start time descending")
	}

	onlyA, err := sessions.List(ctx, userID, a.ID, 100)
	if err != nil {
		t.Fatalf("list sessions for counter: %v", err)
	}
	if len(onlyA) != 2 {
		t.Fatalf("expected 2 sessions for counter A, got %d", len(onlyA))
	}
}

func TestPreferenceOverwriteAndDelete(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, database)
	prefs := NewPreferenceRepository(database)

	if _, err := prefs.Get(ctx, userID, KeyActiveSession); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := prefs.Set(ctx, userID, KeyActiveSession, "first"); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	if err := prefs.Set(ctx, userID, KeyActiveSession, "second"); err != nil {
		t.Fatalf("overwrite preference: %v", err)
	}

	value, err := prefs.Get(ctx, userID, KeyActiveSession)
	if err != nil {
		t.Fatalf("get preference: %v", err)
	}
	if value != "second" {
		t.Fatalf("expected overwritten value, got %q", value)
	}

	if err := prefs.Delete(ctx, userID, KeyActiveSession); err != nil {
		t.Fatalf("delete preference: %v", err)
	}
	if _, err := prefs.Get(ctx, userID, KeyActiveSession); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
