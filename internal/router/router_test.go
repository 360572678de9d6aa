package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"mantra/backend/internal/db"
	"mantra/backend/internal/handler"
	"mantra/backend/internal/repository"
	"mantra/backend/internal/router"
	"mantra/backend/internal/service"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type counterEnvelope struct {
	Counter struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		IncrementStep int    `json:"incrementStep"`
		TotalCount    int    `json:"totalCount"`
	} `json:"counter"`
}

type countersEnvelope struct {
	Counters []struct {
		ID         string `json:"id"`
		TotalCount int    `json:"totalCount"`
		TodayCount int    `json:"todayCount"`
		TotalMalas int    `json:"totalMalas"`
	} `json:"counters"`
}

type stateEnvelope struct {
	State struct {
		Active        bool   `json:"active"`
		DisplayCount  int    `json:"displayCount"`
		SessionTotal  int    `json:"sessionTotal"`
		SessionID     string `json:"sessionId"`
		LifetimeTotal int    `json:"lifetimeTotal"`
		TodayTotal    int    `json:"todayTotal"`
	} `json:"state"`
}

type sessionsEnvelope struct {
	Sessions []struct {
		ID        string `json:"id"`
		CounterID string `json:"counterId"`
		Count     int    `json:"count"`
		Malas     int    `json:"malas"`
	} `json:"sessions"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestCountingFlow(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "japa@example.com", "123456")

	// Counter with step 12 and a starting offset from pre-app history.
	status, body := requestJSON(t, engine, http.MethodPost, "/api/counters", user.Token, map[string]interface{}{
		"name":          "Gayatri",
		"initialCount":  108,
		"incrementStep": 12,
		"goal":          100000,
		"dailyGoal":     324,
	})
	if status != http.StatusCreated {
		t.Fatalf("create counter failed with %d: %s", status, string(body))
	}
	var created counterEnvelope
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal counter: %v", err)
	}
	if created.Counter.TotalCount != 108 {
		t.Fatalf("lifetime total must include the initial offset, got %d", created.Counter.TotalCount)
	}

	status, _ = requestJSON(t, engine, http.MethodPost, "/api/practice/select", user.Token, map[string]string{
		"counterId": created.Counter.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("select failed with %d", status)
	}

	// Tapping without an interval in progress on a second device conflicts.
	other := registerUser(t, engine, "other@example.com", "123456")
	status, body = requestJSON(t, engine, http.MethodPost, "/api/practice/tap", other.Token, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for tap without interval, got %d: %s", status, string(body))
	}

	var state stateEnvelope
	for i := 0; i < 10; i++ {
		status, body = requestJSON(t, engine, http.MethodPost, "/api/practice/tap", user.Token, nil)
		if status != http.StatusOK {
			t.Fatalf("tap failed with %d: %s", status, string(body))
		}
	}
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.State.SessionTotal != 120 {
		t.Fatalf("session total after 10 taps of 12 = %d, want 120", state.State.SessionTotal)
	}
	if state.State.DisplayCount != 12 {
		t.Fatalf("display count must wrap by modulo: got %d, want 12", state.State.DisplayCount)
	}
	if state.State.LifetimeTotal != 228 {
		t.Fatalf("lifetime total = %d, want 108+120", state.State.LifetimeTotal)
	}

	status, _ = requestJSON(t, engine, http.MethodPost, "/api/practice/finish", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("finish failed with %d", status)
	}

	status, body = requestJSON(t, engine, http.MethodGet, "/api/sessions?limit=10", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("history failed with %d", status)
	}
	var history sessionsEnvelope
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Sessions) != 1 {
		t.Fatalf("expected 1 finished session, got %d", len(history.Sessions))
	}
	if history.Sessions[0].Count != 120 || history.Sessions[0].Malas != 1 {
		t.Fatalf("history row count/malas = %d/%d, want 120/1", history.Sessions[0].Count, history.Sessions[0].Malas)
	}

	// The other user's history stays empty.
	status, body = requestJSON(t, engine, http.MethodGet, "/api/sessions", other.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("other history failed with %d", status)
	}
	var otherHistory sessionsEnvelope
	if err := json.Unmarshal(body, &otherHistory); err != nil {
		t.Fatalf("unmarshal other history: %v", err)
	}
	if len(otherHistory.Sessions) != 0 {
		t.Fatalf("expected no sessions for other user, got %d", len(otherHistory.Sessions))
	}
}

func TestExportImportEndpoints(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "backup@example.com", "123456")

	status, body := requestJSON(t, engine, http.MethodPost, "/api/counters", user.Token, map[string]interface{}{
		"name": "Om", "incrementStep": 1,
	})
	if status != http.StatusCreated {
		t.Fatalf("create counter failed with %d: %s", status, string(body))
	}
	var created counterEnvelope
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal counter: %v", err)
	}

	requestOK(t, engine, http.MethodPost, "/api/practice/select", user.Token, map[string]string{"counterId": created.Counter.ID})
	requestOK(t, engine, http.MethodPost, "/api/practice/tap", user.Token, nil)
	requestOK(t, engine, http.MethodPost, "/api/practice/finish", user.Token, nil)

	status, exported := requestJSON(t, engine, http.MethodGet, "/api/export", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("export failed with %d", status)
	}

	// Garbage must be rejected without touching the store.
	status, body = requestRaw(t, engine, http.MethodPost, "/api/import", user.Token, []byte("{broken"))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed import, got %d", status)
	}
	var importErr apiErrorEnvelope
	if err := json.Unmarshal(body, &importErr); err != nil {
		t.Fatalf("unmarshal import error: %v", err)
	}
	if importErr.Error.Code != "invalid_format" {
		t.Fatalf("expected invalid_format, got %s", importErr.Error.Code)
	}

	status, _ = requestRaw(t, engine, http.MethodPost, "/api/import", user.Token, exported)
	if status != http.StatusOK {
		t.Fatalf("round-trip import failed with %d", status)
	}

	status, body = requestJSON(t, engine, http.MethodGet, "/api/counters", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("list counters failed with %d", status)
	}
	var listed countersEnvelope
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("unmarshal counters: %v", err)
	}
	if len(listed.Counters) != 1 || listed.Counters[0].TotalCount != 1 {
		t.Fatalf("round trip lost data: %+v", listed.Counters)
	}
}

func TestDeleteCounterDropsHistoryAndCheckpoint(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "delete@example.com", "123456")

	status, body := requestJSON(t, engine, http.MethodPost, "/api/counters", user.Token, map[string]interface{}{
		"name": "Temp", "incrementStep": 1,
	})
	if status != http.StatusCreated {
		t.Fatalf("create counter failed with %d", status)
	}
	var created counterEnvelope
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal counter: %v", err)
	}

	requestOK(t, engine, http.MethodPost, "/api/practice/select", user.Token, map[string]string{"counterId": created.Counter.ID})
	requestOK(t, engine, http.MethodPost, "/api/practice/tap", user.Token, nil)

	status, _ = requestJSON(t, engine, http.MethodDelete, "/api/counters/"+created.Counter.ID, user.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete counter failed with %d", status)
	}

	status, body = requestJSON(t, engine, http.MethodGet, "/api/practice/state", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("state failed with %d", status)
	}
	var state stateEnvelope
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.State.Active {
		t.Fatal("checkpoint must be discarded with its counter")
	}

	status, body = requestJSON(t, engine, http.MethodGet, "/api/sessions", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("history failed with %d", status)
	}
	var history sessionsEnvelope
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Sessions) != 0 {
		t.Fatalf("cascade must remove the counter's sessions, got %d", len(history.Sessions))
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestEngine(t *testing.T) http.Handler {
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

	userRepo := repository.NewUserRepository(database)
	counterRepo := repository.NewCounterRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	prefRepo := repository.NewPreferenceRepository(database)

	authService := service.NewAuthService(userRepo, "test-secret", 24*time.Hour)
	counterService := service.NewCounterService(counterRepo, sessionRepo, prefRepo)
	practiceService := service.NewPracticeService(counterRepo, sessionRepo, prefRepo)
	backupService := service.NewBackupService(counterRepo, sessionRepo, prefRepo)

	return router.New(
		authService,
		handler.NewAuthHandler(authService),
		handler.NewCounterHandler(counterService),
		handler.NewPracticeHandler(practiceService),
		handler.NewBackupHandler(backupService),
		[]string{"http://localhost:5173"},
	)
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func requestOK(t *testing.T, server http.Handler, method, path, token string, body interface{}) {
	t.Helper()
	status, raw := requestJSON(t, server, method, path, token, body)
	if status != http.StatusOK {
		t.Fatalf("%s %s failed with status %d: %s", method, path, status, string(raw))
	}
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}
	return requestRaw(t, server, method, path, token, payload)
}

func requestRaw(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	payload []byte,
) (int, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
