package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/handler/dto"
	"github.com/taskhive/taskhive/internal/middleware"
	"github.com/taskhive/taskhive/internal/service"
	"github.com/taskhive/taskhive/internal/testutil"
)

// newTestAPI wires real services over an in-memory store into the same
// route tree the server uses, so tests exercise the full request path:
// routing, auth middleware, handlers and services.
func newTestAPI(t *testing.T) *chi.Mux {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := testutil.NewMemStore()
	codec := auth.NewTokenCodec("api-test-secret", "HS256", 30*time.Minute)

	users := service.NewUserService(store, codec, nil, nil)
	tasks := service.NewTaskService(store, nil)

	h := New()
	authHandler := NewAuthHandler(users, logger)
	userHandler := NewUserHandler(users, logger)
	taskHandler := NewTaskHandler(tasks, logger)

	requireAuth := middleware.Auth(middleware.AuthConfig{
		Logger: logger,
		Codec:  codec,
		Users:  store,
	})

	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	r.Get("/", h.Hello)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", taskHandler.List)
		r.Post("/", taskHandler.Create)
		r.Get("/{id}", taskHandler.Get)
		r.Patch("/{id}", taskHandler.Update)
		r.Delete("/{id}", taskHandler.Delete)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", userHandler.List)
		r.Get("/{id}", userHandler.Get)
		r.Delete("/{id}", userHandler.Delete)
	})

	return r
}

// doJSON performs a request against the test API and returns the
// recorded response.
func doJSON(t *testing.T, api http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// registerAndLogin creates an account and returns its bearer token.
func registerAndLogin(t *testing.T, api http.Handler, username, email, password string) string {
	t.Helper()

	rec := doJSON(t, api, http.MethodPost, "/auth/register", "", dto.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodPost, "/auth/login", "", dto.LoginRequest{
		Username: username,
		Password: password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
	}

	var tok dto.TokenResponse
	decodeInto(t, rec, &tok)
	if tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Fatalf("unexpected token response: %+v", tok)
	}
	return tok.AccessToken
}

func TestAPI_Register(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/auth/register", "", dto.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "s3cret",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var user dto.UserResponse
	decodeInto(t, rec, &user)
	if user.ID == 0 || user.Username != "alice" || user.Email != "alice@example.com" {
		t.Errorf("unexpected user response: %+v", user)
	}

	// The response must not leak credential material
	if bytes.Contains(rec.Body.Bytes(), []byte("s3cret")) {
		t.Error("response body must not contain the password")
	}
}

func TestAPI_Register_Conflict(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	registerAndLogin(t, api, "alice", "alice@example.com", "pw")

	tests := []struct {
		name string
		req  dto.RegisterRequest
	}{
		{"same username", dto.RegisterRequest{Username: "alice", Email: "new@example.com", Password: "pw"}},
		{"same email", dto.RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "pw"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, api, http.MethodPost, "/auth/register", "", tt.req)
			if rec.Code != http.StatusConflict {
				t.Errorf("expected 409, got %d: %s", rec.Code, rec.Body.String())
			}

			var errResp dto.ErrorResponse
			decodeInto(t, rec, &errResp)
			if errResp.Code != "USER_EXISTS" {
				t.Errorf("expected USER_EXISTS, got %q", errResp.Code)
			}
		})
	}
}

func TestAPI_Register_Validation(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	tests := []struct {
		name     string
		req      dto.RegisterRequest
		wantCode string
	}{
		{"empty username", dto.RegisterRequest{Username: "", Email: "a@example.com", Password: "pw"}, "INVALID_USERNAME"},
		{"bad email", dto.RegisterRequest{Username: "a", Email: "not-an-email", Password: "pw"}, "INVALID_EMAIL"},
		{"empty password", dto.RegisterRequest{Username: "a", Email: "a@example.com", Password: ""}, "INVALID_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, api, http.MethodPost, "/auth/register", "", tt.req)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
			}

			var errResp dto.ErrorResponse
			decodeInto(t, rec, &errResp)
			if errResp.Code != tt.wantCode {
				t.Errorf("expected %s, got %q", tt.wantCode, errResp.Code)
			}
		})
	}
}

func TestAPI_Login_Failures(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	registerAndLogin(t, api, "alice", "alice@example.com", "pw")

	// Wrong password and unknown user yield the same response
	for _, req := range []dto.LoginRequest{
		{Username: "alice", Password: "wrong"},
		{Username: "mallory", Password: "pw"},
	} {
		rec := doJSON(t, api, http.MethodPost, "/auth/login", "", req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("login %s: expected 401, got %d", req.Username, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Errorf("login %s: missing WWW-Authenticate header", req.Username)
		}

		var errResp dto.ErrorResponse
		decodeInto(t, rec, &errResp)
		if errResp.Code != "INVALID_CREDENTIALS" {
			t.Errorf("login %s: expected INVALID_CREDENTIALS, got %q", req.Username, errResp.Code)
		}
	}
}

func TestAPI_Tasks_RequireAuth(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/tasks", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Error("missing WWW-Authenticate header")
	}

	rec = doJSON(t, api, http.MethodPost, "/tasks", "garbage-token", dto.CreateTaskRequest{Title: "x"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestAPI_TaskLifecycle(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := registerAndLogin(t, api, "alice", "alice@example.com", "pw")

	// Create: completion defaults to false
	rec := doJSON(t, api, http.MethodPost, "/tasks", token, dto.CreateTaskRequest{Title: "buy milk"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var task dto.TaskResponse
	decodeInto(t, rec, &task)
	if task.ID == 0 || task.Title != "buy milk" || task.IsCompleted {
		t.Fatalf("unexpected task: %+v", task)
	}

	taskPath := "/tasks/" + itoa(task.ID)

	// Get it back
	rec = doJSON(t, api, http.MethodGet, taskPath, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	// Patch completion only
	done := true
	rec = doJSON(t, api, http.MethodPatch, taskPath, token, dto.UpdateTaskRequest{IsCompleted: &done})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeInto(t, rec, &task)
	if !task.IsCompleted || task.Title != "buy milk" {
		t.Errorf("patch should only change completion, got %+v", task)
	}

	// Empty title patch is rejected
	empty := ""
	rec = doJSON(t, api, http.MethodPatch, taskPath, token, dto.UpdateTaskRequest{Title: &empty})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty title patch: expected 422, got %d", rec.Code)
	}

	// Delete
	rec = doJSON(t, api, http.MethodDelete, taskPath, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	// Gone afterwards
	rec = doJSON(t, api, http.MethodGet, taskPath, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/tasks", token, nil)
	var remaining []dto.TaskResponse
	decodeInto(t, rec, &remaining)
	if len(remaining) != 0 {
		t.Errorf("expected empty task list, got %d", len(remaining))
	}
}

func TestAPI_Tasks_OwnerIsolation(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	aliceToken := registerAndLogin(t, api, "alice", "alice@example.com", "pw")
	bobToken := registerAndLogin(t, api, "bob", "bob@example.com", "pw")

	rec := doJSON(t, api, http.MethodPost, "/tasks", aliceToken, dto.CreateTaskRequest{Title: "alice task"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	var task dto.TaskResponse
	decodeInto(t, rec, &task)

	taskPath := "/tasks/" + itoa(task.ID)
	done := true

	// Bob sees alice's task and a nonexistent one identically: 404
	checks := []struct {
		name string
		rec  *httptest.ResponseRecorder
	}{
		{"get foreign", doJSON(t, api, http.MethodGet, taskPath, bobToken, nil)},
		{"patch foreign", doJSON(t, api, http.MethodPatch, taskPath, bobToken, dto.UpdateTaskRequest{IsCompleted: &done})},
		{"delete foreign", doJSON(t, api, http.MethodDelete, taskPath, bobToken, nil)},
		{"get missing", doJSON(t, api, http.MethodGet, "/tasks/9999", bobToken, nil)},
	}
	for _, c := range checks {
		if c.rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", c.name, c.rec.Code)
		}
	}

	// Bob's list is empty, alice's task untouched
	rec = doJSON(t, api, http.MethodGet, "/tasks", bobToken, nil)
	var bobTasks []dto.TaskResponse
	decodeInto(t, rec, &bobTasks)
	if len(bobTasks) != 0 {
		t.Errorf("bob should have no tasks, got %d", len(bobTasks))
	}

	rec = doJSON(t, api, http.MethodGet, taskPath, aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("alice's task should survive, got %d", rec.Code)
	}
}

func TestAPI_InvalidTaskID(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := registerAndLogin(t, api, "alice", "alice@example.com", "pw")

	for _, path := range []string{"/tasks/abc", "/tasks/-1", "/tasks/0"} {
		rec := doJSON(t, api, http.MethodGet, path, token, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("GET %s: expected 422, got %d", path, rec.Code)
		}
	}
}

func TestAPI_DeleteUser_CascadesAndRevokes(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := registerAndLogin(t, api, "alice", "alice@example.com", "pw")

	rec := doJSON(t, api, http.MethodPost, "/tasks", token, dto.CreateTaskRequest{Title: "doomed"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}

	// Find alice's ID
	rec = doJSON(t, api, http.MethodGet, "/users", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", rec.Code)
	}
	var users []dto.UserResponse
	decodeInto(t, rec, &users)
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}

	rec = doJSON(t, api, http.MethodDelete, "/users/"+itoa(users[0].ID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete user: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	// The still-valid token no longer resolves to an account
	rec = doJSON(t, api, http.MethodGet, "/tasks", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after account deletion, got %d", rec.Code)
	}

	// And the username is free for re-registration with a clean slate
	newToken := registerAndLogin(t, api, "alice", "alice@example.com", "newpw")
	rec = doJSON(t, api, http.MethodGet, "/tasks", newToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tasks []dto.TaskResponse
	decodeInto(t, rec, &tasks)
	if len(tasks) != 0 {
		t.Errorf("re-registered account should inherit no tasks, got %d", len(tasks))
	}
}

func TestAPI_Users_Get(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := registerAndLogin(t, api, "alice", "alice@example.com", "pw")

	rec := doJSON(t, api, http.MethodGet, "/users/1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var user dto.UserResponse
	decodeInto(t, rec, &user)
	if user.Username != "alice" {
		t.Errorf("unexpected user: %+v", user)
	}

	rec = doJSON(t, api, http.MethodGet, "/users/42", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
