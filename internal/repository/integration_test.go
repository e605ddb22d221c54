//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/testutil"
)

// ============================================================================
// User Repository Integration Tests
// ============================================================================

func TestIntegrationUserRepository_CreateUser(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("CreateUser should assign an ID")
	}

	retrieved, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if retrieved.Username != "alice" || retrieved.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", retrieved)
	}
	if retrieved.PasswordHash != "hash" {
		t.Errorf("PasswordHash mismatch: got %q", retrieved.PasswordHash)
	}

	byName, err := repo.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("ID mismatch: got %d, want %d", byName.ID, user.ID)
	}
}

func TestIntegrationUserRepository_UniqueConstraints(t *testing.T) {
	ctx, repo := newTestEnv(t)

	first := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	if err := repo.CreateUser(ctx, first); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	sameName := &model.User{Username: "alice", Email: "other@example.com", PasswordHash: "h"}
	if err := repo.CreateUser(ctx, sameName); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username: expected ErrUsernameTaken, got %v", err)
	}

	sameEmail := &model.User{Username: "bob", Email: "alice@example.com", PasswordHash: "h"}
	if err := repo.CreateUser(ctx, sameEmail); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: expected ErrEmailTaken, got %v", err)
	}
}

func TestIntegrationUserRepository_GetMissing(t *testing.T) {
	ctx, repo := newTestEnv(t)

	if _, err := repo.GetUserByID(ctx, 12345); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIntegrationUserRepository_ListUsers(t *testing.T) {
	ctx, repo := newTestEnv(t)

	for _, name := range []string{"alice", "bob", "carol"} {
		u := &model.User{Username: name, Email: name + "@example.com", PasswordHash: "h"}
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", name, err)
		}
	}

	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	// Ordered by ID
	for i := 1; i < len(users); i++ {
		if users[i].ID <= users[i-1].ID {
			t.Errorf("users not ordered by ID: %d before %d", users[i-1].ID, users[i].ID)
		}
	}
}

func TestIntegrationUserRepository_DeleteCascades(t *testing.T) {
	ctx, repo := newTestEnv(t)

	alice := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	bob := &model.User{Username: "bob", Email: "bob@example.com", PasswordHash: "h"}
	for _, u := range []*model.User{alice, bob} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		task := &model.Task{Title: "alice task", UserID: alice.ID}
		if err := repo.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}
	bobTask := &model.Task{Title: "bob task", UserID: bob.ID}
	if err := repo.CreateTask(ctx, bobTask); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := repo.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	// User gone
	if _, err := repo.GetUserByID(ctx, alice.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound after delete, got %v", err)
	}

	// No orphan rows left behind
	var count int
	if err := repo.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM tasks WHERE user_id = $1", alice.ID).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 orphan tasks, got %d", count)
	}

	// Bob untouched
	if _, err := repo.GetTaskForOwner(ctx, bob.ID, bobTask.ID); err != nil {
		t.Errorf("bob's task should survive: %v", err)
	}
}

func TestIntegrationUserRepository_DeleteMissing(t *testing.T) {
	ctx, repo := newTestEnv(t)

	if err := repo.DeleteUser(ctx, 12345); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// ============================================================================
// Task Repository Integration Tests
// ============================================================================

func TestIntegrationTaskRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newTestEnv(t)
	alice, bob := seedTwoUsers(ctx, t, repo)

	task := &model.Task{Title: "buy milk", UserID: alice.ID}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("CreateTask should assign an ID")
	}

	retrieved, err := repo.GetTaskForOwner(ctx, alice.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTaskForOwner failed: %v", err)
	}
	if retrieved.Title != "buy milk" || retrieved.IsCompleted {
		t.Errorf("unexpected task: %+v", retrieved)
	}

	// The same row is invisible to another user
	if _, err := repo.GetTaskForOwner(ctx, bob.ID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("foreign lookup: expected ErrTaskNotFound, got %v", err)
	}
}

func TestIntegrationTaskRepository_ListScoped(t *testing.T) {
	ctx, repo := newTestEnv(t)
	alice, bob := seedTwoUsers(ctx, t, repo)

	for _, owner := range []*model.User{alice, alice, bob} {
		task := &model.Task{Title: "task", UserID: owner.ID}
		if err := repo.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	aliceTasks, err := repo.ListTasksForOwner(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListTasksForOwner failed: %v", err)
	}
	if len(aliceTasks) != 2 {
		t.Errorf("expected 2 tasks for alice, got %d", len(aliceTasks))
	}
	for _, task := range aliceTasks {
		if task.UserID != alice.ID {
			t.Errorf("foreign task in alice's list: %+v", task)
		}
	}
}

func TestIntegrationTaskRepository_UpdatePartial(t *testing.T) {
	ctx, repo := newTestEnv(t)
	alice, bob := seedTwoUsers(ctx, t, repo)

	task := &model.Task{Title: "buy milk", UserID: alice.ID}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	done := true
	updated, err := repo.UpdateTaskForOwner(ctx, alice.ID, task.ID, model.TaskPatch{IsCompleted: &done})
	if err != nil {
		t.Fatalf("UpdateTaskForOwner failed: %v", err)
	}
	if !updated.IsCompleted || updated.Title != "buy milk" {
		t.Errorf("completion-only patch should keep title, got %+v", updated)
	}

	title := "buy oat milk"
	updated, err = repo.UpdateTaskForOwner(ctx, alice.ID, task.ID, model.TaskPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateTaskForOwner failed: %v", err)
	}
	if updated.Title != "buy oat milk" || !updated.IsCompleted {
		t.Errorf("title-only patch should keep completion, got %+v", updated)
	}

	// Foreign owner cannot modify it, and the row is unchanged
	other := "hijacked"
	if _, err := repo.UpdateTaskForOwner(ctx, bob.ID, task.ID, model.TaskPatch{Title: &other}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("foreign update: expected ErrTaskNotFound, got %v", err)
	}
	current, err := repo.GetTaskForOwner(ctx, alice.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTaskForOwner failed: %v", err)
	}
	if current.Title != "buy oat milk" {
		t.Errorf("task modified by foreign update: %+v", current)
	}
}

func TestIntegrationTaskRepository_Delete(t *testing.T) {
	ctx, repo := newTestEnv(t)
	alice, bob := seedTwoUsers(ctx, t, repo)

	task := &model.Task{Title: "buy milk", UserID: alice.ID}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := repo.DeleteTaskForOwner(ctx, bob.ID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("foreign delete: expected ErrTaskNotFound, got %v", err)
	}
	if err := repo.DeleteTaskForOwner(ctx, alice.ID, 99999); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("missing delete: expected ErrTaskNotFound, got %v", err)
	}

	if err := repo.DeleteTaskForOwner(ctx, alice.ID, task.ID); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if _, err := repo.GetTaskForOwner(ctx, alice.ID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound after delete, got %v", err)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

func seedTwoUsers(ctx context.Context, t *testing.T, repo *Repository) (*model.User, *model.User) {
	t.Helper()

	alice := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	bob := &model.User{Username: "bob", Email: "bob@example.com", PasswordHash: "h"}
	for _, u := range []*model.User{alice, bob} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", u.Username, err)
		}
	}
	return alice, bob
}
