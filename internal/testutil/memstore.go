package testutil

import (
	"context"
	"sync"

	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/repository"
)

// MemStore is an in-memory implementation of the user and task store
// contracts for tests that do not need PostgreSQL. It mirrors the real
// store's behavior: uniqueness enforced on insert, owner-scoped task
// lookups, atomic cascade on user deletion, and the repository sentinel
// errors.
type MemStore struct {
	mu         sync.Mutex
	nextUserID int64
	nextTaskID int64
	users      map[int64]*model.User
	tasks      map[int64]*model.Task
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users: make(map[int64]*model.User),
		tasks: make(map[int64]*model.Task),
	}
}

// CreateUser inserts a user, enforcing username and email uniqueness.
func (m *MemStore) CreateUser(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}

	m.nextUserID++
	user.ID = m.nextUserID
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

// GetUserByID retrieves a user by ID.
func (m *MemStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

// GetUserByUsername retrieves a user by username.
func (m *MemStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// ListUsers retrieves all users ordered by ID.
func (m *MemStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var users []*model.User
	for id := int64(1); id <= m.nextUserID; id++ {
		if u, ok := m.users[id]; ok {
			copied := *u
			users = append(users, &copied)
		}
	}
	return users, nil
}

// DeleteUser removes a user and cascades to their tasks.
func (m *MemStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return repository.ErrUserNotFound
	}

	for taskID, task := range m.tasks {
		if task.UserID == id {
			delete(m.tasks, taskID)
		}
	}
	delete(m.users, id)
	return nil
}

// CreateTask inserts a task.
func (m *MemStore) CreateTask(ctx context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTaskID++
	task.ID = m.nextTaskID
	stored := *task
	m.tasks[task.ID] = &stored
	return nil
}

// GetTaskForOwner retrieves a task only if owned by the given user.
func (m *MemStore) GetTaskForOwner(ctx context.Context, ownerID, taskID int64) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.UserID != ownerID {
		return nil, repository.ErrTaskNotFound
	}
	copied := *t
	return &copied, nil
}

// ListTasksForOwner retrieves the given user's tasks ordered by ID.
func (m *MemStore) ListTasksForOwner(ctx context.Context, ownerID int64) ([]*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []*model.Task
	for id := int64(1); id <= m.nextTaskID; id++ {
		if t, ok := m.tasks[id]; ok && t.UserID == ownerID {
			copied := *t
			tasks = append(tasks, &copied)
		}
	}
	return tasks, nil
}

// UpdateTaskForOwner applies a patch to a task owned by the given user.
func (m *MemStore) UpdateTaskForOwner(ctx context.Context, ownerID, taskID int64, patch model.TaskPatch) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.UserID != ownerID {
		return nil, repository.ErrTaskNotFound
	}

	patch.Apply(t)
	copied := *t
	return &copied, nil
}

// DeleteTaskForOwner removes a task owned by the given user.
func (m *MemStore) DeleteTaskForOwner(ctx context.Context, ownerID, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.UserID != ownerID {
		return repository.ErrTaskNotFound
	}

	delete(m.tasks, taskID)
	return nil
}
