package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskhive/taskhive/internal/metrics"
	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/repository"
)

// Task service errors.
var (
	ErrInvalidTitle = errors.New("title is required")
	// ErrTaskNotFound is returned both when no such task exists and
	// when it belongs to another user.
	ErrTaskNotFound = errors.New("task not found")
)

// TaskStore is the persistence boundary for tasks. Every read and
// mutation is scoped to an owner.
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTaskForOwner(ctx context.Context, ownerID, taskID int64) (*model.Task, error)
	ListTasksForOwner(ctx context.Context, ownerID int64) ([]*model.Task, error)
	UpdateTaskForOwner(ctx context.Context, ownerID, taskID int64, patch model.TaskPatch) (*model.Task, error)
	DeleteTaskForOwner(ctx context.Context, ownerID, taskID int64) error
}

// TaskService handles task business logic. All operations act on
// behalf of an authenticated owner and never touch another user's
// tasks.
type TaskService struct {
	store   TaskStore
	metrics metrics.Recorder
}

// NewTaskService creates a new TaskService.
func NewTaskService(store TaskStore, recorder metrics.Recorder) *TaskService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TaskService{
		store:   store,
		metrics: recorder,
	}
}

// List returns all tasks owned by the given user.
func (s *TaskService) List(ctx context.Context, owner *model.User) ([]*model.Task, error) {
	tasks, err := s.store.ListTasksForOwner(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Get returns a single task owned by the given user. A task that
// exists but belongs to someone else reports ErrTaskNotFound.
func (s *TaskService) Get(ctx context.Context, owner *model.User, taskID int64) (*model.Task, error) {
	task, err := s.store.GetTaskForOwner(ctx, owner.ID, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// Create adds a task for the given owner. Completion defaults to false.
func (s *TaskService) Create(ctx context.Context, owner *model.User, title string) (*model.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidTitle
	}

	task := &model.Task{
		Title:       title,
		IsCompleted: false,
		UserID:      owner.ID,
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.metrics.IncTaskCreated()

	return task, nil
}

// Update applies a partial update to a task owned by the given user.
func (s *TaskService) Update(ctx context.Context, owner *model.User, taskID int64, patch model.TaskPatch) (*model.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, ErrInvalidTitle
	}

	// Nothing to write; still confirms the task exists and is owned
	// by the caller.
	if patch.IsEmpty() {
		return s.Get(ctx, owner, taskID)
	}

	task, err := s.store.UpdateTaskForOwner(ctx, owner.ID, taskID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.metrics.IncTaskUpdated()

	return task, nil
}

// Delete removes a task owned by the given user.
func (s *TaskService) Delete(ctx context.Context, owner *model.User, taskID int64) error {
	if err := s.store.DeleteTaskForOwner(ctx, owner.ID, taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.metrics.IncTaskDeleted()

	return nil
}
