package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taskhive/taskhive/internal/model"
)

// ErrTaskNotFound covers both a missing task and a task owned by
// another user. The two cases are deliberately indistinguishable so
// callers cannot probe for the existence of other users' tasks.
var ErrTaskNotFound = errors.New("task not found")

// CreateTask inserts a new task and fills in the generated ID.
func (r *Repository) CreateTask(ctx context.Context, task *model.Task) error {
	query := `
		INSERT INTO tasks (title, is_completed, user_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		task.Title,
		task.IsCompleted,
		task.UserID,
	).Scan(&task.ID)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetTaskForOwner retrieves a task only if it is owned by the given user.
func (r *Repository) GetTaskForOwner(ctx context.Context, ownerID, taskID int64) (*model.Task, error) {
	query := `
		SELECT id, title, is_completed, user_id
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`

	var task model.Task
	err := r.pool.QueryRow(ctx, query, taskID, ownerID).Scan(
		&task.ID,
		&task.Title,
		&task.IsCompleted,
		&task.UserID,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

// ListTasksForOwner retrieves all tasks owned by the given user,
// ordered by ID. Tasks of other users are never returned.
func (r *Repository) ListTasksForOwner(ctx context.Context, ownerID int64) ([]*model.Task, error) {
	query := `
		SELECT id, title, is_completed, user_id
		FROM tasks
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		var task model.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.IsCompleted, &task.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// UpdateTaskForOwner applies a partial update to a task owned by the
// given user. The row is locked, patched and written back inside one
// transaction so concurrent patches never interleave.
func (r *Repository) UpdateTaskForOwner(ctx context.Context, ownerID, taskID int64, patch model.TaskPatch) (*model.Task, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var task model.Task
	err = tx.QueryRow(ctx, `
		SELECT id, title, is_completed, user_id
		FROM tasks
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, taskID, ownerID).Scan(
		&task.ID,
		&task.Title,
		&task.IsCompleted,
		&task.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}

	patch.Apply(&task)

	_, err = tx.Exec(ctx, `
		UPDATE tasks
		SET title = $2, is_completed = $3
		WHERE id = $1
	`, task.ID, task.Title, task.IsCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}

	return &task, nil
}

// DeleteTaskForOwner removes a task owned by the given user.
func (r *Repository) DeleteTaskForOwner(ctx context.Context, ownerID, taskID int64) error {
	query := `DELETE FROM tasks WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, taskID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}

	return nil
}
