// Package model defines domain entities for the application.
package model

// Task represents a single to-do item owned by exactly one user.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"is_completed"`
	UserID      int64  `json:"user_id"`
}

// TaskPatch describes a partial update to a task.
// Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	IsCompleted *bool
}

// IsEmpty reports whether the patch carries no changes.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.IsCompleted == nil
}

// Apply copies the present fields onto the task.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
}
