package dto

import "github.com/taskhive/taskhive/internal/model"

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Title string `json:"title"`
}

// UpdateTaskRequest represents the request body for patching a task.
// Absent fields leave the corresponding attribute untouched.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// ToPatch converts an UpdateTaskRequest to a TaskPatch.
func (r UpdateTaskRequest) ToPatch() model.TaskPatch {
	return model.TaskPatch{
		Title:       r.Title,
		IsCompleted: r.IsCompleted,
	}
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"is_completed"`
	UserID      int64  `json:"user_id"`
}

// ToTaskResponse converts a Task model to TaskResponse DTO.
func ToTaskResponse(task *model.Task) *TaskResponse {
	return &TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		IsCompleted: task.IsCompleted,
		UserID:      task.UserID,
	}
}

// ToTaskListResponse converts a slice of Task models to response DTOs.
func ToTaskListResponse(tasks []*model.Task) []TaskResponse {
	responses := make([]TaskResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = *ToTaskResponse(task)
	}
	return responses
}
