package services

import (
	"strings"
	"time"

	"todo-api/internal/models"
)

// TaskInput is the client-controlled part of a task. Owner, identifier and
// timestamps are never taken from the client.
type TaskInput struct {
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	Completed   Optional[bool]   `json:"completed"`
	Priority    Optional[string] `json:"priority"`
	DueDate     Optional[string] `json:"dueDate"`
}

func (in TaskInput) IsEmpty() bool {
	return !in.Title.Present && !in.Description.Present && !in.Completed.Present &&
		!in.Priority.Present && !in.DueDate.Present
}

var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func IsValidDate(value string) bool {
	value = strings.TrimSpace(value)
	for _, layout := range dueDateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// ValidateTaskInput applies the shared field rules. Title is mandatory only
// when creating.
func ValidateTaskInput(in TaskInput, creating bool) error {
	verr := &ValidationError{}

	switch {
	case !in.Title.Present:
		if creating {
			verr.add("title", "Title is required and must be a string")
		}
	case !in.Title.HasValue() || strings.TrimSpace(in.Title.Value) == "":
		verr.add("title", "Title is required and must be a string")
	}

	if in.Description.Invalid {
		verr.add("description", "Description must be a string")
	}

	if in.Priority.Present && (!in.Priority.HasValue() || !models.IsValidPriority(in.Priority.Value)) {
		verr.add("priority", "Priority must be low, medium, or high")
	}

	if in.DueDate.Invalid || (in.DueDate.HasValue() && in.DueDate.Value != "" && !IsValidDate(in.DueDate.Value)) {
		verr.add("dueDate", "Due date must be a valid date")
	}

	// completed is server-assigned on create.
	if !creating && in.Completed.Present && !in.Completed.HasValue() {
		verr.add("completed", "Completed must be a boolean")
	}

	return verr.orNil()
}

// applyTaskInput copies every present field of in onto task. Input must
// already be validated.
func applyTaskInput(task *models.Task, in TaskInput) {
	if in.Title.HasValue() {
		task.Title = in.Title.Value
	}
	if in.Description.Present {
		task.Description = in.Description.Value
	}
	if in.Completed.HasValue() {
		task.Completed = in.Completed.Value
	}
	if in.Priority.HasValue() {
		task.Priority = in.Priority.Value
	}
	if in.DueDate.Present {
		if in.DueDate.Null || in.DueDate.Value == "" {
			task.DueDate = nil
		} else {
			due := in.DueDate.Value
			task.DueDate = &due
		}
	}
}
