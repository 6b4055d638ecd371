package domain

import (
	"strings"
	"time"
)

// Status is the kanban column a task belongs to.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
)

// Statuses lists the columns in their left-to-right presentation order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusCompleted}

// Valid reports whether s is one of the four board columns.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusCompleted:
		return true
	}
	return false
}

// Title returns the column heading shown on boards.
func (s Status) Title() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusReview:
		return "Review"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

// ParseStatus converts user input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Task is a single work item of a project.
type Task struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Completed       bool       `json:"completed"`
	Order           int        `json:"order"`
	Status          Status     `json:"status,omitempty"`
	AssignedTo      string     `json:"assignedTo,omitempty"`
	StatusTimestamp *time.Time `json:"statusTimestamp,omitempty"`
}

// SetStatus moves the task to s, keeping Completed in sync. The status timestamp
// is refreshed only when the status actually changes.
func (t *Task) SetStatus(s Status, now time.Time) bool {
	if t.Status == s {
		t.Completed = s == StatusCompleted
		return false
	}
	t.Status = s
	t.Completed = s == StatusCompleted
	ts := now.UTC()
	t.StatusTimestamp = &ts
	return true
}

// NormalizeTask fills the status of a task loaded from storage. Records written by
// older clients only carry Completed, so the status is derived from it; afterwards
// Completed is always recomputed from the status.
func NormalizeTask(t Task) Task {
	if !t.Status.Valid() {
		if t.Completed {
			t.Status = StatusCompleted
		} else {
			t.Status = StatusTodo
		}
	}
	t.Completed = t.Status == StatusCompleted
	return t
}

// NormalizeTasks returns a normalized copy of tasks.
func NormalizeTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = NormalizeTask(t)
	}
	return out
}

// CloneTasks returns a copy of tasks that shares no timestamps with the input.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		if t.StatusTimestamp != nil {
			ts := *t.StatusTimestamp
			t.StatusTimestamp = &ts
		}
		out[i] = t
	}
	return out
}
