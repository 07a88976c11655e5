package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a ticket
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusClosed     TaskStatus = "closed"
)

// ActiveStatuses are the states that count towards the one-active-ticket rule.
var ActiveStatuses = []TaskStatus{TaskStatusOpen, TaskStatusInProgress}

var statusLabels = map[TaskStatus]string{
	TaskStatusOpen:       "Open",
	TaskStatusInProgress: "In progress",
	TaskStatusClosed:     "Closed",
}

// Valid reports whether s is one of the known statuses
func (s TaskStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsActive reports whether a ticket in this state is still being worked on
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusOpen || s == TaskStatusInProgress
}

// Label returns the human readable name shown to operators
func (s TaskStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseTaskStatus accepts both the stored form ("in_progress") and the
// enum form ("IN_PROGRESS"), case-insensitively.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

var allowedTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusOpen: {
		TaskStatusOpen:       true,
		TaskStatusInProgress: true,
		TaskStatusClosed:     true,
	},
	TaskStatusInProgress: {
		TaskStatusInProgress: true,
		TaskStatusOpen:       true,
		TaskStatusClosed:     true,
	},
	TaskStatusClosed: {
		TaskStatusClosed: true,
	},
}

// CanTransition reports whether the strict lifecycle allows moving from one
// status to another. Closed tickets are history: nothing leaves CLOSED.
func CanTransition(from, to TaskStatus) bool {
	return allowedTransitions[from][to]
}

// Task is a support ticket
type Task struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"not null;index"`
	ManagerID *uint      `json:"manager_id"`
	Status    TaskStatus `json:"status" gorm:"type:varchar(16);not null;default:open;index"`
	CloseDate *time.Time `json:"close_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	User     *User     `json:"user,omitempty"`
	Manager  *Manager  `json:"manager,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	Messages []Message `json:"messages,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name
func (Task) TableName() string {
	return "tasks"
}

// StatusLabel is rendered next to the raw status in API responses
func (t *Task) StatusLabel() string {
	return t.Status.Label()
}

// TaskResponse is the API shape of a ticket
type TaskResponse struct {
	Task
	StatusDisplay string `json:"status_display"`
}

// ToResponse converts a Task model to a TaskResponse
func (t *Task) ToResponse() TaskResponse {
	return TaskResponse{Task: *t, StatusDisplay: t.StatusLabel()}
}
