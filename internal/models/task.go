package models

import "time"

type TaskStatus string

const (
	StatusBacklog    TaskStatus = "BACKLOG"
	StatusPlanned    TaskStatus = "PLANNED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusBlocked    TaskStatus = "BLOCKED"
	StatusDone       TaskStatus = "DONE"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusPlanned, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow  Priority = "LOW"
	PriorityMed  Priority = "MED"
	PriorityHigh Priority = "HIGH"
)

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities so that a higher rank is scheduled first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMed:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type TaskSource string

const (
	SourceManual   TaskSource = "manual"
	SourceExternal TaskSource = "external"
)

type Task struct {
	ID             string
	WorkspaceID    string
	Title          string
	Description    string
	EstimatedHours float64
	Status         TaskStatus
	Priority       Priority
	AssigneeID     *string
	StartDate      *time.Time
	DueDate        *time.Time
	Source         TaskSource
	Position       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (t *Task) Scheduled() bool {
	return t.StartDate != nil
}

func (t *Task) Assignee() string {
	if t.AssigneeID == nil {
		return ""
	}
	return *t.AssigneeID
}
