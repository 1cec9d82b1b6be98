package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adanyl0v/go-planner/internal/models"
)

type Strategy string

const (
	// Greedy places each task on the earliest day it fits.
	Greedy Strategy = "greedy"
	// Balanced places each task where the busiest worker is least loaded.
	Balanced Strategy = "balanced"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case Greedy, Balanced:
		return st, nil
	case "":
		return Greedy, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

type SkipReason string

const (
	SkipNoCapacity      SkipReason = "NO_CAPACITY"
	SkipNoAssignee      SkipReason = "NO_ASSIGNEE"
	SkipBlocked         SkipReason = "BLOCKED_BY_DEPENDENCY"
	SkipMissingEstimate SkipReason = "MISSING_ESTIMATE"
)

type Request struct {
	WorkspaceID string
	StartDate   time.Time
	EndDate     time.Time
	Strategy    Strategy
	// AllowOverallocation ignores existing commitments when checking a
	// day. Non-working days and time off still carry no capacity.
	AllowOverallocation bool
	// DryRun computes the plan without writing anything.
	DryRun bool
}

type Placement struct {
	TaskID     string    `json:"task_id"`
	AssigneeID string    `json:"assignee_id"`
	Date       time.Time `json:"date"`
	LastDay    time.Time `json:"last_day"`
	Hours      float64   `json:"hours"`
}

type Skip struct {
	TaskID string     `json:"task_id"`
	Reason SkipReason `json:"reason"`
}

type Result struct {
	WorkspaceID string      `json:"workspace_id"`
	Strategy    Strategy    `json:"strategy"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	DryRun      bool        `json:"dry_run"`
	Scheduled   []Placement `json:"scheduled"`
	Skipped     []Skip      `json:"skipped"`
}

type TaskStore interface {
	// ListUnscheduled returns the workspace tasks without a start date
	// that are not done.
	ListUnscheduled(ctx context.Context, workspaceID string) ([]*models.Task, error)
	// ListFixed returns the workspace tasks that are not done and start on
	// or before to. Tasks that started long ago may still run into the
	// window, so there is no lower bound.
	ListFixed(ctx context.Context, workspaceID string, to time.Time) ([]*models.Task, error)
	GetByIDs(ctx context.Context, workspaceID string, ids []string) ([]*models.Task, error)
	SetSchedule(ctx context.Context, taskID string, startDate time.Time) (*models.Task, error)
}

type DependencyStore interface {
	EdgesForWorkspace(ctx context.Context, workspaceID string) ([]models.Dependency, error)
}

type RosterProvider interface {
	WeeklyCapacity(ctx context.Context, userID string) (float64, error)
	TimeOff(ctx context.Context, userID string, from, to time.Time) ([]models.TimeOff, error)
}

// Transactor runs fn as one unit of work that no other run against the
// same workspace can interleave with. Reads and writes issued through the
// stores with the passed context belong to that unit; an error from fn
// discards every write.
type Transactor interface {
	WithinWorkspace(ctx context.Context, workspaceID string, fn func(ctx context.Context) error) error
}
