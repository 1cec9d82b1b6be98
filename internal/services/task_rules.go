package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/adanyl0v/go-planner/internal/models"
)

// memberResolver is the part of WorkspaceService the task rules need.
type memberResolver interface {
	RoleOf(ctx context.Context, workspaceID, userID string) (models.Role, error)
}

// checkAssignee rejects an assignee who is not a member of the workspace.
// A nil or empty assignee always passes.
func checkAssignee(ctx context.Context, members memberResolver, workspaceID string, assigneeID *string) error {
	if assigneeID == nil || *assigneeID == "" {
		return nil
	}
	_, err := members.RoleOf(ctx, workspaceID, *assigneeID)
	if errors.Is(err, ErrNoAccess) {
		return fmt.Errorf("%w: %s", ErrAssigneeNotMember, *assigneeID)
	}
	return err
}

// validateTask checks the invariants every stored task satisfies.
func validateTask(task *models.Task) error {
	if !task.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTaskStatus, task.Status)
	}
	if !task.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, task.Priority)
	}
	if task.EstimatedHours < 0 {
		return ErrNegativeEstimate
	}
	if task.Position < 0 {
		return ErrInvalidPosition
	}
	if task.Status != models.StatusBacklog && task.EstimatedHours <= 0 {
		return ErrEstimateRequired
	}
	return nil
}

// applyTaskUpdate mutates task in place. External tasks reject changes
// to anything but assignee, dates and priority. The backlog position
// belongs to the external source too.
func applyTaskUpdate(task *models.Task, params UpdateTaskParams) error {
	if task.Source == models.SourceExternal {
		switch {
		case params.Title != nil:
			return fmt.Errorf("%w: title", ErrExternalFieldLocked)
		case params.Description != nil:
			return fmt.Errorf("%w: description", ErrExternalFieldLocked)
		case params.EstimatedHours != nil:
			return fmt.Errorf("%w: estimated_hours", ErrExternalFieldLocked)
		case params.Position != nil:
			return fmt.Errorf("%w: position", ErrExternalFieldLocked)
		}
	}

	if params.Title != nil {
		task.Title = *params.Title
	}
	if params.Description != nil {
		task.Description = *params.Description
	}
	if params.EstimatedHours != nil {
		task.EstimatedHours = *params.EstimatedHours
	}
	if params.Priority != nil {
		task.Priority = *params.Priority
	}
	if params.Position != nil {
		task.Position = *params.Position
	}
	if params.AssigneeID != nil {
		if *params.AssigneeID == "" {
			task.AssigneeID = nil
		} else {
			assignee := *params.AssigneeID
			task.AssigneeID = &assignee
		}
	}
	switch {
	case params.ClearStartDate:
		task.StartDate = nil
	case params.StartDate != nil:
		start := models.Day(*params.StartDate)
		task.StartDate = &start
	}
	if params.DueDate != nil {
		due := models.Day(*params.DueDate)
		task.DueDate = &due
	}
	return validateTask(task)
}
