package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/models"
)

const taskColumns = `id,
       workspace_id,
       title,
       description,
       estimated_hours,
       status,
       priority,
       assignee_id,
       start_date,
       due_date,
       source,
       position,
       created_at,
       updated_at`

type taskServiceImpl struct {
	logger  zerolog.Logger
	pgPool  *pgxpool.Pool
	members memberResolver
}

// NewTaskService checks assignees against workspaces before storing them.
func NewTaskService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
	workspaces WorkspaceService,
) TaskService {
	return &taskServiceImpl{
		logger:  logger,
		pgPool:  pgPool,
		members: workspaces,
	}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	task := new(models.Task)
	err := row.Scan(
		&task.ID,
		&task.WorkspaceID,
		&task.Title,
		&task.Description,
		&task.EstimatedHours,
		&task.Status,
		&task.Priority,
		&task.AssigneeID,
		&task.StartDate,
		&task.DueDate,
		&task.Source,
		&task.Position,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskServiceImpl) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := conn(ctx, s.pgPool).Query(ctx, query, args...)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select tasks")
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan task")
			return nil, err
		}
		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	return tasks, nil
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	now := time.Now()
	task := &models.Task{
		WorkspaceID:    params.WorkspaceID,
		Title:          params.Title,
		Description:    params.Description,
		EstimatedHours: params.EstimatedHours,
		Status:         params.Status,
		Priority:       params.Priority,
		AssigneeID:     params.AssigneeID,
		Source:         params.Source,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if task.Status == "" {
		task.Status = models.StatusBacklog
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMed
	}
	if task.Source == "" {
		task.Source = models.SourceManual
	}
	if params.StartDate != nil {
		start := models.Day(*params.StartDate)
		task.StartDate = &start
	}
	if params.DueDate != nil {
		due := models.Day(*params.DueDate)
		task.DueDate = &due
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}
	if err := checkAssignee(ctx, s.members, task.WorkspaceID, task.AssigneeID); err != nil {
		s.logger.Warn().
			Err(err).
			Str("workspace_id", task.WorkspaceID).
			Msg("rejected task assignee")
		return nil, err
	}

	taskUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate task uuid")
		return nil, err
	}
	task.ID = taskUUID.String()

	const insertTaskQuery = `
INSERT INTO tasks (id,
                   workspace_id,
                   title,
                   description,
                   estimated_hours,
                   status,
                   priority,
                   assignee_id,
                   start_date,
                   due_date,
                   source,
                   position,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
        (SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE workspace_id = $2),
        $12, $13)
RETURNING position
`
	err = conn(ctx, s.pgPool).QueryRow(
		ctx,
		insertTaskQuery,
		task.ID,
		task.WorkspaceID,
		task.Title,
		task.Description,
		task.EstimatedHours,
		task.Status,
		task.Priority,
		task.AssigneeID,
		task.StartDate,
		task.DueDate,
		task.Source,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.Position)
	if err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			s.logger.Error().
				Str("workspace_id", task.WorkspaceID).
				Msg("assignee or workspace not found")
			return nil, ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Msg("failed to insert task")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("workspace_id", task.WorkspaceID).
		Msg("created task")
	return task, nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, workspaceID, taskID string) (*models.Task, error) {
	return s.getTask(ctx, workspaceID, taskID, false)
}

func (s *taskServiceImpl) getTask(ctx context.Context, workspaceID, taskID string, forUpdate bool) (*models.Task, error) {
	query := `SELECT ` + taskColumns + `
FROM tasks
WHERE id = $1 AND workspace_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	task, err := scanTask(conn(ctx, s.pgPool).QueryRow(ctx, query, taskID, workspaceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("task_id", taskID).
				Str("workspace_id", workspaceID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to select task")
		return nil, err
	}
	return task, nil
}

func (s *taskServiceImpl) ListTasks(ctx context.Context, params ListTasksParams) ([]*models.Task, error) {
	if params.Limit == 0 {
		params.Limit = 100
	}

	var sb strings.Builder
	args := []any{params.WorkspaceID}
	sb.WriteString(`SELECT ` + taskColumns + `
FROM tasks
WHERE workspace_id = $1`)
	if params.Status != "" {
		if !params.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTaskStatus, params.Status)
		}
		args = append(args, params.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if params.AssigneeID != "" {
		args = append(args, params.AssigneeID)
		fmt.Fprintf(&sb, " AND assignee_id = $%d", len(args))
	}
	args = append(args, params.Limit, params.Offset)
	fmt.Fprintf(&sb, "\nORDER BY position, created_at\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	tasks, err := s.queryTasks(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(tasks)).
		Str("workspace_id", params.WorkspaceID).
		Msg("selected tasks")
	return tasks, nil
}

func (s *taskServiceImpl) ListTasksStartingBetween(
	ctx context.Context,
	workspaceID string,
	from, to time.Time,
	withUnscheduled bool,
) ([]*models.Task, error) {
	const query = `SELECT ` + taskColumns + `
FROM tasks
WHERE workspace_id = $1 AND
      ((start_date BETWEEN $2 AND $3) OR ($4 AND start_date IS NULL))
ORDER BY position, created_at
`
	return s.queryTasks(ctx, query, workspaceID, models.Day(from), models.Day(to), withUnscheduled)
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error) {
	var task *models.Task
	err := s.withinTx(ctx, func(ctx context.Context) error {
		var err error
		task, err = s.getTask(ctx, params.WorkspaceID, params.ID, true)
		if err != nil {
			return err
		}
		if err = applyTaskUpdate(task, params); err != nil {
			return err
		}
		if err = checkAssignee(ctx, s.members, params.WorkspaceID, params.AssigneeID); err != nil {
			s.logger.Warn().
				Err(err).
				Str("task_id", task.ID).
				Msg("rejected task assignee")
			return err
		}
		return s.saveTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("workspace_id", task.WorkspaceID).
		Msg("updated task")
	return task, nil
}

func (s *taskServiceImpl) UpdateTaskStatus(ctx context.Context, params UpdateTaskStatusParams) (*models.Task, error) {
	if !params.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskStatus, params.Status)
	}

	var task *models.Task
	err := s.withinTx(ctx, func(ctx context.Context) error {
		var err error
		task, err = s.getTask(ctx, params.WorkspaceID, params.ID, true)
		if err != nil {
			return err
		}
		task.Status = params.Status
		if err = validateTask(task); err != nil {
			return err
		}
		return s.saveTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("status", string(task.Status)).
		Msg("updated task status")
	return task, nil
}

func (s *taskServiceImpl) saveTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()

	const updateTaskQuery = `
UPDATE tasks
SET title = $1,
    description = $2,
    estimated_hours = $3,
    status = $4,
    priority = $5,
    assignee_id = $6,
    start_date = $7,
    due_date = $8,
    position = $9,
    updated_at = $10
WHERE id = $11
`
	_, err := conn(ctx, s.pgPool).Exec(
		ctx,
		updateTaskQuery,
		task.Title,
		task.Description,
		task.EstimatedHours,
		task.Status,
		task.Priority,
		task.AssigneeID,
		task.StartDate,
		task.DueDate,
		task.Position,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			return ErrUserNotFound
		}
		s.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Msg("failed to update task")
		return err
	}
	s.logger.Debug().
		Str("task_id", task.ID).
		Msg("saved task")
	return nil
}

func (s *taskServiceImpl) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txCtxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = fn(context.WithValue(ctx, txCtxKey{}, tx))
	if err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return err
	}
	return nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, workspaceID, taskID string) error {
	const deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1 AND workspace_id = $2
`
	tag, err := conn(ctx, s.pgPool).Exec(
		ctx,
		deleteTaskQuery,
		taskID,
		workspaceID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to delete task")
		return err
	}
	if tag.RowsAffected() == 0 {
		s.logger.Error().
			Str("task_id", taskID).
			Str("workspace_id", workspaceID).
			Msg("task not found")
		return ErrTaskNotFound
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("workspace_id", workspaceID).
		Msg("deleted task")
	return nil
}

func (s *taskServiceImpl) ListUnscheduled(ctx context.Context, workspaceID string) ([]*models.Task, error) {
	const query = `SELECT ` + taskColumns + `
FROM tasks
WHERE workspace_id = $1 AND
      start_date IS NULL AND
      status <> 'DONE'
ORDER BY position, created_at
`
	return s.queryTasks(ctx, query, workspaceID)
}

func (s *taskServiceImpl) ListFixed(ctx context.Context, workspaceID string, to time.Time) ([]*models.Task, error) {
	const query = `SELECT ` + taskColumns + `
FROM tasks
WHERE workspace_id = $1 AND
      start_date <= $2 AND
      status <> 'DONE'
ORDER BY start_date, position
`
	return s.queryTasks(ctx, query, workspaceID, models.Day(to))
}

func (s *taskServiceImpl) GetByIDs(ctx context.Context, workspaceID string, ids []string) ([]*models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `SELECT ` + taskColumns + `
FROM tasks
WHERE workspace_id = $1 AND
      id = ANY($2)
`
	return s.queryTasks(ctx, query, workspaceID, ids)
}

func (s *taskServiceImpl) SetSchedule(ctx context.Context, taskID string, startDate time.Time) (*models.Task, error) {
	const query = `
UPDATE tasks
SET start_date = $1,
    updated_at = $2
WHERE id = $3
RETURNING ` + taskColumns

	task, err := scanTask(conn(ctx, s.pgPool).QueryRow(ctx, query, models.Day(startDate), time.Now(), taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to set task start date")
		return nil, err
	}
	return task, nil
}
