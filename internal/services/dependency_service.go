package services

import (
	"context"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/graph"
	"github.com/adanyl0v/go-planner/internal/models"
)

type dependencyServiceImpl struct {
	logger   zerolog.Logger
	pgPool   *pgxpool.Pool
	tx       *Transactor
	maxDepth int
}

func NewDependencyService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
	tx *Transactor,
	maxDepth int,
) DependencyService {
	return &dependencyServiceImpl{
		logger:   logger,
		pgPool:   pgPool,
		tx:       tx,
		maxDepth: maxDepth,
	}
}

func (s *dependencyServiceImpl) AddDependency(ctx context.Context, workspaceID, taskID, dependsOnID string) (*models.Dependency, error) {
	dep := &models.Dependency{
		WorkspaceID:     workspaceID,
		TaskID:          taskID,
		DependsOnTaskID: dependsOnID,
		Type:            models.DependencyFinishToStart,
		CreatedAt:       time.Now(),
	}

	err := s.tx.WithinWorkspace(ctx, workspaceID, func(ctx context.Context) error {
		if err := s.checkTasksExist(ctx, workspaceID, taskID, dependsOnID); err != nil {
			return err
		}

		edges, err := s.EdgesForWorkspace(ctx, workspaceID)
		if err != nil {
			return err
		}
		g := graph.FromDependencies(edges, graph.WithMaxDepth(s.maxDepth))
		dep.ID, err = g.AddEdge(taskID, dependsOnID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("task_id", taskID).
				Str("depends_on_task_id", dependsOnID).
				Msg("rejected dependency")
			return err
		}

		const insertDependencyQuery = `
INSERT INTO task_dependencies (id,
                               workspace_id,
                               task_id,
                               depends_on_task_id,
                               type,
                               created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
		_, err = conn(ctx, s.pgPool).Exec(
			ctx,
			insertDependencyQuery,
			dep.ID,
			dep.WorkspaceID,
			dep.TaskID,
			dep.DependsOnTaskID,
			dep.Type,
			dep.CreatedAt,
		)
		if err != nil {
			if isPgError(err, pgerrcode.UniqueViolation) {
				return graph.ErrDuplicateDependency
			}
			s.logger.Error().
				Err(err).
				Msg("failed to insert dependency")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dependency_id", dep.ID).
		Str("task_id", taskID).
		Str("depends_on_task_id", dependsOnID).
		Msg("added dependency")
	return dep, nil
}

func (s *dependencyServiceImpl) checkTasksExist(ctx context.Context, workspaceID string, ids ...string) error {
	const countTasksQuery = `
SELECT COUNT(DISTINCT id)
FROM tasks
WHERE workspace_id = $1 AND
      id = ANY($2)
`
	var found int
	err := conn(ctx, s.pgPool).QueryRow(ctx, countTasksQuery, workspaceID, ids).Scan(&found)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to count tasks")
		return err
	}

	distinct := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	if found != len(distinct) {
		return ErrTaskNotFound
	}
	return nil
}

func (s *dependencyServiceImpl) RemoveDependency(ctx context.Context, workspaceID, dependencyID string) error {
	const deleteDependencyQuery = `
DELETE FROM task_dependencies
WHERE id = $1 AND workspace_id = $2
`
	tag, err := conn(ctx, s.pgPool).Exec(ctx, deleteDependencyQuery, dependencyID, workspaceID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("dependency_id", dependencyID).
			Msg("failed to delete dependency")
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDependencyNotFound
	}

	s.logger.Info().
		Str("dependency_id", dependencyID).
		Msg("removed dependency")
	return nil
}

func (s *dependencyServiceImpl) ListForTask(ctx context.Context, workspaceID, taskID string) ([]models.Dependency, error) {
	const query = `
SELECT id, workspace_id, task_id, depends_on_task_id, type, created_at
FROM task_dependencies
WHERE workspace_id = $1 AND
      (task_id = $2 OR depends_on_task_id = $2)
ORDER BY created_at
`
	return s.queryDependencies(ctx, query, workspaceID, taskID)
}

func (s *dependencyServiceImpl) EdgesForWorkspace(ctx context.Context, workspaceID string) ([]models.Dependency, error) {
	const query = `
SELECT id, workspace_id, task_id, depends_on_task_id, type, created_at
FROM task_dependencies
WHERE workspace_id = $1
ORDER BY created_at
`
	return s.queryDependencies(ctx, query, workspaceID)
}

func (s *dependencyServiceImpl) queryDependencies(ctx context.Context, query string, args ...any) ([]models.Dependency, error) {
	rows, err := conn(ctx, s.pgPool).Query(ctx, query, args...)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select dependencies")
		return nil, err
	}
	defer rows.Close()

	deps := make([]models.Dependency, 0)
	for rows.Next() {
		var d models.Dependency
		err = rows.Scan(
			&d.ID,
			&d.WorkspaceID,
			&d.TaskID,
			&d.DependsOnTaskID,
			&d.Type,
			&d.CreatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan dependency")
			return nil, err
		}
		deps = append(deps, d)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	return deps, nil
}
