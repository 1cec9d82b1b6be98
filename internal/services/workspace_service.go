package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/models"
)

type workspaceServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewWorkspaceService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) WorkspaceService {
	return &workspaceServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *workspaceServiceImpl) CreateWorkspace(ctx context.Context, ownerID, name string) (*models.Workspace, error) {
	now := time.Now()
	ws := &models.Workspace{
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	id, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate workspace uuid")
		return nil, err
	}
	ws.ID = id.String()

	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertWorkspaceQuery = `
INSERT INTO workspaces (id,
                        name,
                        owner_id,
                        created_at,
                        updated_at)
VALUES ($1, $2, $3, $4, $5)
`
	_, err = tx.Exec(ctx, insertWorkspaceQuery, ws.ID, ws.Name, ws.OwnerID, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().
			Err(err).
			Msg("failed to insert workspace")
		return nil, err
	}

	_, err = s.insertMember(context.WithValue(ctx, txCtxKey{}, tx), ws.ID, ownerID, models.RoleOwner)
	if err != nil {
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return nil, err
	}

	s.logger.Info().
		Str("workspace_id", ws.ID).
		Str("user_id", ownerID).
		Msg("created workspace")
	return ws, nil
}

func (s *workspaceServiceImpl) ListWorkspaces(ctx context.Context, userID string) ([]*models.Workspace, error) {
	const query = `
SELECT w.id, w.name, w.owner_id, w.created_at, w.updated_at
FROM workspaces w
JOIN workspace_members m ON m.workspace_id = w.id
WHERE m.user_id = $1
ORDER BY w.created_at
`
	rows, err := conn(ctx, s.pgPool).Query(ctx, query, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select workspaces")
		return nil, err
	}
	defer rows.Close()

	list := make([]*models.Workspace, 0)
	for rows.Next() {
		ws := new(models.Workspace)
		err = rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan workspace")
			return nil, err
		}
		list = append(list, ws)
	}
	return list, rows.Err()
}

func (s *workspaceServiceImpl) AddMember(ctx context.Context, workspaceID, userID string, role models.Role) (*models.Member, error) {
	if !role.Valid() || role == models.RoleOwner {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.insertMember(ctx, workspaceID, userID, role)
}

func (s *workspaceServiceImpl) insertMember(ctx context.Context, workspaceID, userID string, role models.Role) (*models.Member, error) {
	m := &models.Member{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		CreatedAt:   time.Now(),
	}

	const insertMemberQuery = `
INSERT INTO workspace_members (workspace_id,
                               user_id,
                               role,
                               created_at)
VALUES ($1, $2, $3, $4)
`
	_, err := conn(ctx, s.pgPool).Exec(ctx, insertMemberQuery, m.WorkspaceID, m.UserID, m.Role, m.CreatedAt)
	if err != nil {
		switch {
		case isPgError(err, pgerrcode.UniqueViolation):
			return nil, ErrMemberAlreadyExists
		case isPgError(err, pgerrcode.ForeignKeyViolation):
			return nil, ErrUserNotFound
		}
		s.logger.Error().
			Err(err).
			Str("workspace_id", workspaceID).
			Str("user_id", userID).
			Msg("failed to insert workspace member")
		return nil, err
	}

	s.logger.Info().
		Str("workspace_id", workspaceID).
		Str("user_id", userID).
		Str("role", string(role)).
		Msg("added workspace member")
	return m, nil
}

func (s *workspaceServiceImpl) ListMembers(ctx context.Context, workspaceID string) ([]*models.Member, error) {
	const query = `
SELECT workspace_id, user_id, role, created_at
FROM workspace_members
WHERE workspace_id = $1
ORDER BY created_at
`
	rows, err := conn(ctx, s.pgPool).Query(ctx, query, workspaceID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("workspace_id", workspaceID).
			Msg("failed to select workspace members")
		return nil, err
	}
	defer rows.Close()

	list := make([]*models.Member, 0)
	for rows.Next() {
		m := new(models.Member)
		err = rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan workspace member")
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *workspaceServiceImpl) RoleOf(ctx context.Context, workspaceID, userID string) (models.Role, error) {
	const selectRoleQuery = `
SELECT role
FROM workspace_members
WHERE workspace_id = $1 AND user_id = $2
`
	var role models.Role
	err := conn(ctx, s.pgPool).QueryRow(ctx, selectRoleQuery, workspaceID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("workspace_id", workspaceID).
				Str("user_id", userID).
				Msg("not a workspace member")
			return "", ErrNoAccess
		}

		s.logger.Error().
			Err(err).
			Msg("failed to select workspace role")
		return "", err
	}
	return role, nil
}
