package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adanyl0v/go-planner/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrUserPasswordMismatch = errors.New("user password mismatch")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session expired")

	ErrWorkspaceNotFound   = errors.New("workspace not found")
	ErrNoAccess            = errors.New("no access to workspace")
	ErrReadOnly            = errors.New("workspace role is read-only")
	ErrInvalidRole         = errors.New("invalid workspace role")
	ErrMemberAlreadyExists = errors.New("user is already a workspace member")

	ErrTaskNotFound        = errors.New("task not found")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidPriority     = errors.New("invalid task priority")
	ErrNegativeEstimate    = errors.New("estimated hours must not be negative")
	ErrEstimateRequired    = errors.New("estimated hours are required outside the backlog")
	ErrExternalFieldLocked = errors.New("field is managed by the external source")
	ErrInvalidPosition     = errors.New("backlog position must not be negative")
	ErrAssigneeNotMember   = errors.New("assignee is not a workspace member")

	ErrDependencyNotFound = errors.New("dependency not found")

	ErrNegativeCapacity = errors.New("weekly capacity must not be negative")
	ErrInvalidTimeOff   = errors.New("time off must not end before it starts")
	ErrTimeOffNotFound  = errors.New("time off not found")
)

type AuthService interface {
	// Login authenticates the user by email and password.
	//
	// It deletes all sessions with the same user ID and creates
	// a new session and generates a new JWT token pair.
	//
	// It returns ErrUserNotFound if the user with the given
	// email doesn't exist or ErrUserPasswordMismatch if the
	// given password doesn't match the user's password.
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)

	// Refresh updates the session with the given refresh token.
	//
	// It returns ErrSessionNotFound if the session with the
	// given refresh token doesn't exist or ErrSessionExpired
	// if the session is expired.
	Refresh(ctx context.Context, params RefreshParams) (*LoginResult, error)

	// Register a user with the given email and password. The weekly
	// capacity falls back to the configured default when not given.
	//
	// It returns ErrUserAlreadyExists if the user with the given
	// email already exists or ErrNegativeCapacity.
	Register(ctx context.Context, params RegisterParams) (*LoginResult, error)

	// Logout invalidates all sessions with the given user ID.
	Logout(ctx context.Context, userID string) error

	// ParseJWTToken parses the given JWT token and returns the registered
	// claims or jwt.ErrTokenExpired if the token is expired.
	ParseJWTToken(token string) (*jwt.RegisteredClaims, error)
}

type SessionService interface {
	GetSessionByID(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type WorkspaceService interface {
	// CreateWorkspace creates a workspace owned by ownerID.
	CreateWorkspace(ctx context.Context, ownerID, name string) (*models.Workspace, error)
	ListWorkspaces(ctx context.Context, userID string) ([]*models.Workspace, error)
	// AddMember returns ErrInvalidRole, ErrUserNotFound or
	// ErrMemberAlreadyExists.
	AddMember(ctx context.Context, workspaceID, userID string, role models.Role) (*models.Member, error)
	ListMembers(ctx context.Context, workspaceID string) ([]*models.Member, error)
	// RoleOf returns ErrNoAccess if the user is not a member.
	RoleOf(ctx context.Context, workspaceID, userID string) (models.Role, error)
}

type TaskService interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error)
	GetTask(ctx context.Context, workspaceID, taskID string) (*models.Task, error)
	ListTasks(ctx context.Context, params ListTasksParams) ([]*models.Task, error)
	// ListTasksStartingBetween returns the tasks whose start date falls
	// in [from, to] plus, if withUnscheduled is set, the unscheduled ones.
	ListTasksStartingBetween(ctx context.Context, workspaceID string, from, to time.Time, withUnscheduled bool) ([]*models.Task, error)
	// UpdateTask applies the non-nil fields of params. External tasks
	// only accept assignee, dates and priority; anything else returns
	// ErrExternalFieldLocked.
	UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error)
	// UpdateTaskStatus returns ErrEstimateRequired when a task without an
	// estimate would leave the backlog.
	UpdateTaskStatus(ctx context.Context, params UpdateTaskStatusParams) (*models.Task, error)
	DeleteTask(ctx context.Context, workspaceID, taskID string) error

	ListUnscheduled(ctx context.Context, workspaceID string) ([]*models.Task, error)
	ListFixed(ctx context.Context, workspaceID string, to time.Time) ([]*models.Task, error)
	GetByIDs(ctx context.Context, workspaceID string, ids []string) ([]*models.Task, error)
	SetSchedule(ctx context.Context, taskID string, startDate time.Time) (*models.Task, error)
}

type DependencyService interface {
	// AddDependency records that taskID depends on dependsOnID. The edge
	// is checked against the stored graph of the workspace inside the
	// workspace lock, so it fails with the graph package errors.
	AddDependency(ctx context.Context, workspaceID, taskID, dependsOnID string) (*models.Dependency, error)
	RemoveDependency(ctx context.Context, workspaceID, dependencyID string) error
	// ListForTask returns the edges in which the task takes part on
	// either side.
	ListForTask(ctx context.Context, workspaceID, taskID string) ([]models.Dependency, error)
	EdgesForWorkspace(ctx context.Context, workspaceID string) ([]models.Dependency, error)
}

type RosterService interface {
	WeeklyCapacity(ctx context.Context, userID string) (float64, error)
	SetWeeklyCapacity(ctx context.Context, userID string, hours float64) error
	TimeOff(ctx context.Context, userID string, from, to time.Time) ([]models.TimeOff, error)
	ListTimeOff(ctx context.Context, userID string) ([]models.TimeOff, error)
	AddTimeOff(ctx context.Context, timeOff models.TimeOff) (*models.TimeOff, error)
	DeleteTimeOff(ctx context.Context, userID, timeOffID string) error
}

type LoginParams struct {
	Email       string
	Password    string
	Fingerprint string
}

type RegisterParams struct {
	LoginParams
	WeeklyCapacityHours *float64
}

type LoginResult struct {
	UserID                string
	SessionID             string
	WeeklyCapacityHours   float64
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

type RefreshParams struct {
	RefreshToken string
	Fingerprint  string
}

type CreateTaskParams struct {
	WorkspaceID    string
	Title          string
	Description    string
	EstimatedHours float64
	Status         models.TaskStatus
	Priority       models.Priority
	AssigneeID     *string
	StartDate      *time.Time
	DueDate        *time.Time
	Source         models.TaskSource
}

type ListTasksParams struct {
	WorkspaceID string
	Status      models.TaskStatus
	AssigneeID  string
	Offset      uint32
	Limit       uint32
}

// UpdateTaskParams leaves fields that are nil untouched. An empty
// AssigneeID unassigns the task; ClearStartDate unschedules it.
type UpdateTaskParams struct {
	WorkspaceID    string
	ID             string
	Title          *string
	Description    *string
	EstimatedHours *float64
	Priority       *models.Priority
	Position       *int
	AssigneeID     *string
	StartDate      *time.Time
	ClearStartDate bool
	DueDate        *time.Time
}

type UpdateTaskStatusParams struct {
	WorkspaceID string
	ID          string
	Status      models.TaskStatus
}
