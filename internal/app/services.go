package app

import (
	"github.com/adanyl0v/go-planner/internal/delivery/http/v1"
	"github.com/adanyl0v/go-planner/internal/scheduler"
	"github.com/adanyl0v/go-planner/internal/services"
)

// Services is everything built on top of the postgres pool.
type Services struct {
	Auth         services.AuthService
	Sessions     services.SessionService
	Workspaces   services.WorkspaceService
	Tasks        services.TaskService
	Dependencies services.DependencyService
	Roster       services.RosterService
	Engine       *scheduler.Engine

	MaxChainDepth int
}

// MustBuildServices requires MustReadEnv and MustConnectPostgres.
func (a *App) MustBuildServices() *Services {
	cfg := a.cfg

	calendar, err := cfg.Scheduler.Calendar()
	if err != nil {
		a.logger.Error().
			Err(err).
			Msg("failed to build working calendar")
		panic(err)
	}

	tx := services.NewTransactor(a.logger, a.pgPool)
	workspaces := services.NewWorkspaceService(a.logger, a.pgPool)
	s := &Services{
		Auth: services.NewAuthService(
			a.logger,
			a.pgPool,
			cfg.JWT.Issuer,
			[]byte(cfg.JWT.SigningKey),
			cfg.JWT.AccessTokenTTL,
			cfg.JWT.RefreshTokenTTL,
			cfg.Scheduler.DefaultWeeklyCapacity,
		),
		Sessions:     services.NewSessionService(a.logger, a.pgPool),
		Workspaces:   workspaces,
		Tasks:        services.NewTaskService(a.logger, a.pgPool, workspaces),
		Dependencies: services.NewDependencyService(a.logger, a.pgPool, tx, cfg.Scheduler.MaxChainDepth),
		Roster:       services.NewRosterService(a.logger, a.pgPool),

		MaxChainDepth: cfg.Scheduler.MaxChainDepth,
	}

	s.Engine = scheduler.NewEngine(
		a.logger,
		s.Tasks,
		s.Dependencies,
		s.Roster,
		tx,
		scheduler.Config{
			MaxWindowDays:         cfg.Scheduler.MaxWindowDays,
			DefaultWeeklyCapacity: cfg.Scheduler.DefaultWeeklyCapacity,
			Calendar:              calendar,
			MaxChainDepth:         cfg.Scheduler.MaxChainDepth,
			RunTimeout:            cfg.Scheduler.RunTimeout,
			MaxIterations:         cfg.Scheduler.MaxIterations,
		},
	)
	a.logger.Info().
		Int("working_days_per_week", calendar.WorkingDaysPerWeek()).
		Msg("built services")
	return s
}

func (s *Services) handlerServices() v1.Services {
	return v1.Services{
		Auth:         s.Auth,
		Sessions:     s.Sessions,
		Workspaces:   s.Workspaces,
		Tasks:        s.Tasks,
		Dependencies: s.Dependencies,
		Roster:       s.Roster,
		Scheduler:    s.Engine,
	}
}
