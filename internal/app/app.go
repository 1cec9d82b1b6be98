package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/config"
)

// App owns the process-wide dependencies. The Must* methods are called
// in order from main and panic on failure.
type App struct {
	logger zerolog.Logger
	cfg    *config.Config
	pgPool *pgxpool.Pool
}

func New() *App {
	return &App{}
}

func (a *App) Logger() zerolog.Logger {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.cfg
}
