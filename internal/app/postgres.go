package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

func (a *App) MustConnectPostgres() {
	cfg := a.cfg.Postgres

	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		a.logger.Error().
			Err(err).
			Msg("failed to parse postgres config")
		panic(err)
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	a.pgPool, err = pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		a.logger.Error().
			Err(err).
			Msg("failed to connect to postgres")
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	err = a.pgPool.Ping(ctx)
	if err != nil {
		a.logger.Error().
			Err(err).
			Msg("failed to ping postgres")
		panic(err)
	}
	a.logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("connected to postgres")
}

func (a *App) DisconnectPostgres() {
	a.pgPool.Close()
	a.logger.Info().Msg("disconnected from postgres")
}
