package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/config"
)

func (a *App) InitDefaultLogger() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimestampFieldName = "timestamp"

	a.logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Int("pid", os.Getpid()).
		Logger()

	a.logger.Info().Msg("initialized default logger")
}

// MustInitApplicationLogger sets the level and output for the configured
// env. Logs go to out, which the CLI points at stderr.
func (a *App) MustInitApplicationLogger(out io.Writer) {
	w := out
	switch a.cfg.Env {
	case config.EnvDev:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case config.EnvProd:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case config.EnvLocal:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)

		consoleWriter := zerolog.NewConsoleWriter()
		consoleWriter.TimeFormat = time.DateTime
		consoleWriter.Out = out
		w = consoleWriter
	default:
		a.logger.Error().
			Str("env", a.cfg.Env).
			Msg("unknown env")
		panic(fmt.Errorf("unknown env: %s", a.cfg.Env))
	}

	a.logger = a.logger.Output(w)
	a.logger.Info().Msg("initialized application logger")
}
