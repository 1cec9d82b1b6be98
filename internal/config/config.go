package config

import (
	"fmt"
	"time"

	"github.com/adanyl0v/go-planner/internal/capacity"
)

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

type Config struct {
	Env       string `env:"ENV" env-required:"true"`
	HTTP      HTTPConfig
	Postgres  PostgresConfig
	JWT       JWTConfig
	Scheduler SchedulerConfig
}

type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type PostgresConfig struct {
	Host           string        `env:"POSTGRES_HOST" env-required:"true"`
	Port           int           `env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `env:"POSTGRES_USERNAME" env-required:"true"`
	Password       string        `env:"POSTGRES_PASSWORD" env-required:"true"`
	Database       string        `env:"POSTGRES_DATABASE" env-required:"true"`
	SSLMode        string        `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
}

// URL is the pgx connection string.
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type JWTConfig struct {
	Issuer          string        `env:"JWT_ISSUER" env-default:"go-planner"`
	SigningKey      string        `env:"JWT_SIGNING_KEY" env-required:"true"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TOKEN_TTL" env-default:"720h"`
}

type SchedulerConfig struct {
	MaxWindowDays         int           `env:"SCHEDULER_MAX_WINDOW_DAYS" env-default:"366"`
	DefaultWeeklyCapacity float64       `env:"SCHEDULER_DEFAULT_WEEKLY_CAPACITY" env-default:"40"`
	WorkingDays           string        `env:"SCHEDULER_WORKING_DAYS" env-default:"mon,tue,wed,thu,fri"`
	HolidaysFile          string        `env:"SCHEDULER_HOLIDAYS_FILE"`
	RunTimeout            time.Duration `env:"SCHEDULER_RUN_TIMEOUT" env-default:"30s"`
	MaxIterations         int           `env:"SCHEDULER_MAX_ITERATIONS" env-default:"1000000"`
	MaxChainDepth         int           `env:"SCHEDULER_MAX_CHAIN_DEPTH" env-default:"100"`
}

func (c SchedulerConfig) Validate() error {
	switch {
	case c.MaxWindowDays <= 0:
		return fmt.Errorf("SCHEDULER_MAX_WINDOW_DAYS must be positive, got %d", c.MaxWindowDays)
	case c.DefaultWeeklyCapacity < 0:
		return fmt.Errorf("SCHEDULER_DEFAULT_WEEKLY_CAPACITY must not be negative, got %g", c.DefaultWeeklyCapacity)
	case c.MaxChainDepth <= 0:
		return fmt.Errorf("SCHEDULER_MAX_CHAIN_DEPTH must be positive, got %d", c.MaxChainDepth)
	}
	return nil
}

// Calendar builds the working calendar from the configured weekdays and
// the optional holidays file.
func (c SchedulerConfig) Calendar() (capacity.Calendar, error) {
	weekdays, err := capacity.ParseWeekdays(c.WorkingDays)
	if err != nil {
		return capacity.Calendar{}, fmt.Errorf("SCHEDULER_WORKING_DAYS: %w", err)
	}

	var holidays []time.Time
	if c.HolidaysFile != "" {
		list, err := LoadHolidays(c.HolidaysFile)
		if err != nil {
			return capacity.Calendar{}, err
		}
		for _, h := range list {
			holidays = append(holidays, h.Date)
		}
	}
	return capacity.NewCalendar(weekdays, holidays), nil
}
