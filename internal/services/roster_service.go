package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/models"
)

type rosterServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewRosterService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) RosterService {
	return &rosterServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *rosterServiceImpl) WeeklyCapacity(ctx context.Context, userID string) (float64, error) {
	const selectCapacityQuery = `
SELECT weekly_capacity_hours
FROM users
WHERE id = $1
`
	var hours float64
	err := conn(ctx, s.pgPool).QueryRow(ctx, selectCapacityQuery, userID).Scan(&hours)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("user_id", userID).
				Msg("user not found")
			return 0, ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select weekly capacity")
		return 0, err
	}
	return hours, nil
}

func (s *rosterServiceImpl) SetWeeklyCapacity(ctx context.Context, userID string, hours float64) error {
	if hours < 0 {
		return ErrNegativeCapacity
	}

	const updateCapacityQuery = `
UPDATE users
SET weekly_capacity_hours = $1,
    updated_at = $2
WHERE id = $3
`
	tag, err := conn(ctx, s.pgPool).Exec(ctx, updateCapacityQuery, hours, time.Now(), userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to update weekly capacity")
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	s.logger.Info().
		Str("user_id", userID).
		Float64("weekly_capacity_hours", hours).
		Msg("updated weekly capacity")
	return nil
}

func (s *rosterServiceImpl) TimeOff(ctx context.Context, userID string, from, to time.Time) ([]models.TimeOff, error) {
	const query = `
SELECT id, user_id, date_from, date_to, type
FROM time_off
WHERE user_id = $1 AND
      date_to >= $2 AND
      date_from <= $3
ORDER BY date_from
`
	return s.queryTimeOff(ctx, query, userID, models.Day(from), models.Day(to))
}

func (s *rosterServiceImpl) ListTimeOff(ctx context.Context, userID string) ([]models.TimeOff, error) {
	const query = `
SELECT id, user_id, date_from, date_to, type
FROM time_off
WHERE user_id = $1
ORDER BY date_from
`
	return s.queryTimeOff(ctx, query, userID)
}

func (s *rosterServiceImpl) queryTimeOff(ctx context.Context, query string, args ...any) ([]models.TimeOff, error) {
	rows, err := conn(ctx, s.pgPool).Query(ctx, query, args...)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select time off")
		return nil, err
	}
	defer rows.Close()

	list := make([]models.TimeOff, 0)
	for rows.Next() {
		var t models.TimeOff
		err = rows.Scan(&t.ID, &t.UserID, &t.DateFrom, &t.DateTo, &t.Type)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan time off")
			return nil, err
		}
		list = append(list, t)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	return list, nil
}

func (s *rosterServiceImpl) AddTimeOff(ctx context.Context, timeOff models.TimeOff) (*models.TimeOff, error) {
	timeOff.DateFrom, timeOff.DateTo = models.Day(timeOff.DateFrom), models.Day(timeOff.DateTo)
	if timeOff.DateTo.Before(timeOff.DateFrom) {
		return nil, ErrInvalidTimeOff
	}

	id, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate time off uuid")
		return nil, err
	}
	timeOff.ID = id.String()

	const insertTimeOffQuery = `
INSERT INTO time_off (id,
                      user_id,
                      date_from,
                      date_to,
                      type)
VALUES ($1, $2, $3, $4, $5)
`
	_, err = conn(ctx, s.pgPool).Exec(
		ctx,
		insertTimeOffQuery,
		timeOff.ID,
		timeOff.UserID,
		timeOff.DateFrom,
		timeOff.DateTo,
		timeOff.Type,
	)
	if err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().
			Err(err).
			Msg("failed to insert time off")
		return nil, err
	}

	s.logger.Info().
		Str("user_id", timeOff.UserID).
		Str("time_off_id", timeOff.ID).
		Msg("added time off")
	return &timeOff, nil
}

func (s *rosterServiceImpl) DeleteTimeOff(ctx context.Context, userID, timeOffID string) error {
	const deleteTimeOffQuery = `
DELETE FROM time_off
WHERE id = $1 AND user_id = $2
`
	tag, err := conn(ctx, s.pgPool).Exec(ctx, deleteTimeOffQuery, timeOffID, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("time_off_id", timeOffID).
			Msg("failed to delete time off")
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTimeOffNotFound
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("time_off_id", timeOffID).
		Msg("deleted time off")
	return nil
}
