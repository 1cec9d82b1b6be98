package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/models"
)

type authServiceImpl struct {
	logger             zerolog.Logger
	pgPool             *pgxpool.Pool
	jwtIssuer          string
	jwtSigningKey      []byte
	jwtAccessTokenTTL  time.Duration
	jwtRefreshTokenTTL time.Duration
	weeklyCapacity     float64
}

func NewAuthService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
	jwtIssuer string,
	jwtSigningKey []byte,
	jwtAccessTokenTTL time.Duration,
	jwtRefreshTokenTTL time.Duration,
	weeklyCapacity float64,
) AuthService {
	return &authServiceImpl{
		logger:             logger,
		pgPool:             pgPool,
		jwtIssuer:          jwtIssuer,
		jwtSigningKey:      jwtSigningKey,
		jwtAccessTokenTTL:  jwtAccessTokenTTL,
		jwtRefreshTokenTTL: jwtRefreshTokenTTL,
		weeklyCapacity:     weeklyCapacity,
	}
}

func (s *authServiceImpl) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	user := models.User{Email: params.Email}

	const selectUserByEmailQuery = `
SELECT id,
       password,
       weekly_capacity_hours
FROM users
WHERE email = $1
`
	err := s.pgPool.QueryRow(
		ctx,
		selectUserByEmailQuery,
		user.Email,
	).Scan(
		&user.ID,
		&user.Password,
		&user.WeeklyCapacityHours,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("email", user.Email).
				Msg("user not found")
			return nil, ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Str("email", user.Email).
			Msg("failed to select user by email")
		return nil, err
	}

	match, err := argon2id.ComparePasswordAndHash(params.Password, user.Password)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to compare password")
		return nil, err
	} else if !match {
		s.logger.Error().Msg("passwords do not match")
		return nil, ErrUserPasswordMismatch
	}

	var result *LoginResult
	err = pgx.BeginFunc(ctx, s.pgPool, func(tx pgx.Tx) error {
		const deleteSessionsByUserIDQuery = `
DELETE FROM sessions
       WHERE user_id = $1
`
		tag, err := tx.Exec(ctx, deleteSessionsByUserIDQuery, user.ID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to delete sessions by user id")
			return err
		}
		s.logger.Debug().
			Str("user_id", user.ID).
			Int64("affected", tag.RowsAffected()).
			Msg("deleted sessions by user id")

		result, err = s.openSession(ctx, tx, user.ID, params.Fingerprint)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.WeeklyCapacityHours = user.WeeklyCapacityHours

	s.logger.Info().
		Str("user_id", user.ID).
		Str("session_id", result.SessionID).
		Msg("logged in")
	return result, nil
}

// Refresh rotates the refresh token of the session it belongs to. The
// session row is locked so a token can be redeemed only once.
func (s *authServiceImpl) Refresh(ctx context.Context, params RefreshParams) (*LoginResult, error) {
	session := models.Session{
		RefreshToken: params.RefreshToken,
		Fingerprint:  params.Fingerprint,
	}
	var weeklyCapacity float64

	err := pgx.BeginFunc(ctx, s.pgPool, func(tx pgx.Tx) error {
		const selectSessionForRotationQuery = `
SELECT s.id,
       s.user_id,
       s.expires_at,
       u.weekly_capacity_hours
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.refresh_token = $1 AND
      s.fingerprint = $2
FOR UPDATE OF s
`
		err := tx.QueryRow(
			ctx,
			selectSessionForRotationQuery,
			session.RefreshToken,
			session.Fingerprint,
		).Scan(
			&session.ID,
			&session.UserID,
			&session.ExpiresAt,
			&weeklyCapacity,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				s.logger.Warn().Msg("no session for refresh token")
				return ErrSessionNotFound
			}
			s.logger.Error().
				Err(err).
				Msg("failed to select session by refresh token")
			return err
		}

		now := time.Now()
		if session.Expired(now) {
			s.logger.Warn().
				Str("session_id", session.ID).
				Time("expires_at", session.ExpiresAt).
				Msg("session expired")
			return ErrSessionExpired
		}

		session.RefreshToken, err = generateRefreshToken()
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to generate refresh token")
			return err
		}
		session.ExpiresAt = now.Add(s.jwtRefreshTokenTTL)
		session.UpdatedAt = now

		const rotateRefreshTokenQuery = `
UPDATE sessions
SET refresh_token = $1,
    expires_at = $2,
    updated_at = $3
WHERE id = $4
`
		_, err = tx.Exec(
			ctx,
			rotateRefreshTokenQuery,
			session.RefreshToken,
			session.ExpiresAt,
			session.UpdatedAt,
			session.ID,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("session_id", session.ID).
				Msg("failed to rotate refresh token")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	result, err := s.issue(&session)
	if err != nil {
		return nil, err
	}
	result.WeeklyCapacityHours = weeklyCapacity

	s.logger.Info().
		Str("user_id", session.UserID).
		Str("session_id", session.ID).
		Msg("refreshed session")
	return result, nil
}

func (s *authServiceImpl) Register(ctx context.Context, params RegisterParams) (*LoginResult, error) {
	now := time.Now()
	user := models.User{
		Email:               params.Email,
		WeeklyCapacityHours: s.weeklyCapacity,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if params.WeeklyCapacityHours != nil {
		user.WeeklyCapacityHours = *params.WeeklyCapacityHours
	}
	if user.WeeklyCapacityHours < 0 {
		return nil, ErrNegativeCapacity
	}

	userUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate user uuid")
		return nil, err
	}
	user.ID = userUUID.String()

	user.Password, err = argon2id.CreateHash(params.Password, argon2id.DefaultParams)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to hash password")
		return nil, err
	}

	var result *LoginResult
	err = pgx.BeginFunc(ctx, s.pgPool, func(tx pgx.Tx) error {
		const insertUserQuery = `
INSERT INTO users (id,
                   email,
                   password,
                   weekly_capacity_hours,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
		_, err := tx.Exec(
			ctx,
			insertUserQuery,
			user.ID,
			user.Email,
			user.Password,
			user.WeeklyCapacityHours,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			if isPgError(err, pgerrcode.UniqueViolation) {
				s.logger.Error().
					Str("email", user.Email).
					Msg("user with this email already exists")
				return ErrUserAlreadyExists
			}

			s.logger.Error().
				Err(err).
				Msg("failed to insert user")
			return err
		}

		result, err = s.openSession(ctx, tx, user.ID, params.Fingerprint)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.WeeklyCapacityHours = user.WeeklyCapacityHours

	s.logger.Info().
		Str("user_id", user.ID).
		Str("session_id", result.SessionID).
		Float64("weekly_capacity_hours", user.WeeklyCapacityHours).
		Msg("registered user")
	return result, nil
}

func (s *authServiceImpl) Logout(ctx context.Context, userID string) error {
	const deleteSessionsByUserIDQuery = `
DELETE FROM sessions
       WHERE user_id = $1
`
	tag, err := s.pgPool.Exec(ctx, deleteSessionsByUserIDQuery, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to delete sessions by user id")
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int64("affected", tag.RowsAffected()).
		Msg("logged out")
	return nil
}

func (s *authServiceImpl) ParseJWTToken(token string) (*jwt.RegisteredClaims, error) {
	t, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSigningKey, nil
		},
		jwt.WithIssuer(s.jwtIssuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token is expired: %w", err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, errors.New("failed to parse token claims")
	}
	return claims, nil
}

// openSession inserts a fresh session for userID inside tx and issues
// its token pair.
func (s *authServiceImpl) openSession(ctx context.Context, tx pgx.Tx, userID, fingerprint string) (*LoginResult, error) {
	now := time.Now()
	session := models.Session{
		UserID:      userID,
		Fingerprint: fingerprint,
		ExpiresAt:   now.Add(s.jwtRefreshTokenTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	sessionUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate session uuid")
		return nil, err
	}
	session.ID = sessionUUID.String()

	session.RefreshToken, err = generateRefreshToken()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate refresh token")
		return nil, err
	}

	const insertSessionQuery = `
INSERT INTO sessions (id,
                      user_id,
                      fingerprint,
                      refresh_token,
                      expires_at,
                      created_at,
                      updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	_, err = tx.Exec(
		ctx,
		insertSessionQuery,
		session.ID,
		session.UserID,
		session.Fingerprint,
		session.RefreshToken,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert session")
		return nil, err
	}
	s.logger.Debug().
		Str("session_id", session.ID).
		Time("expires_at", session.ExpiresAt).
		Msg("inserted session")

	return s.issue(&session)
}

func (s *authServiceImpl) issue(session *models.Session) (*LoginResult, error) {
	accessToken, accessTokenExpiresAt, err := s.generateAccessToken(session.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate access token")
		return nil, err
	}
	return &LoginResult{
		UserID:                session.UserID,
		SessionID:             session.ID,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessTokenExpiresAt,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: session.ExpiresAt,
	}, nil
}

func generateRefreshToken() (string, error) {
	const length = 32
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func (s *authServiceImpl) generateAccessToken(sessionID string) (string, time.Time, error) {
	tokenUUID, err := uuid.NewRandom()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate id: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtAccessTokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        tokenUUID.String(),
		Issuer:    s.jwtIssuer,
		Subject:   sessionID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	})

	signed, err := token.SignedString(s.jwtSigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}
