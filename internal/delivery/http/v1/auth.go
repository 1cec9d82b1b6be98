package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/services"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

const (
	reasonInvalidCredentials = "INVALID_CREDENTIALS"
	reasonSessionExpired     = "SESSION_EXPIRED"
	reasonSessionNotFound    = "SESSION_NOT_FOUND"
)

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email,max=255"`
	Password string `json:"password" form:"password" binding:"required,min=6,max=255"`
}

type registerRequest struct {
	loginRequest
	// Hours the new user can plan per week. Omitted means the
	// server default.
	WeeklyCapacityHours *float64 `json:"weekly_capacity_hours" binding:"omitempty,gte=0,lte=168"`
}

// sessionResponse is returned whenever a session is opened or rotated.
// The tokens themselves travel in cookies only.
type sessionResponse struct {
	UserID                string    `json:"user_id"`
	SessionID             string    `json:"session_id"`
	WeeklyCapacityHours   float64   `json:"weekly_capacity_hours"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

func newSessionResponse(r *services.LoginResult) sessionResponse {
	return sessionResponse{
		UserID:                r.UserID,
		SessionID:             r.SessionID,
		WeeklyCapacityHours:   r.WeeklyCapacityHours,
		AccessTokenExpiresAt:  r.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: r.RefreshTokenExpiresAt,
	}
}

// authError maps the auth service errors. Unknown email and wrong
// password share one answer.
func authError(err error) apiError {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrUserPasswordMismatch):
		return newAPIError(http.StatusUnauthorized, reasonInvalidCredentials, "invalid email or password")
	case errors.Is(err, services.ErrSessionExpired):
		return newAPIError(http.StatusUnauthorized, reasonSessionExpired, err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		return newAPIError(http.StatusUnauthorized, reasonSessionNotFound, err.Error())
	}
	return serviceError(err)
}

// openSession runs an auth call that yields a session for this client,
// then sets the token cookies and answers with the session summary.
func (h *handlerImpl) openSession(c *gin.Context, status int, op string,
	call func(fingerprint string) (*services.LoginResult, error)) {
	fingerprint, err := generateFingerprint(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to generate fingerprint")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	result, err := call(fingerprint)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msgf("failed to %s", op)
		abort(c, authError(err))
		return
	}

	setTokenCookies(c, result)
	c.JSON(status, newSessionResponse(result))
}

func (h *handlerImpl) HandleLogin(c *gin.Context) {
	var req loginRequest
	err := c.ShouldBind(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	h.openSession(c, http.StatusOK, "login", func(fingerprint string) (*services.LoginResult, error) {
		return h.auth.Login(c, services.LoginParams{
			Email:       req.Email,
			Password:    req.Password,
			Fingerprint: fingerprint,
		})
	})
}

func (h *handlerImpl) HandleRegister(c *gin.Context) {
	var req registerRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	h.openSession(c, http.StatusCreated, "register user", func(fingerprint string) (*services.LoginResult, error) {
		return h.auth.Register(c, services.RegisterParams{
			LoginParams: services.LoginParams{
				Email:       req.Email,
				Password:    req.Password,
				Fingerprint: fingerprint,
			},
			WeeklyCapacityHours: req.WeeklyCapacityHours,
		})
	})
}

func (h *handlerImpl) HandleRefresh(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshTokenCookie)
	if err != nil {
		abort(c, newAPIError(http.StatusUnauthorized, reasonSessionNotFound, errMandatoryCookieNotFound.Error()))
		return
	}

	h.openSession(c, http.StatusOK, "refresh session", func(fingerprint string) (*services.LoginResult, error) {
		return h.auth.Refresh(c, services.RefreshParams{
			RefreshToken: refreshToken,
			Fingerprint:  fingerprint,
		})
	})
}

// rotateSession refreshes the session behind an expired access token
// without writing a body, so the request can go on with the new token.
func (h *handlerImpl) rotateSession(c *gin.Context) (*services.LoginResult, bool) {
	refreshToken, err := c.Cookie(refreshTokenCookie)
	if err != nil {
		abort(c, newAPIError(http.StatusUnauthorized, reasonSessionExpired, "access token expired"))
		return nil, false
	}

	fingerprint, err := generateFingerprint(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to generate fingerprint")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return nil, false
	}

	result, err := h.auth.Refresh(c, services.RefreshParams{
		RefreshToken: refreshToken,
		Fingerprint:  fingerprint,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to rotate session")
		abort(c, authError(err))
		return nil, false
	}

	setTokenCookies(c, result)
	return result, true
}

func (h *handlerImpl) HandleLogout(c *gin.Context) {
	userID := ctxUserID(c)
	if userID == "" {
		abort(c, newStatusTextError(http.StatusUnauthorized))
		return
	}

	err := h.auth.Logout(c, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to logout")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	clearCookie(c, accessTokenCookie)
	clearCookie(c, refreshTokenCookie)

	c.Status(http.StatusNoContent)
}

// generateFingerprint identifies the client a session belongs to.
func generateFingerprint(c *gin.Context) (string, error) {
	fingerprintBytes, err := json.Marshal(map[string]string{
		"client_ip":  c.ClientIP(),
		"user_agent": c.Request.UserAgent(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal json: %w", err)
	}
	return string(fingerprintBytes), nil
}

func setTokenCookies(c *gin.Context, result *services.LoginResult) {
	now := time.Now()
	// httpOnly is off for the access token so browser clients can copy
	// it into the Authorization header.
	c.SetCookie(accessTokenCookie, result.AccessToken,
		int(result.AccessTokenExpiresAt.Sub(now).Seconds()), "/", "", false, false)
	c.SetCookie(refreshTokenCookie, result.RefreshToken,
		int(result.RefreshTokenExpiresAt.Sub(now).Seconds()), "/", "", false, true)
}

func clearCookie(c *gin.Context, name string) {
	c.SetCookie(name, "", -1,
		"/", "", false, false)
}
