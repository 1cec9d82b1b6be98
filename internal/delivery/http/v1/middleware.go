package v1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/services"
)

const (
	userIDCtxKey      = "user_id"
	sessionIDCtxKey   = "session_id"
	workspaceIDCtxKey = "workspace_id"
	roleCtxKey        = "workspace_role"
)

func (h *handlerImpl) HandleAuthMiddleware(c *gin.Context) {
	const authHeader = "Authorization"
	header := c.GetHeader(authHeader)
	if header == "" {
		h.logger.Error().Msg("authorization header required")
		abort(c, newUnauthorizedError("authorization header required"))
		return
	}

	const bearerPrefix = "Bearer"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix {
		h.logger.Error().Msg("invalid authorization header")
		abort(c, newUnauthorizedError("invalid authorization header"))
		return
	}

	claims, err := h.auth.ParseJWTToken(parts[1])
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Error().
				Err(err).
				Msg("failed to parse token")
			abort(c, newUnauthorizedError("invalid token"))
			return
		}

		result, ok := h.rotateSession(c)
		if !ok {
			return
		}

		claims, err = h.auth.ParseJWTToken(result.AccessToken)
		if err != nil {
			h.logger.Error().
				Err(err).
				Msg("failed to parse fresh token")
			abort(c, newUnauthorizedError("invalid token"))
			return
		}
	}

	session, err := h.sessions.GetSessionByID(c, claims.Subject)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			abort(c, newUnauthorizedError(err.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Msg("failed to fetch session")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	if session.Expired(time.Now()) {
		abort(c, newAPIError(http.StatusUnauthorized, reasonSessionExpired, services.ErrSessionExpired.Error()))
		return
	}

	browserFingerprint, err := generateFingerprint(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to generate fingerprint")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	if browserFingerprint != session.Fingerprint {
		h.logger.Error().
			Str("session_id", session.ID).
			Msg("fingerprint mismatch")
		abort(c, newUnauthorizedError("fingerprint mismatch"))
		return
	}

	c.Set(userIDCtxKey, session.UserID)
	c.Set(sessionIDCtxKey, session.ID)
	c.Next()
}

// HandleWorkspaceMiddleware resolves the caller's role in the workspace
// named by the path and rejects non-members.
func (h *handlerImpl) HandleWorkspaceMiddleware(c *gin.Context) {
	workspaceID, ok := uuidParam(c, "workspace_id")
	if !ok {
		abort(c, newAPIError(http.StatusNotFound, reasonNotFound, services.ErrWorkspaceNotFound.Error()))
		return
	}
	userID, _ := getStringFromContext(c, userIDCtxKey)

	role, err := h.workspaces.RoleOf(c, workspaceID, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("workspace_id", workspaceID).
			Str("user_id", userID).
			Msg("failed to resolve workspace role")
		abort(c, serviceError(err))
		return
	}

	c.Set(workspaceIDCtxKey, workspaceID)
	c.Set(roleCtxKey, string(role))
	c.Next()
}

// HandleWriteAccessMiddleware lets through every role except viewer.
func (h *handlerImpl) HandleWriteAccessMiddleware(c *gin.Context) {
	role, _ := getStringFromContext(c, roleCtxKey)
	if !models.Role(role).CanWrite() {
		h.logger.Warn().
			Str("role", role).
			Msg("write attempt with read-only role")
		abort(c, serviceError(services.ErrReadOnly))
		return
	}
	c.Next()
}

func getStringFromContext(c *gin.Context, key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

func ctxWorkspaceID(c *gin.Context) string {
	id, _ := getStringFromContext(c, workspaceIDCtxKey)
	return id
}

func ctxUserID(c *gin.Context) string {
	id, _ := getStringFromContext(c, userIDCtxKey)
	return id
}

// uuidParam returns the path parameter if it is a well-formed uuid.
func uuidParam(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
