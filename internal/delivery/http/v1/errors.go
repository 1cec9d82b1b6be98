package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/scheduler"
	"github.com/adanyl0v/go-planner/internal/services"
)

var (
	errInvalidRequestBody      = errors.New("invalid request body")
	errInvalidQuery            = errors.New("invalid query parameters")
	errMandatoryCookieNotFound = errors.New("mandatory cookie not found")
)

const (
	reasonNotFound   = "NOT_FOUND"
	reasonNoAccess   = "NO_ACCESS"
	reasonReadOnly   = "READ_ONLY"
	reasonValidation = "VALIDATION_FAILED"
	reasonConflict   = "CONFLICT"
)

type apiError struct {
	Code    int
	Reason  string
	Message string
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func newAPIError(code int, reason, message string) apiError {
	return apiError{
		Code:    code,
		Reason:  reason,
		Message: message,
	}
}

func (e apiError) Error() string {
	return e.Message
}

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Code, errorResponse{Error: err.Message, Reason: err.Reason})
}

func newStatusTextError(status int) apiError {
	return newAPIError(status, "", http.StatusText(status))
}

func newBadRequestError(message string) apiError {
	return newAPIError(http.StatusBadRequest, reasonValidation, message)
}

func newUnauthorizedError(message string) apiError {
	return newAPIError(http.StatusUnauthorized, "", message)
}

func newConflictError(message string) apiError {
	return newAPIError(http.StatusConflict, reasonConflict, message)
}

// codeStatuses maps the graph and scheduler error codes to HTTP statuses.
var codeStatuses = map[string]int{
	"SELF_DEPENDENCY":           http.StatusBadRequest,
	"CIRCULAR_DEPENDENCY":       http.StatusConflict,
	"DEPENDENCY_CHAIN_TOO_DEEP": http.StatusUnprocessableEntity,
	"DUPLICATE_DEPENDENCY":      http.StatusConflict,
	"CYCLE_DETECTED":            http.StatusConflict,
	"NOT_FOUND":                 http.StatusNotFound,
	"INVALID_WINDOW":            http.StatusBadRequest,
	"INVALID_STRATEGY":          http.StatusBadRequest,
	"RUN_BUDGET_EXCEEDED":       http.StatusServiceUnavailable,
}

// serviceError translates an error returned by a service or the
// scheduler into the response sent to the client.
func serviceError(err error) apiError {
	switch {
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrDependencyNotFound),
		errors.Is(err, services.ErrTimeOffNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrWorkspaceNotFound):
		return newAPIError(http.StatusNotFound, reasonNotFound, err.Error())
	case errors.Is(err, services.ErrNoAccess):
		return newAPIError(http.StatusForbidden, reasonNoAccess, err.Error())
	case errors.Is(err, services.ErrReadOnly):
		return newAPIError(http.StatusForbidden, reasonReadOnly, err.Error())
	case errors.Is(err, services.ErrExternalFieldLocked):
		return newAPIError(http.StatusConflict, "EXTERNAL_FIELD_LOCKED", err.Error())
	case errors.Is(err, services.ErrEstimateRequired):
		return newAPIError(http.StatusUnprocessableEntity, "ESTIMATE_REQUIRED", err.Error())
	case errors.Is(err, services.ErrAssigneeNotMember):
		return newAPIError(http.StatusUnprocessableEntity, "ASSIGNEE_NOT_MEMBER", err.Error())
	case errors.Is(err, services.ErrInvalidTaskStatus),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrNegativeEstimate),
		errors.Is(err, services.ErrInvalidPosition),
		errors.Is(err, services.ErrNegativeCapacity),
		errors.Is(err, services.ErrInvalidTimeOff),
		errors.Is(err, services.ErrInvalidRole):
		return newBadRequestError(err.Error())
	case errors.Is(err, services.ErrMemberAlreadyExists),
		errors.Is(err, services.ErrUserAlreadyExists):
		return newConflictError(err.Error())
	}

	if code := scheduler.Code(err); code != "" {
		if status, ok := codeStatuses[code]; ok {
			return newAPIError(status, code, err.Error())
		}
	}
	return newStatusTextError(http.StatusInternalServerError)
}
