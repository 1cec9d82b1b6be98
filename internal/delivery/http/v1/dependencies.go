package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/services"
)

type dependencyResponse struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	DependsOnTaskID string    `json:"depends_on_task_id"`
	Type            string    `json:"type"`
	CreatedAt       time.Time `json:"created_at"`
}

func newDependencyResponse(d models.Dependency) dependencyResponse {
	return dependencyResponse{
		ID:              d.ID,
		TaskID:          d.TaskID,
		DependsOnTaskID: d.DependsOnTaskID,
		Type:            d.Type,
		CreatedAt:       d.CreatedAt,
	}
}

type addDependencyRequest struct {
	DependsOnTaskID string `json:"depends_on_task_id" binding:"required,uuid"`
}

func (h *handlerImpl) HandleAddDependency(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		abort(c, serviceError(services.ErrTaskNotFound))
		return
	}

	var req addDependencyRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	dep, err := h.dependencies.AddDependency(c, ctxWorkspaceID(c), taskID, req.DependsOnTaskID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Str("depends_on_task_id", req.DependsOnTaskID).
			Msg("failed to add dependency")
		abort(c, serviceError(err))
		return
	}

	c.JSON(http.StatusCreated, newDependencyResponse(*dep))
}

func (h *handlerImpl) HandleGetDependencies(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		abort(c, serviceError(services.ErrTaskNotFound))
		return
	}

	deps, err := h.dependencies.ListForTask(c, ctxWorkspaceID(c), taskID)
	if err != nil {
		abort(c, serviceError(err))
		return
	}

	response := make([]dependencyResponse, len(deps))
	for i, d := range deps {
		response[i] = newDependencyResponse(d)
	}
	c.JSON(http.StatusOK, response)
}

func (h *handlerImpl) HandleRemoveDependency(c *gin.Context) {
	dependencyID, ok := uuidParam(c, "dependency_id")
	if !ok {
		abort(c, serviceError(services.ErrDependencyNotFound))
		return
	}

	err := h.dependencies.RemoveDependency(c, ctxWorkspaceID(c), dependencyID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("dependency_id", dependencyID).
			Msg("failed to remove dependency")
		abort(c, serviceError(err))
		return
	}

	c.Status(http.StatusNoContent)
}
