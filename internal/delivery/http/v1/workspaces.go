package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/services"
)

type workspaceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

func newWorkspaceResponse(ws *models.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:        ws.ID,
		Name:      ws.Name,
		OwnerID:   ws.OwnerID,
		CreatedAt: ws.CreatedAt,
	}
}

type memberResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type createWorkspaceRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

func (h *handlerImpl) HandleCreateWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	ws, err := h.workspaces.CreateWorkspace(c, ctxUserID(c), req.Name)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create workspace")
		abort(c, serviceError(err))
		return
	}

	c.JSON(http.StatusCreated, newWorkspaceResponse(ws))
}

func (h *handlerImpl) HandleGetWorkspaces(c *gin.Context) {
	list, err := h.workspaces.ListWorkspaces(c, ctxUserID(c))
	if err != nil {
		abort(c, serviceError(err))
		return
	}

	response := make([]workspaceResponse, len(list))
	for i, ws := range list {
		response[i] = newWorkspaceResponse(ws)
	}
	c.JSON(http.StatusOK, response)
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Role   string `json:"role" binding:"required"`
}

func (h *handlerImpl) HandleAddMember(c *gin.Context) {
	role, _ := getStringFromContext(c, roleCtxKey)
	if !models.Role(role).CanManage() {
		abort(c, serviceError(services.ErrReadOnly))
		return
	}

	var req addMemberRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	m, err := h.workspaces.AddMember(c, ctxWorkspaceID(c), req.UserID, models.Role(req.Role))
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("user_id", req.UserID).
			Msg("failed to add workspace member")
		abort(c, serviceError(err))
		return
	}

	c.JSON(http.StatusCreated, memberResponse{
		UserID:    m.UserID,
		Role:      string(m.Role),
		CreatedAt: m.CreatedAt,
	})
}

func (h *handlerImpl) HandleGetMembers(c *gin.Context) {
	list, err := h.workspaces.ListMembers(c, ctxWorkspaceID(c))
	if err != nil {
		abort(c, serviceError(err))
		return
	}

	response := make([]memberResponse, len(list))
	for i, m := range list {
		response[i] = memberResponse{
			UserID:    m.UserID,
			Role:      string(m.Role),
			CreatedAt: m.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, response)
}
