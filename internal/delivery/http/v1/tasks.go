package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/services"
)

type getTaskResponse struct {
	ID             string    `json:"id"`
	WorkspaceID    string    `json:"workspace_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	EstimatedHours float64   `json:"estimated_hours"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	AssigneeID     *string   `json:"assignee_id"`
	StartDate      *string   `json:"start_date"`
	DueDate        *string   `json:"due_date"`
	Source         string    `json:"source"`
	Position       int       `json:"position"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func formatDay(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(models.DateLayout)
	return &s
}

func parseOptionalDay(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	day, err := models.ParseDay(*s)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func newGetTaskResponse(task *models.Task) getTaskResponse {
	return getTaskResponse{
		ID:             task.ID,
		WorkspaceID:    task.WorkspaceID,
		Title:          task.Title,
		Description:    task.Description,
		EstimatedHours: task.EstimatedHours,
		Status:         string(task.Status),
		Priority:       string(task.Priority),
		AssigneeID:     task.AssigneeID,
		StartDate:      formatDay(task.StartDate),
		DueDate:        formatDay(task.DueDate),
		Source:         string(task.Source),
		Position:       task.Position,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}
}

func newGetTasksResponse(tasks []*models.Task) []getTaskResponse {
	response := make([]getTaskResponse, len(tasks))
	for i, task := range tasks {
		response[i] = newGetTaskResponse(task)
	}
	return response
}

type createTaskRequest struct {
	Title          string  `json:"title" binding:"required,max=255"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimated_hours" binding:"gte=0"`
	Status         string  `json:"status"`
	Priority       string  `json:"priority"`
	AssigneeID     *string `json:"assignee_id" binding:"omitempty,uuid"`
	StartDate      *string `json:"start_date"`
	DueDate        *string `json:"due_date"`
	Source         string  `json:"source" binding:"omitempty,oneof=manual external"`
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	var req createTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	startDate, err := parseOptionalDay(req.StartDate)
	if err != nil {
		abort(c, newBadRequestError("start_date must be YYYY-MM-DD"))
		return
	}
	dueDate, err := parseOptionalDay(req.DueDate)
	if err != nil {
		abort(c, newBadRequestError("due_date must be YYYY-MM-DD"))
		return
	}

	task, err := h.tasks.CreateTask(c, services.CreateTaskParams{
		WorkspaceID:    ctxWorkspaceID(c),
		Title:          req.Title,
		Description:    req.Description,
		EstimatedHours: req.EstimatedHours,
		Status:         models.TaskStatus(req.Status),
		Priority:       models.Priority(req.Priority),
		AssigneeID:     req.AssigneeID,
		StartDate:      startDate,
		DueDate:        dueDate,
		Source:         models.TaskSource(req.Source),
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create task")
		abort(c, serviceError(err))
		return
	}

	c.JSON(http.StatusCreated, newGetTaskResponse(task))
}

type getTasksQuery struct {
	Status     string `form:"status"`
	AssigneeID string `form:"assignee_id" binding:"omitempty,uuid"`
	Offset     uint32 `form:"offset"`
	Limit      uint32 `form:"limit" binding:"lte=500"`
}

func (h *handlerImpl) HandleGetTasks(c *gin.Context) {
	var query getTasksQuery
	err := c.ShouldBindQuery(&query)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind query")
		abort(c, newBadRequestError(errInvalidQuery.Error()))
		return
	}

	tasks, err := h.tasks.ListTasks(c, services.ListTasksParams{
		WorkspaceID: ctxWorkspaceID(c),
		Status:      models.TaskStatus(query.Status),
		AssigneeID:  query.AssigneeID,
		Offset:      query.Offset,
		Limit:       query.Limit,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to list tasks")
		abort(c, serviceError(err))
		return
	}

	c.JSON(http.StatusOK, newGetTasksResponse(tasks))
}

func (h *handlerImpl) HandleGetTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		abort(c, serviceError(services.ErrTaskNotFound))
		return
	}

	task, err := h.tasks.GetTask(c, ctxWorkspaceID(c), taskID)
	if err != nil {
		abort(c, serviceError(err))
		return
	}
	c.JSON(http.StatusOK, newGetTaskResponse(task))
}

type updateTaskRequest struct {
	Title          *string  `json:"title" binding:"omitempty,max=255"`
	Description    *string  `json:"description"`
	EstimatedHours *float64 `json:"estimated_hours"`
	Priority       *string  `json:"priority"`
	Position       *int     `json:"position"`
	AssigneeID     *string  `json:"assignee_id"`
	StartDate      *string  `json:"start_date"`
	DueDate        *string  `json:"due_date"`
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		abort(c, serviceError(services.ErrTaskNotFound))
		return
	}

	var req updateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	params := services.UpdateTaskParams{
		WorkspaceID:    ctxWorkspaceID(c),
		ID:             taskID,
		Title:          req.Title,
		Description:    req.Description,
		EstimatedHours: req.EstimatedHours,
		Position:       req.Position,
		AssigneeID:     req.AssigneeID,
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		params.Priority = &p
	}
	// An empty start date unschedules the task.
	if req.StartDate != nil && *req.StartDate == "" {
		params.ClearStartDate = true
	} else if params.StartDate, err = parseOptionalDay(req.StartDate); err != nil {
		abort(c, newBadRequestError("start_date must be YYYY-MM-DD"))
		return
	}
	if params.DueDate, err = parseOptionalDay(req.DueDate); err != nil {
		abort(c, newBadRequestError("due_date must be YYYY-MM-DD"))
		return
	}

	task, err := h.tasks.UpdateTask(c, params)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to update task")
		abort(c, serviceError(err))
		return
	}

	c.JSON(http.StatusOK, newGetTaskResponse(task))
}

type setTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *handlerImpl) HandleSetTaskStatus(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		abort(c, serviceError(services.ErrTaskNotFound))
		return
	}

	var req setTaskStatusRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	task, err := h.tasks.UpdateTaskStatus(c, services.UpdateTaskStatusParams{
		WorkspaceID: ctxWorkspaceID(c),
		ID:          taskID,
		Status:      models.TaskStatus(req.Status),
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to update task status")
		abort(c, serviceError(err))
		return
	}

	c.JSON(http.StatusOK, newGetTaskResponse(task))
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		abort(c, serviceError(services.ErrTaskNotFound))
		return
	}

	err := h.tasks.DeleteTask(c, ctxWorkspaceID(c), taskID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to delete task")
		abort(c, serviceError(err))
		return
	}

	c.Status(http.StatusNoContent)
}
