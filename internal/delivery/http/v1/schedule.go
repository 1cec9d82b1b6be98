package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/scheduler"
)

type autoScheduleRequest struct {
	StartDate           string `json:"start_date" binding:"required"`
	EndDate             string `json:"end_date" binding:"required"`
	Strategy            string `json:"strategy"`
	AllowOverallocation bool   `json:"allow_overallocation"`
}

type autoScheduleQuery struct {
	DryRun bool `form:"dry_run"`
}

type placementResponse struct {
	TaskID     string  `json:"task_id"`
	AssigneeID string  `json:"assignee_id"`
	Date       string  `json:"date"`
	LastDay    string  `json:"last_day"`
	Hours      float64 `json:"hours"`
}

type autoScheduleResponse struct {
	Strategy  string              `json:"strategy"`
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	DryRun    bool                `json:"dry_run"`
	Scheduled []placementResponse `json:"scheduled"`
	Skipped   []scheduler.Skip    `json:"skipped"`
}

func newAutoScheduleResponse(res *scheduler.Result) autoScheduleResponse {
	response := autoScheduleResponse{
		Strategy:  string(res.Strategy),
		StartDate: res.StartDate.Format(models.DateLayout),
		EndDate:   res.EndDate.Format(models.DateLayout),
		DryRun:    res.DryRun,
		Scheduled: make([]placementResponse, len(res.Scheduled)),
		Skipped:   res.Skipped,
	}
	for i, p := range res.Scheduled {
		response.Scheduled[i] = placementResponse{
			TaskID:     p.TaskID,
			AssigneeID: p.AssigneeID,
			Date:       p.Date.Format(models.DateLayout),
			LastDay:    p.LastDay.Format(models.DateLayout),
			Hours:      p.Hours,
		}
	}
	if response.Skipped == nil {
		response.Skipped = []scheduler.Skip{}
	}
	return response
}

func (h *handlerImpl) HandleAutoSchedule(c *gin.Context) {
	var req autoScheduleRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}
	var query autoScheduleQuery
	err = c.ShouldBindQuery(&query)
	if err != nil {
		abort(c, newBadRequestError(errInvalidQuery.Error()))
		return
	}

	start, err := models.ParseDay(req.StartDate)
	if err != nil {
		abort(c, newAPIError(http.StatusBadRequest, "INVALID_WINDOW", "start_date must be YYYY-MM-DD"))
		return
	}
	end, err := models.ParseDay(req.EndDate)
	if err != nil {
		abort(c, newAPIError(http.StatusBadRequest, "INVALID_WINDOW", "end_date must be YYYY-MM-DD"))
		return
	}
	strategy, err := scheduler.ParseStrategy(req.Strategy)
	if err != nil {
		abort(c, serviceError(err))
		return
	}

	res, err := h.scheduler.AutoSchedule(c, scheduler.Request{
		WorkspaceID:         ctxWorkspaceID(c),
		StartDate:           start,
		EndDate:             end,
		Strategy:            strategy,
		AllowOverallocation: req.AllowOverallocation,
		DryRun:              query.DryRun,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("workspace_id", ctxWorkspaceID(c)).
			Msg("failed to auto schedule")
		abort(c, serviceError(err))
		return
	}

	c.JSON(http.StatusOK, newAutoScheduleResponse(res))
}
