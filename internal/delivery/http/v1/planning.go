package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/planning"
)

type planQuery struct {
	Date               string `form:"date"`
	IncludeUnscheduled bool   `form:"include_unscheduled"`
}

type planDayResponse struct {
	Date  string            `json:"date"`
	Tasks []getTaskResponse `json:"tasks"`
}

type planResponse struct {
	From        string            `json:"from"`
	To          string            `json:"to"`
	Days        []planDayResponse `json:"days"`
	Unscheduled []getTaskResponse `json:"unscheduled,omitempty"`
}

func newPlanResponse(view *planning.View) planResponse {
	response := planResponse{
		From: view.From.Format(models.DateLayout),
		To:   view.To.Format(models.DateLayout),
		Days: make([]planDayResponse, len(view.Days)),
	}
	for i, d := range view.Days {
		response.Days[i] = planDayResponse{
			Date:  d.Date.Format(models.DateLayout),
			Tasks: newGetTasksResponse(d.Tasks),
		}
	}
	if view.Unscheduled != nil {
		response.Unscheduled = newGetTasksResponse(view.Unscheduled)
	}
	return response
}

func (h *handlerImpl) HandleGetWeekPlan(c *gin.Context) {
	h.handlePlan(c, planning.WeekBounds, planning.Week)
}

func (h *handlerImpl) HandleGetMonthPlan(c *gin.Context) {
	h.handlePlan(c, planning.MonthBounds, planning.Month)
}

func (h *handlerImpl) handlePlan(
	c *gin.Context,
	bounds func(time.Time) (time.Time, time.Time),
	compose func(time.Time, []*models.Task, planning.Options) *planning.View,
) {
	var query planQuery
	err := c.ShouldBindQuery(&query)
	if err != nil {
		abort(c, newBadRequestError(errInvalidQuery.Error()))
		return
	}

	anchor := models.Day(time.Now())
	if query.Date != "" {
		anchor, err = models.ParseDay(query.Date)
		if err != nil {
			abort(c, newBadRequestError("date must be YYYY-MM-DD"))
			return
		}
	}

	from, to := bounds(anchor)
	tasks, err := h.tasks.ListTasksStartingBetween(c, ctxWorkspaceID(c), from, to, query.IncludeUnscheduled)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to list tasks for plan")
		abort(c, serviceError(err))
		return
	}

	view := compose(anchor, tasks, planning.Options{IncludeUnscheduled: query.IncludeUnscheduled})
	c.JSON(http.StatusOK, newPlanResponse(view))
}
