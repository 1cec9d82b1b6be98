package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/services"
)

type capacityResponse struct {
	WeeklyCapacityHours float64 `json:"weekly_capacity_hours"`
}

type setCapacityRequest struct {
	WeeklyCapacityHours *float64 `json:"weekly_capacity_hours" binding:"required"`
}

func (h *handlerImpl) HandleGetCapacity(c *gin.Context) {
	hours, err := h.roster.WeeklyCapacity(c, ctxUserID(c))
	if err != nil {
		abort(c, serviceError(err))
		return
	}
	c.JSON(http.StatusOK, capacityResponse{WeeklyCapacityHours: hours})
}

func (h *handlerImpl) HandleSetCapacity(c *gin.Context) {
	var req setCapacityRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	err = h.roster.SetWeeklyCapacity(c, ctxUserID(c), *req.WeeklyCapacityHours)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to set weekly capacity")
		abort(c, serviceError(err))
		return
	}
	c.JSON(http.StatusOK, capacityResponse{WeeklyCapacityHours: *req.WeeklyCapacityHours})
}

type timeOffResponse struct {
	ID       string `json:"id"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	Type     string `json:"type"`
}

func newTimeOffResponse(t models.TimeOff) timeOffResponse {
	return timeOffResponse{
		ID:       t.ID,
		DateFrom: t.DateFrom.Format(models.DateLayout),
		DateTo:   t.DateTo.Format(models.DateLayout),
		Type:     t.Type,
	}
}

type addTimeOffRequest struct {
	DateFrom string `json:"date_from" binding:"required"`
	DateTo   string `json:"date_to" binding:"required"`
	Type     string `json:"type" binding:"max=64"`
}

func (h *handlerImpl) HandleGetTimeOff(c *gin.Context) {
	list, err := h.roster.ListTimeOff(c, ctxUserID(c))
	if err != nil {
		abort(c, serviceError(err))
		return
	}

	response := make([]timeOffResponse, len(list))
	for i, t := range list {
		response[i] = newTimeOffResponse(t)
	}
	c.JSON(http.StatusOK, response)
}

func (h *handlerImpl) HandleAddTimeOff(c *gin.Context) {
	var req addTimeOffRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	from, err := models.ParseDay(req.DateFrom)
	if err != nil {
		abort(c, newBadRequestError("date_from must be YYYY-MM-DD"))
		return
	}
	to, err := models.ParseDay(req.DateTo)
	if err != nil {
		abort(c, newBadRequestError("date_to must be YYYY-MM-DD"))
		return
	}

	timeOff, err := h.roster.AddTimeOff(c, models.TimeOff{
		UserID:   ctxUserID(c),
		DateFrom: from,
		DateTo:   to,
		Type:     req.Type,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to add time off")
		abort(c, serviceError(err))
		return
	}
	c.JSON(http.StatusCreated, newTimeOffResponse(*timeOff))
}

func (h *handlerImpl) HandleDeleteTimeOff(c *gin.Context) {
	timeOffID, ok := uuidParam(c, "time_off_id")
	if !ok {
		abort(c, serviceError(services.ErrTimeOffNotFound))
		return
	}

	err := h.roster.DeleteTimeOff(c, ctxUserID(c), timeOffID)
	if err != nil {
		abort(c, serviceError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
