package api

import (
	"net/http"
	"strconv"

	"github.com/Domenick1991/slotbot/internal/service/booking"
	"github.com/Domenick1991/slotbot/internal/service/schedule"
	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	schedule schedule.ScheduleUseCase
	bookings booking.BookingUseCase
}

type dayResponse struct {
	Date     string            `json:"date"`
	Bookings []bookingResponse `json:"bookings"`
}

func NewScheduleHandler(schedule schedule.ScheduleUseCase, bookings booking.BookingUseCase) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, bookings: bookings}
}

func (h *ScheduleHandler) Register(router *gin.RouterGroup) {
	router.GET("/schedule", h.list)
	router.GET("/users/:id/bookings", h.history)
}

// list shows today and tomorrow unless dates are given as repeated ?date= values.
func (h *ScheduleHandler) list(c *gin.Context) {
	var (
		days []schedule.Day
		err  error
	)
	if dates := c.QueryArray("date"); len(dates) > 0 {
		days, err = h.schedule.Schedule(c.Request.Context(), dates)
	} else {
		days, err = h.schedule.Upcoming(c.Request.Context())
	}
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, dayResponse{Date: d.Date, Bookings: toBookingResponses(d.Bookings)})
	}
	c.JSON(http.StatusOK, out)
}

func (h *ScheduleHandler) history(c *gin.Context) {
	requesterID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	bookings, err := h.bookings.UserHistory(c.Request.Context(), requesterID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(bookings))
}
