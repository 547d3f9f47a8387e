package api

import (
	"net/http"
	"strconv"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/Domenick1991/slotbot/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	RequesterID   int64  `json:"requester_id" binding:"required"`
	RequesterName string `json:"requester_name"`
	Date          string `json:"date" binding:"required"`
	Start         string `json:"start" binding:"required"`
	End           string `json:"end" binding:"required"`
}

type actorRequest struct {
	ActorID int64  `json:"actor_id" binding:"required"`
	Role    string `json:"role"`
	Reason  string `json:"reason"`
}

type menuResponse struct {
	Date            string            `json:"date"`
	AlreadyBooked   bool              `json:"already_booked"`
	Existing        []bookingResponse `json:"existing,omitempty"`
	StartSlots      []string          `json:"start_slots"`
	MaxDurationMins int               `json:"max_duration_minutes"`
}

type endSlotsResponse struct {
	Date     string   `json:"date"`
	Start    string   `json:"start"`
	EndSlots []string `json:"end_slots"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("/menu", h.menu)
	router.GET("/end-slots", h.endSlots)
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.GET("/:id/events", h.events)
	router.POST("/:id/confirm", h.confirm)
	router.POST("/:id/cancel", h.cancel)
}

func (h *BookingHandler) menu(c *gin.Context) {
	requesterID, err := strconv.ParseInt(c.Query("requester_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid requester_id")
		return
	}

	menu, err := h.service.RequestBookingMenu(c.Request.Context(), requesterID, c.Query("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, menuResponse{
		Date:            menu.Date,
		AlreadyBooked:   menu.AlreadyBooked(),
		Existing:        toBookingResponses(menu.Existing),
		StartSlots:      formatSlots(menu.StartSlots),
		MaxDurationMins: int(menu.MaxDuration.Minutes()),
	})
}

func (h *BookingHandler) endSlots(c *gin.Context) {
	endMenu, err := h.service.ChooseStart(c.Request.Context(), c.Query("date"), c.Query("start"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, endSlotsResponse{
		Date:     endMenu.Date,
		Start:    endMenu.Start.String(),
		EndSlots: formatSlots(endMenu.EndSlots),
	})
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.service.ChooseEnd(c.Request.Context(), booking.CreateBookingInput{
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		Date:          req.Date,
		Start:         req.Start,
		End:           req.End,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) events(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	events, err := h.service.ListEvents(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponses(events))
}

func (h *BookingHandler) confirm(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.service.ConfirmBooking(c.Request.Context(), id, domain.UserActor(req.ActorID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var actor domain.Actor
	switch req.Role {
	case "", string(domain.ActorUser):
		actor = domain.UserActor(req.ActorID)
	case string(domain.ActorAdmin):
		actor = domain.AdminActor(req.ActorID)
	default:
		badRequest(c, "role must be user or admin")
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func bookingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
