package api

import (
	"context"
	"net/http"

	"github.com/Domenick1991/slotbot/internal/dialog"
	"github.com/gin-gonic/gin"
)

type ConversationFlow interface {
	Start(ctx context.Context, conversationID string, requesterID int64, requesterName string) (*dialog.Reply, error)
	ChooseDate(ctx context.Context, conversationID, date string) (*dialog.Reply, error)
	ChooseStart(ctx context.Context, conversationID, start string) (*dialog.Reply, error)
	ChooseEnd(ctx context.Context, conversationID, end string) (*dialog.Reply, error)
	Cancel(ctx context.Context, conversationID string) error
}

type ConversationHandler struct {
	flow ConversationFlow
}

type startConversationRequest struct {
	RequesterID   int64  `json:"requester_id" binding:"required"`
	RequesterName string `json:"requester_name"`
}

type stepRequest struct {
	Value string `json:"value" binding:"required"`
}

type replyResponse struct {
	Step       string            `json:"step"`
	Date       string            `json:"date,omitempty"`
	Start      string            `json:"start,omitempty"`
	Dates      []string          `json:"dates,omitempty"`
	StartSlots []string          `json:"start_slots,omitempty"`
	EndSlots   []string          `json:"end_slots,omitempty"`
	Existing   []bookingResponse `json:"existing,omitempty"`
	Booking    *bookingResponse  `json:"booking,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

func NewConversationHandler(flow ConversationFlow) *ConversationHandler {
	return &ConversationHandler{flow: flow}
}

func (h *ConversationHandler) Register(router *gin.RouterGroup) {
	router.POST("/:id/start", h.start)
	router.POST("/:id/date", h.step(h.flow.ChooseDate))
	router.POST("/:id/start-time", h.step(h.flow.ChooseStart))
	router.POST("/:id/end-time", h.step(h.flow.ChooseEnd))
	router.DELETE("/:id", h.cancel)
}

func (h *ConversationHandler) start(c *gin.Context) {
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	reply, err := h.flow.Start(c.Request.Context(), c.Param("id"), req.RequesterID, req.RequesterName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReplyResponse(reply))
}

func (h *ConversationHandler) step(next func(ctx context.Context, conversationID, value string) (*dialog.Reply, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stepRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		reply, err := next(c.Request.Context(), c.Param("id"), req.Value)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReplyResponse(reply))
	}
}

func (h *ConversationHandler) cancel(c *gin.Context) {
	if err := h.flow.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toReplyResponse(r *dialog.Reply) replyResponse {
	out := replyResponse{
		Step:       string(r.Step),
		Date:       r.Date,
		Start:      r.Start,
		Dates:      r.Dates,
		StartSlots: r.StartSlots,
		EndSlots:   r.EndSlots,
		Reason:     r.Reason,
	}
	if len(r.Existing) > 0 {
		out.Existing = toBookingResponses(r.Existing)
	}
	if r.Booking != nil {
		b := toBookingResponse(r.Booking)
		out.Booking = &b
	}
	return out
}
