package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/slotbot/internal/dialog"
	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/gin-gonic/gin"
)

const retryLaterMessage = "service temporarily unavailable, please try again later"

func writeError(c *gin.Context, err error) {
	var (
		verr *domain.ValidationError
		terr *domain.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Reason})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "current_status": string(terr.Current)})
	case errors.Is(err, domain.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, dialog.ErrNoConversation):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dialog.ErrUnexpectedStep):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": retryLaterMessage})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
