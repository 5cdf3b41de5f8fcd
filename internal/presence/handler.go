package presence

import (
	"net/http"
	"time"

	"prompt-mastare/internal/errors"
	"prompt-mastare/internal/utils"

	"github.com/gin-gonic/gin"
)

// Handler serves the REST polling endpoints. They read the same persisted
// records the socket layer writes, so both views always agree.
type Handler struct {
	store  Store
	maxAge time.Duration
}

func NewHandler(store Store, maxAge time.Duration) *Handler {
	return &Handler{store: store, maxAge: maxAge}
}

func (h *Handler) ListForPrompt(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	records, err := h.store.ListActiveByPrompt(c.Request.Context(), promptID, h.maxAge)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (h *Handler) ListForTeam(c *gin.Context) {
	records, err := h.store.ListActiveByTeam(c.Request.Context(), c.GetUint64("team_id"), h.maxAge)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}
