package prompt

import (
	"net/http"

	"prompt-mastare/internal/errors"
	"prompt-mastare/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type CreatePromptRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func (h *Handler) Create(c *gin.Context) {
	var req CreatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequest("Invalid prompt payload", err))
		return
	}

	p := &SharedPrompt{
		Title:   req.Title,
		Content: req.Content,
	}

	err := h.service.CreatePrompt(c.Request.Context(), c.GetUint64("user_id"), c.GetUint64("team_id"), p)
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.service.GetPrompt(c.Request.Context(), p.ID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListTeamPrompts(c *gin.Context) {
	page, pageSize := utils.GetPaginationParams(c)

	result, err := h.service.ListTeamPrompts(c.Request.Context(), c.GetUint64("team_id"), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Show returns the prompt with its current lock state, from the same
// persisted state the socket layer writes.
func (h *Handler) Show(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	resp, err := h.service.GetPrompt(c.Request.Context(), promptID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type UpdateContentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) UpdateContent(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	var req UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequest("Invalid content payload", err))
		return
	}

	err = h.service.UpdateContent(c.Request.Context(), promptID, c.GetUint64("user_id"), req.Content)
	if err != nil {
		c.Error(lockConflictToAPI(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Prompt updated"})
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SetStatus(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequest("Invalid status payload", err))
		return
	}

	if err := h.service.SetStatus(c.Request.Context(), promptID, req.Status); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

func (h *Handler) Lock(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	resp, err := h.service.AcquireLock(c.Request.Context(), promptID, c.GetUint64("user_id"))
	if err != nil {
		c.Error(lockConflictToAPI(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Unlock(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	userID := c.GetUint64("user_id")
	if err := h.service.ReleaseLock(c.Request.Context(), promptID, &userID); err != nil {
		c.Error(lockConflictToAPI(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Prompt unlocked"})
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) AddComment(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequest("Invalid comment payload", err))
		return
	}

	comment, err := h.service.AddComment(c.Request.Context(), promptID, c.GetUint64("user_id"), req.Content)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) ListComments(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	comments, err := h.service.ListComments(c.Request.Context(), promptID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": comments})
}

func (h *Handler) Optimize(c *gin.Context) {
	promptID, err := utils.GetIDParam(c, "id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid prompt id", err))
		return
	}

	resp, err := h.service.OptimizePrompt(c.Request.Context(), promptID, c.GetUint64("user_id"))
	if err != nil {
		c.Error(lockConflictToAPI(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// lockConflictToAPI maps a LockConflictError to a 409 for the REST surface;
// other errors pass through untouched.
func lockConflictToAPI(err error) error {
	if conflict, ok := err.(*errors.LockConflictError); ok {
		return errors.Conflict(conflict.Error(), conflict)
	}
	return err
}
