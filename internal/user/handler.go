package user

import (
	"net/http"

	"prompt-mastare/internal/auth"
	"prompt-mastare/internal/errors"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	TeamID   uint64 `json:"team_id" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequest("Invalid registration payload", err))
		return
	}

	newUser := &User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		TeamID:   req.TeamID,
	}

	if err := h.service.Register(newUser); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, newUser.Safe())
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequest("Invalid login payload", err))
		return
	}

	u, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := auth.GenerateJWT(u.ID, u.TeamID, u.Name)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  u.Safe(),
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID := c.GetUint64("user_id")

	u, err := h.service.GetUserByID(userID)
	if err != nil {
		c.Error(errors.NotFound("User not found", err))
		return
	}

	c.JSON(http.StatusOK, u.Safe())
}

// Deactivate disables the authenticated user's own account. A deactivated
// user keeps their rows but can no longer log in.
func (h *Handler) Deactivate(c *gin.Context) {
	userID := c.GetUint64("user_id")

	if err := h.service.DeactivateUser(userID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deactivated"})
}
