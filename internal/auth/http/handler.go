package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/sonenae10-blip/todo/internal/api/http"
	"github.com/sonenae10-blip/todo/internal/auth"
	"github.com/sonenae10-blip/todo/internal/auth/domain"
	"github.com/sonenae10-blip/todo/internal/auth/service"
)

type Handler struct {
	authService *service.AuthService
}

func New(authService *service.AuthService) *Handler {
	return &Handler{
		authService: authService,
	}
}

// RegisterPublic mounts the routes that run before authentication.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.SignUp)
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
}

// SignUp creates an email/password account and its profile.
func (h *Handler) SignUp(c *gin.Context) {
	var req domain.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, httpapi.OpSignUp)
		return
	}

	p, err := h.authService.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httpapi.Error(c, httpapi.OpSignUp, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"ok":      true,
		"profile": p,
		"message": httpapi.SuccessMessage(c, httpapi.OpSignUp),
	})
}

// Me returns the caller's profile, creating the handle on first sign-in.
func (h *Handler) Me(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated", "code": "unauthenticated"})
		return
	}

	p, err := h.authService.Me(c.Request.Context(), uid, auth.UserEmail(c))
	if err != nil {
		httpapi.Error(c, httpapi.OpProfile, err)
		return
	}

	httpapi.OK(c, gin.H{"profile": p})
}
