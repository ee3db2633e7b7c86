package http

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/sonenae10-blip/todo/internal/todos/service"
)

type Handler struct {
	svc       *service.TodoService
	now       func() time.Time
	log       *log.Logger
	keepAlive time.Duration
}

func New(svc *service.TodoService, now func() time.Time, logger *log.Logger) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		svc:       svc,
		now:       now,
		log:       logger,
		keepAlive: 15 * time.Second,
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	todos := rg.Group("/todos")
	todos.GET("", h.List)
	todos.POST("", h.Create)
	todos.PATCH("/:id", h.Update)
	todos.POST("/:id/toggle", h.Toggle)
	todos.DELETE("/:id", h.Delete)

	rg.GET("/calendar", h.Calendar)
	rg.GET("/calendar/stream", h.StreamCalendar)
	rg.GET("/calendar.ics", h.ExportICS)
}
