package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/sonenae10-blip/todo/internal/api/http"
	"github.com/sonenae10-blip/todo/internal/auth"
	"github.com/sonenae10-blip/todo/internal/datekey"
	"github.com/sonenae10-blip/todo/internal/todos/calendar"
	"github.com/sonenae10-blip/todo/internal/todos/domain"
)

// List returns the todos visible to the caller, optionally only those
// occurring on ?date=.
func (h *Handler) List(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)

	selected, err := selectedDate(c)
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadTodos, err)
		return
	}

	items, err := h.svc.Visible(c.Request.Context(), uid)
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadTodos, err)
		return
	}

	list := calendar.BuildVisibleList(items, selected)
	if list == nil {
		list = []domain.Todo{}
	}
	httpapi.OK(c, gin.H{
		"todos":  list,
		"counts": calendar.Count(items, uid),
	})
}

func (h *Handler) Create(c *gin.Context) {
	var req domain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, httpapi.OpCreateTodo)
		return
	}

	todo, err := h.svc.Create(c.Request.Context(), auth.UserFirebaseUID(c), req)
	if err != nil {
		httpapi.Error(c, httpapi.OpCreateTodo, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "todo": todo})
}

func (h *Handler) Update(c *gin.Context) {
	var req domain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, httpapi.OpUpdateTodo)
		return
	}

	todo, err := h.svc.Update(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"), req)
	if err != nil {
		httpapi.Error(c, httpapi.OpUpdateTodo, err)
		return
	}

	httpapi.OK(c, gin.H{"todo": todo})
}

func (h *Handler) Toggle(c *gin.Context) {
	todo, err := h.svc.Toggle(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"))
	if err != nil {
		httpapi.Error(c, httpapi.OpToggleTodo, err)
		return
	}

	httpapi.OK(c, gin.H{"todo": todo})
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id")); err != nil {
		httpapi.Error(c, httpapi.OpDeleteTodo, err)
		return
	}

	httpapi.OK(c, nil)
}

// selectedDate reads ?date=. An absent date selects everything; a date that
// cannot be understood is rejected.
func selectedDate(c *gin.Context) (string, error) {
	raw := c.Query("date")
	if raw == "" {
		return "", nil
	}
	key := datekey.Normalize(raw)
	if key == "" {
		return "", fmt.Errorf("%w: date %q", domain.ErrInvalidDate, raw)
	}
	return key, nil
}

// window reads ?month=YYYY-MM, defaulting to the current month.
func (h *Handler) window(c *gin.Context) (calendar.Window, error) {
	month := c.Query("month")
	if month == "" {
		return calendar.CurrentMonth(h.now()), nil
	}
	return calendar.ParseMonth(month)
}
