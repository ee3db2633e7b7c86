package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httpapi "github.com/sonenae10-blip/todo/internal/api/http"
	"github.com/sonenae10-blip/todo/internal/auth"
	"github.com/sonenae10-blip/todo/internal/logger"
	"github.com/sonenae10-blip/todo/internal/todos/calendar"
	"github.com/sonenae10-blip/todo/internal/todos/service"
)

// Calendar returns the month view: the date index, the list for ?date= and
// the own/shared counts.
func (h *Handler) Calendar(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)

	w, err := h.window(c)
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadTodos, err)
		return
	}
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

	httpapi.OK(c, gin.H{"view": calendar.Build(items, uid, w, selected)})
}

type streamEvent struct {
	View    calendar.View     `json:"view"`
	Friends map[string]string `json:"friends"`
	Stale   bool              `json:"stale"`
}

// StreamCalendar streams the month view using Server-Sent Events (SSE). A
// "view" event is sent on every change of the caller's or a friend's todos
// and of the friend list. When a subscription fails the last known items
// are sent with stale set.
func (h *Handler) StreamCalendar(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	reqLog := logger.FromContext(c.Request.Context(), h.log)

	w, err := h.window(c)
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadTodos, err)
		return
	}
	selected, err := selectedDate(c)
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadTodos, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported", "code": "internal"})
		return
	}

	ctx := c.Request.Context()

	// Only the newest state matters: a pending update is replaced.
	updates := make(chan service.Update, 1)
	feed, err := h.svc.Watch(ctx, uid, func(u service.Update) {
		select {
		case <-updates:
		default:
		}
		updates <- u
	})
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadTodos, err)
		return
	}
	defer feed.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering
	c.Status(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case u := <-updates:
			if u.Err != nil {
				reqLog.Warn("calendar stream is stale", "uid", uid, "err", u.Err)
			}
			data, err := json.Marshal(streamEvent{
				View:    calendar.Build(u.Items, uid, w, selected),
				Friends: u.Friends,
				Stale:   u.Err != nil,
			})
			if err != nil {
				reqLog.Error("failed to encode calendar view", "err", err)
				return
			}
			fmt.Fprintf(c.Writer, "event: view\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// ExportICS downloads the caller's own todos as an iCalendar file.
func (h *Handler) ExportICS(c *gin.Context) {
	items, err := h.svc.Own(c.Request.Context(), auth.UserFirebaseUID(c))
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadTodos, err)
		return
	}

	var buf bytes.Buffer
	if err := calendar.WriteICS(&buf, items, h.now()); err != nil {
		httpapi.Error(c, httpapi.OpLoadTodos, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="todos.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
