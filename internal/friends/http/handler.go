package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	httpapi "github.com/sonenae10-blip/todo/internal/api/http"
	"github.com/sonenae10-blip/todo/internal/auth"
	"github.com/sonenae10-blip/todo/internal/friends"
	"github.com/sonenae10-blip/todo/internal/profiles"
	"github.com/sonenae10-blip/todo/internal/store"
)

// ProfileSource resolves the caller's handle for outgoing requests.
type ProfileSource interface {
	Get(ctx context.Context, uid string) (profiles.Profile, error)
}

type Handler struct {
	svc      *friends.Service
	profiles ProfileSource
	log      *log.Logger
}

func New(svc *friends.Service, p ProfileSource, logger *log.Logger) *Handler {
	return &Handler{svc: svc, profiles: p, log: logger}
}

// Register mounts the friend routes. sendLimit guards request creation.
func (h *Handler) Register(rg *gin.RouterGroup, sendLimit ...gin.HandlerFunc) {
	g := rg.Group("/friends")
	g.GET("", h.List)
	g.GET("/requests", h.Requests)
	g.POST("/requests", append(sendLimit, h.SendRequest)...)
	g.POST("/requests/:fromId/accept", h.Accept)
	g.POST("/requests/:fromId/decline", h.Decline)
	g.DELETE("/requests/:toId", h.Cancel)
	g.DELETE("/:friendId", h.Remove)
}

// List returns the caller's relationships and the friend id -> handle map.
func (h *Handler) List(c *gin.Context) {
	rels, err := h.svc.Friends(c.Request.Context(), auth.UserFirebaseUID(c))
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadFriends, err)
		return
	}

	if rels == nil {
		rels = []friends.Relationship{}
	}
	httpapi.OK(c, gin.H{
		"friends": rels,
		"handles": friends.HandleMap(rels),
	})
}

func (h *Handler) Requests(c *gin.Context) {
	ctx := c.Request.Context()
	uid := auth.UserFirebaseUID(c)

	incoming, err := h.svc.Incoming(ctx, uid)
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadFriends, err)
		return
	}
	outgoing, err := h.svc.Outgoing(ctx, uid)
	if err != nil {
		httpapi.Error(c, httpapi.OpLoadFriends, err)
		return
	}

	httpapi.OK(c, gin.H{
		"incoming": nonNil(incoming),
		"outgoing": nonNil(outgoing),
	})
}

type sendRequestBody struct {
	Handle string `json:"handle"`
}

// SendRequest sends a friend request to the owner of the given handle.
func (h *Handler) SendRequest(c *gin.Context) {
	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httpapi.BadRequest(c, httpapi.OpSendRequest)
		return
	}
	ctx := c.Request.Context()
	uid := auth.UserFirebaseUID(c)

	from := friends.Party{ID: uid}
	p, err := h.profiles.Get(ctx, uid)
	switch {
	case err == nil:
		from.Handle = p.Handle
	case errors.Is(err, store.ErrNotFound):
		// No profile yet; SendRequestByHandle reports the pending handle.
	default:
		httpapi.Error(c, httpapi.OpSendRequest, err)
		return
	}

	req, err := h.svc.SendRequestByHandle(ctx, from, body.Handle)
	if err != nil {
		httpapi.Error(c, httpapi.OpSendRequest, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"ok":      true,
		"request": req,
		"message": httpapi.SuccessMessage(c, httpapi.OpSendRequest),
	})
}

type acceptBody struct {
	ToID string `json:"toId"`
}

// Accept accepts the request fromId -> toId. toId defaults to the caller and
// must equal the caller.
func (h *Handler) Accept(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)

	var body acceptBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			httpapi.BadRequest(c, httpapi.OpAcceptRequest)
			return
		}
	}
	toID := strings.TrimSpace(body.ToID)
	if toID == "" {
		toID = uid
	}

	if err := h.svc.AcceptRequest(c.Request.Context(), uid, c.Param("fromId"), toID); err != nil {
		httpapi.Error(c, httpapi.OpAcceptRequest, err)
		return
	}
	httpapi.OK(c, nil)
}

func (h *Handler) Decline(c *gin.Context) {
	if err := h.svc.Decline(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("fromId")); err != nil {
		httpapi.Error(c, httpapi.OpDeclineRequest, err)
		return
	}
	httpapi.OK(c, nil)
}

func (h *Handler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("toId")); err != nil {
		httpapi.Error(c, httpapi.OpCancelRequest, err)
		return
	}
	httpapi.OK(c, nil)
}

func (h *Handler) Remove(c *gin.Context) {
	if err := h.svc.Remove(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("friendId")); err != nil {
		httpapi.Error(c, httpapi.OpRemoveFriend, err)
		return
	}
	httpapi.OK(c, nil)
}

func nonNil(reqs []friends.Request) []friends.Request {
	if reqs == nil {
		return []friends.Request{}
	}
	return reqs
}
