package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/sonenae10-blip/todo/internal/api/http/middleware"
	"github.com/sonenae10-blip/todo/internal/auth"
	authhttp "github.com/sonenae10-blip/todo/internal/auth/http"
	friendhttp "github.com/sonenae10-blip/todo/internal/friends/http"
	todohttp "github.com/sonenae10-blip/todo/internal/todos/http"
)

type V1Deps struct {
	// Auth authenticates every route except sign-up.
	Auth        gin.HandlerFunc
	SendLimiter *middleware.UserRateLimiter
	AuthHandler *authhttp.Handler
	Todos       *todohttp.Handler
	Friends     *friendhttp.Handler
}

func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")

	dep.AuthHandler.RegisterPublic(api)

	private := api.Group("")
	private.Use(dep.Auth)

	dep.AuthHandler.Register(private)
	dep.Todos.Register(private)

	if dep.SendLimiter != nil {
		dep.Friends.Register(private, dep.SendLimiter.Middleware(auth.CtxFirebaseUID))
	} else {
		dep.Friends.Register(private)
	}
}
