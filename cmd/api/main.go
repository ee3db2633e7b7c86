package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/sonenae10-blip/todo/config"
	"github.com/sonenae10-blip/todo/internal/api/http/middleware"
	"github.com/sonenae10-blip/todo/internal/api/http/routes"
	"github.com/sonenae10-blip/todo/internal/auth"
	authhttp "github.com/sonenae10-blip/todo/internal/auth/http"
	authmw "github.com/sonenae10-blip/todo/internal/auth/middleware"
	authsvc "github.com/sonenae10-blip/todo/internal/auth/service"
	"github.com/sonenae10-blip/todo/internal/bootstrap"
	"github.com/sonenae10-blip/todo/internal/friends"
	cronjob "github.com/sonenae10-blip/todo/internal/friends/cron"
	friendhttp "github.com/sonenae10-blip/todo/internal/friends/http"
	"github.com/sonenae10-blip/todo/internal/handles"
	"github.com/sonenae10-blip/todo/internal/logger"
	"github.com/sonenae10-blip/todo/internal/profiles"
	todohttp "github.com/sonenae10-blip/todo/internal/todos/http"
	todosvc "github.com/sonenae10-blip/todo/internal/todos/service"
)

const serviceName = "todo-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}

	lg, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Prefix: serviceName,
		JSON:   cfg.Log.JSON,
	})
	if err != nil {
		log.Fatal("failed to init logger", "err", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var app *firebase.App
	if cfg.NeedsFirebase() {
		app, err = auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			lg.Fatal("firebase init failed", "err", err)
		}
	}

	s, closeStore, err := bootstrap.OpenStore(ctx, cfg, app, lg)
	if err != nil {
		lg.Fatal("store init failed", "backend", cfg.Store.Backend, "err", err)
	}
	defer closeStore()

	profileSvc := profiles.NewService(s, handles.NewRandomGenerator(nil), time.Now, lg.WithPrefix("profiles"))
	friendSvc := friends.NewService(s, time.Now, lg.WithPrefix("friends"))
	todoSvc := todosvc.NewTodoService(s, profileSvc, friendSvc, time.Now, lg.WithPrefix("todos"))

	var (
		authn    gin.HandlerFunc
		identity authsvc.Identity
	)
	switch cfg.App.AuthMode {
	case config.AuthModeHeader:
		lg.Warn("AUTH_MODE=header: requests are trusted without token verification")
		authn = auth.HeaderUser()
		identity = unsupportedIdentity{}
	default:
		client, err := auth.AuthClient(ctx, app)
		if err != nil {
			lg.Fatal("firebase auth init failed", "err", err)
		}
		authn = authmw.FirebaseAuthMiddleware(client)
		identity = auth.NewProvider(client)
	}

	limiter := middleware.NewUserRateLimiter(
		float64(cfg.RateLimit.FriendRequestsPerMinute)/60,
		cfg.RateLimit.Burst,
		10*time.Minute,
	)
	go sweep(ctx, limiter)

	if cfg.Audit.Enabled {
		loc, err := time.LoadLocation(cfg.Audit.Timezone)
		if err != nil {
			lg.Warn("invalid audit timezone, using local time", "tz", cfg.Audit.Timezone, "err", err)
			loc = time.Local
		}
		sched := cronjob.NewScheduler(friendSvc, cfg.Audit.Schedule, cfg.Audit.Repair, loc, lg.WithPrefix("cron"))
		if err := sched.Start(); err != nil {
			lg.Fatal("cron init failed", "err", err)
		}
		defer sched.Stop()
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    serviceName,
		Version:        cfg.App.Version,
		Backend:        cfg.Store.Backend,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         lg,
		Store:          s,
		V1: routes.V1Deps{
			Auth:        authn,
			SendLimiter: limiter,
			AuthHandler: authhttp.New(authsvc.NewAuthService(identity, profileSvc, lg.WithPrefix("auth"))),
			Todos:       todohttp.New(todoSvc, time.Now, lg),
			Friends:     friendhttp.New(friendSvc, profileSvc, lg),
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Open streams end when shutdown starts.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		lg.Info("listening", "addr", srv.Addr, "backend", cfg.Store.Backend, "auth", cfg.App.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", "err", err)
		os.Exit(1)
	}
	lg.Info("stopped")
}

func sweep(ctx context.Context, l *middleware.UserRateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
