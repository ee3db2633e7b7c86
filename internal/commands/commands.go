// Package commands implements the todoctl command line.
package commands

import (
	"context"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sonenae10-blip/todo/config"
	"github.com/sonenae10-blip/todo/internal/auth"
	"github.com/sonenae10-blip/todo/internal/bootstrap"
	"github.com/sonenae10-blip/todo/internal/logger"
	"github.com/sonenae10-blip/todo/internal/store"
)

type rootOptions struct {
	dir      string
	logLevel string
}

// New builds the root command.
func New() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "todoctl",
		Short:        "manage local todos, migrations and friend audits",
		SilenceUsage: true,
	}

	dir := os.Getenv("LOCAL_CACHE_DIR")
	if dir == "" {
		dir = ".todo"
	}
	cmd.PersistentFlags().StringVar(&ro.dir, "dir", dir, "directory of the local todo cache")
	cmd.PersistentFlags().StringVar(&ro.logLevel, "log-level", "warn", "log level")

	addLocal(cmd, ro)
	addMigrate(cmd, ro)
	addAudit(cmd, ro)
	addExport(cmd, ro)

	return cmd
}

func (ro *rootOptions) logger() *log.Logger {
	lg, err := logger.New(logger.Config{Level: ro.logLevel, Prefix: "todoctl"})
	if err != nil {
		return logger.Discard()
	}
	return lg
}

// openStore connects the configured backend for commands that need the
// shared store.
func (ro *rootOptions) openStore(ctx context.Context) (store.Store, func(), error) {
	cfg, err := config.LoadForTools()
	if err != nil {
		return nil, nil, err
	}

	var app *firebase.App
	if cfg.Store.Backend == config.BackendFirestore {
		app, err = auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			return nil, nil, err
		}
	}
	return bootstrap.OpenStore(ctx, cfg, app, ro.logger())
}

func timeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 5*time.Minute)
}
