package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sonenae10-blip/todo/internal/friends"
	"github.com/sonenae10-blip/todo/internal/localcache"
	"github.com/sonenae10-blip/todo/internal/migration"
	"github.com/sonenae10-blip/todo/internal/profiles"
	"github.com/sonenae10-blip/todo/internal/store"
	"github.com/sonenae10-blip/todo/internal/todos/service"
)

func addMigrate(topLevel *cobra.Command, ro *rootOptions) {
	var uid string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "move the local todos into an account",
		Example: `
todoctl migrate --uid 2sP9xQ...
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uid == "" {
				return fmt.Errorf("--uid is required")
			}
			ctx, cancel := timeout(cmd.Context())
			defer cancel()

			s, closeStore, err := ro.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			lg := ro.logger()
			owner := service.Owner{ID: uid}
			p, err := profiles.NewService(s, nil, time.Now, lg).Get(ctx, uid)
			switch {
			case err == nil:
				owner.Handle, owner.Auto = p.Handle, p.HandleAuto
			case errors.Is(err, store.ErrNotFound):
			default:
				return err
			}

			todos := service.NewTodoService(s, nil, friends.NewService(s, time.Now, lg), time.Now, lg)
			res := migration.New(localcache.Open(ro.dir), todos, time.Now, lg).Run(ctx, owner)
			if res.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to migrate")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d, failed %d\n", res.Migrated, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "account to migrate into")

	topLevel.AddCommand(cmd)
}
