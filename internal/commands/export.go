package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sonenae10-blip/todo/internal/friends"
	"github.com/sonenae10-blip/todo/internal/todos/calendar"
	"github.com/sonenae10-blip/todo/internal/todos/service"
)

func addExport(topLevel *cobra.Command, ro *rootOptions) {
	var uid string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "write an account's todos as iCalendar to stdout",
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
			items, err := service.NewTodoService(s, nil, friends.NewService(s, time.Now, lg), time.Now, lg).Own(ctx, uid)
			if err != nil {
				return err
			}
			return calendar.WriteICS(cmd.OutOrStdout(), items, time.Now())
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "account to export")

	topLevel.AddCommand(cmd)
}
