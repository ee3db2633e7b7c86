package commands

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/sonenae10-blip/todo/internal/friends"
)

func addAudit(topLevel *cobra.Command, ro *rootOptions) {
	var repair bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "check that every friend record has its mirror",
		Example: `
todoctl audit
todoctl audit --repair
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd.Context())
			defer cancel()

			s, closeStore, err := ro.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := friends.NewService(s, time.Now, ro.logger()).Audit(ctx, repair)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "delete orphaned friend records")

	topLevel.AddCommand(cmd)
}
