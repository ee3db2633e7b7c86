package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sonenae10-blip/todo/internal/datekey"
	"github.com/sonenae10-blip/todo/internal/localcache"
	"github.com/sonenae10-blip/todo/internal/recurrence"
)

type localAddOptions struct {
	on     string
	until  string
	repeat string
}

func addLocal(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "work with the todo list kept before signing in",
	}

	ao := &localAddOptions{}
	add := &cobra.Command{
		Use:   "add TEXT",
		Short: "add a local todo",
		Example: `
todoctl local add "buy milk"
todoctl local add "gym" --on 2024-03-04 --until 2024-03-31 --repeat 1,3
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := ao.item(strings.Join(args, " "))
			if err != nil {
				return err
			}
			item, err = localcache.Open(ro.dir).Add(item)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", item.ID)
			return nil
		},
	}
	add.Flags().StringVar(&ao.on, "on", "", `start date, example: --on="2024-02-28"`)
	add.Flags().StringVar(&ao.until, "until", "", "inclusive end date")
	add.Flags().StringVar(&ao.repeat, "repeat", "", "weekdays to repeat on, 0 = Sunday, example: --repeat=1,3")

	list := &cobra.Command{
		Use:   "list",
		Short: "print the local todos as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := localcache.Open(ro.dir).Load()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "remove every local todo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return localcache.Open(ro.dir).Clear()
		},
	}

	cmd.AddCommand(add, list, clearCmd)
	topLevel.AddCommand(cmd)
}

func (o *localAddOptions) item(text string) (localcache.Item, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return localcache.Item{}, fmt.Errorf("text is required")
	}

	item := localcache.Item{Text: text}
	if o.on != "" {
		rng := datekey.NormalizeRange(o.on, o.until)
		if !rng.Valid() {
			return localcache.Item{}, fmt.Errorf("invalid date %q", o.on)
		}
		item.StartDate, item.EndDate = rng.Start, rng.End
	}

	if o.repeat != "" {
		var days []int
		for _, part := range strings.Split(o.repeat, ",") {
			d, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return localcache.Item{}, fmt.Errorf("invalid weekday %q", part)
			}
			days = append(days, d)
		}
		normalized, err := recurrence.NormalizeDays(days)
		if err != nil {
			return localcache.Item{}, err
		}
		item.RepeatDays = normalized
	}
	return item, nil
}
