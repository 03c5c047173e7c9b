package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/conch/internal/tasks"
	"pkt.systems/pslog"
)

func newTasksCmd() *cobra.Command {
	var (
		markers []string
		exclude []string
	)
	cmd := &cobra.Command{
		Use:   "tasks [dir]",
		Short: "List TODO style markers below a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := currentDir()
			if len(args) == 1 {
				root = args[0]
			}
			found, err := tasks.Scan(cmd.Context(), root, tasks.Options{
				Markers: markers,
				Exclude: exclude,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, task := range found {
				if _, err := fmt.Fprintln(out, task.String()); err != nil {
					return err
				}
			}
			pslog.Ctx(cmd.Context()).Debug("tasks scanned", "root", root, "found", len(found))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&markers, "marker", "m", nil, "marker to look for (repeatable)")
	cmd.Flags().StringSliceVarP(&exclude, "exclude", "x", nil, "gitignore style pattern to skip (repeatable)")
	return cmd
}
