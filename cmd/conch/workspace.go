package main

import (
	"github.com/spf13/cobra"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Inspect and edit the workspace",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print projects and their entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd, "", []string{builtinLine("ws")})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "files <project>",
		Short: "Print the files a project resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd, "", []string{builtinLine("ws", "files", args[0])})
		},
	})
	cmd.AddCommand(workspaceEditCmd("add-project <name>", "Create a project", cobra.ExactArgs(1), "new-project"))
	cmd.AddCommand(workspaceEditCmd("add <project> <path>", "Add a file or folder to a project", cobra.ExactArgs(2), "add"))
	cmd.AddCommand(workspaceEditCmd("rm <project> [path]", "Remove a project or one of its entries", cobra.RangeArgs(1, 2), "rm"))
	return cmd
}

// workspaceEditCmd runs one ws mutation followed by ws save. Paths resolve
// against the current directory.
func workspaceEditCmd(use, short string, args cobra.PositionalArgs, sub string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			line := builtinLine("ws", append([]string{sub}, args...)...)
			return runHeadless(cmd, currentDir(), []string{line, builtinLine("ws", "save")})
		},
	}
}
