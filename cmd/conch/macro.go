package main

import (
	"github.com/spf13/cobra"
)

func newMacroCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "macro",
		Short: "List and run macros",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print registered macros",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd, "", []string{builtinLine("macro", "list")})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run a macro in the current directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd, currentDir(), []string{builtinLine("macro", "run", args[0])})
		},
	})
	return cmd
}
