// Package cmd implements the rechart command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the rechart command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rechart",
		Short: "Rechart client: sign in, call the API and inspect local storage",
		Long: `rechart drives the Rechart client core from the command line.

Configuration is read from the environment (RECHART_API_URL, IDENTITY_URL,
STORAGE_LOCAL_BACKEND, REDIS_ADDR, ...). Sign-in state is kept in local
storage, so successive invocations stay signed in.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newSignInCommand(),
		newSignOutCommand(),
		newWhoAmICommand(),
		newAPICommand(),
		newCacheCommand(),
		newDevServerCommand(),
	)
	return root
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
