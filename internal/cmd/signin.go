package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rechart/rechart/internal/core/domain"
)

func newSignInCommand() *cobra.Command {
	signin := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with an email link",
		Long: `Sign in without a password.

  rechart signin send alice@example.com     # emails a sign-in link
  rechart signin complete '<link>'          # completes sign-in from the link

The link must be completed on the machine it was requested from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	signin.AddCommand(&cobra.Command{
		Use:   "send <email>",
		Short: "Email a sign-in link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.signin.SendLink(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sign-in link sent to %s\n", args[0])
				return nil
			})
		},
	})

	signin.AddCommand(&cobra.Command{
		Use:   "complete <link>",
		Short: "Complete sign-in from an email link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				info, err := a.signin.CompleteSignIn(ctx, args[0])
				if err != nil {
					if errors.Is(err, domain.ErrNoPendingSignIn) {
						return fmt.Errorf("%w: run `rechart signin send <email>` on this machine first", err)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in to workspace %s (%s tier)\n", info.Workspace, info.Tier)
				return nil
			})
		},
	})

	return signin
}

func newSignOutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.signin.SignOut(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the workspace and tier of the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				info := a.resume(ctx)
				if info == nil {
					return domain.ErrNotSignedIn
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			})
		},
	}
}
