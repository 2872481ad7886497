package cmd

import (
	"context"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/devserver"
)

func newDevServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local stand-in for the API server and identity provider",
		Long: `Run a local server implementing the identity endpoints under /identity
and the dashboard API under /api. Sign-in links are logged instead of emailed.

Point the client at it with:

  RECHART_API_URL=http://localhost:8080/api
  IDENTITY_URL=http://localhost:8080/identity`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			pro, _ := cmd.Flags().GetStringSlice("pro")
			accounts := make(map[string]domain.AuthUserInfo, len(pro))
			for _, email := range pro {
				accounts[email] = domain.AuthUserInfo{Tier: domain.TierPro, Workspace: "pro-" + email}
			}

			srv := devserver.New(devserver.Options{
				JWTSecret: cfg.DevServer.JWTSecret,
				APIKey:    cfg.Identity.APIKey,
				Accounts:  accounts,
			}, log)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(net.JoinHostPort("", cfg.DevServer.Port))
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringSlice("pro", nil, "emails to provision on the pro tier")
	return cmd
}
