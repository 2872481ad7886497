package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/core/service"
)

func newCacheCommand() *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Read and write versioned, compressed storage",
		Long: `Inspect the key/value storage the client persists state in.

Values are JSON. Local storage survives restarts; session storage (--session)
lives as long as its backend does.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cache.PersistentFlags().Bool("session", false, "use session storage instead of local storage")

	cache.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCacheStore(cmd, func(ctx context.Context, s *service.Store) error {
				v := s.Read(ctx, args[0])
				if v == nil {
					return fmt.Errorf("%s: no value", args[0])
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			})
		},
	})

	cache.AddCommand(&cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v any
			if err := json.Unmarshal([]byte(args[1]), &v); err != nil {
				return fmt.Errorf("value is not valid JSON: %w", err)
			}
			return withCacheStore(cmd, func(ctx context.Context, s *service.Store) error {
				if v == nil {
					s.Write(ctx, args[0], nil)
					fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", args[0])
					return nil
				}
				if err := s.Put(ctx, args[0], v); err != nil {
					if errors.Is(err, domain.ErrStorageUnavailable) {
						return fmt.Errorf("%s storage is unavailable", s.Namespace())
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s stored as %s\n", args[0], domain.PhysicalKey(args[0], s.Version()))
				return nil
			})
		},
	})

	cache.AddCommand(&cobra.Command{
		Use:   "del <key>",
		Short: "Delete key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCacheStore(cmd, func(ctx context.Context, s *service.Store) error {
				s.Delete(ctx, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", args[0])
				return nil
			})
		},
	})

	return cache
}

func withCacheStore(cmd *cobra.Command, fn func(ctx context.Context, s *service.Store) error) error {
	session, _ := cmd.Flags().GetBool("session")
	ns := domain.NamespaceLocal
	if session {
		ns = domain.NamespaceSession
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return fn(ctx, a.stores.For(ns))
	})
}
