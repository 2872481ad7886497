package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rechart/rechart/internal/api"
)

func newAPICommand() *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Call the Rechart API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	apiCmd.PersistentFlags().Bool("anonymous", false, "send the request without credentials")
	apiCmd.PersistentFlags().StringArrayP("header", "H", nil, "extra request header, 'Name: value' (overrides generated ones)")

	apiCmd.AddCommand(&cobra.Command{
		Use:   "get <path>",
		Short: "GET a path relative to RECHART_API_URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPI(cmd, http.MethodGet, args[0], nil)
		},
	})

	apiCmd.AddCommand(&cobra.Command{
		Use:   "post <path> <json>",
		Short: "POST a JSON body to a path relative to RECHART_API_URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("body is not valid JSON")
			}
			return runAPI(cmd, http.MethodPost, args[0], []byte(args[1]))
		},
	})

	apiCmd.AddCommand(&cobra.Command{
		Use:   "delete <path>",
		Short: "DELETE a path relative to RECHART_API_URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPI(cmd, http.MethodDelete, args[0], nil)
		},
	})

	return apiCmd
}

func runAPI(cmd *cobra.Command, method, path string, body []byte) error {
	anonymous, _ := cmd.Flags().GetBool("anonymous")
	rawHeaders, _ := cmd.Flags().GetStringArray("header")

	header, err := parseHeaders(rawHeaders)
	if err != nil {
		return err
	}
	if body != nil {
		header.Set("Content-Type", "application/json")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if !anonymous {
			a.resume(ctx)
		}

		var reqBody any
		if body != nil {
			reqBody = body
		}
		resp, err := a.client.Do(ctx, method, path, reqBody, &api.RequestConfig{
			WithCredentials: !anonymous,
			Header:          header,
		})
		if err != nil {
			var rerr *api.ResponseError
			if api.IsHandledError(err) && errors.As(err, &rerr) {
				return fmt.Errorf("%s (status %d)", rerr.Class, rerr.Status)
			}
			return err
		}
		return printBody(cmd, resp.Body)
	})
}

func parseHeaders(raw []string) (http.Header, error) {
	h := http.Header{}
	for _, kv := range raw {
		name, value, ok := bytes.Cut([]byte(kv), []byte(":"))
		if !ok || len(bytes.TrimSpace(name)) == 0 {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", kv)
		}
		h.Add(string(bytes.TrimSpace(name)), string(bytes.TrimSpace(value)))
	}
	return h, nil
}

// printBody pretty prints JSON bodies and writes anything else as is.
func printBody(cmd *cobra.Command, body []byte) error {
	out := cmd.OutOrStdout()
	if len(body) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = out.Write(body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}
