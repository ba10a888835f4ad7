package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/formsync-dev/formsync/internal/config"
	"github.com/formsync-dev/formsync/pkg/submit"
)

func submitCmd() *cobra.Command {
	var (
		endpoint string
		encoding string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a snapshot to an endpoint",
		Long: `Submit a snapshot file to an HTTP endpoint.

Flags override the submit section of formsync.json when both are
present.

Examples:
  formsync submit order.json --endpoint https://api.example.com/orders
  formsync submit order.json --encoding form
  formsync submit order.yaml --encoding merge-patch --timeout 10s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(args[0], endpoint, encoding, timeout)
		},
	}

	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "Endpoint URL (default: submit.endpoint from formsync.json)")
	cmd.Flags().StringVar(&encoding, "encoding", "", "Wire encoding: json, form, multipart, or merge-patch")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (default: submit.timeoutSeconds from formsync.json)")

	return cmd
}

func runSubmit(file, endpoint, encoding string, timeout time.Duration) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	if endpoint == "" {
		endpoint = cfg.Submit.Endpoint
	}
	if endpoint == "" {
		return fmt.Errorf("no endpoint: pass --endpoint or set submit.endpoint in %s", config.ConfigFileName)
	}
	if encoding == "" {
		encoding = cfg.Submit.Encoding
	}
	enc, err := submit.ParseEncoding(encoding)
	if err != nil {
		return err
	}
	if timeout == 0 {
		timeout = cfg.SubmitTimeout()
	}

	snap, err := loadSnapshot(file)
	if err != nil {
		return err
	}

	sub := submit.New(endpoint,
		submit.WithEncoding(enc),
		submit.WithHTTPClient(&http.Client{Timeout: timeout}),
	)

	receipt, err := sub.Submit(context.Background(), snap)
	if err != nil {
		return err
	}

	success("submitted %s as %s (HTTP %d, %d response bytes)",
		file, receipt.Encoding, receipt.Status, receipt.BodyBytes)
	return nil
}
