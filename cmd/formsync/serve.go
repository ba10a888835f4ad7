package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/formsync-dev/formsync/internal/config"
	"github.com/formsync-dev/formsync/pkg/server"
	"github.com/formsync-dev/formsync/pkg/store"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync server",
		Long: `Run the HTTP/WebSocket sync server.

Configuration comes from formsync.json in the working directory;
--addr overrides the configured listen address.

Examples:
  formsync serve
  formsync serve --addr :9090
  formsync serve --config deploy/formsync.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, configPath)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to formsync.json")

	return cmd
}

func runServe(addr, configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = loadProjectConfig()
	}
	if err != nil {
		return err
	}
	if cfg.Path() == "" {
		warn("no %s found, using defaults", config.ConfigFileName)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	snapStore, err := newStore(context.Background(), cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Store:        snapStore,
		Logger:       logger.With("component", "server"),
	})
	if err != nil {
		return err
	}

	printBanner()
	info("listening on %s", cfg.Server.Addr)
	info("store backend: %s", cfg.Store.Backend)
	fmt.Println()

	if err := srv.Run(); err != nil {
		return err
	}
	return snapStore.Close()
}

// newStore builds the snapshot store named by the config.
func newStore(ctx context.Context, cfg *config.Config) (store.SnapshotStore, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil

	case config.BackendS3:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Store.S3.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Store.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return store.NewS3Store(client, cfg.Store.S3.Bucket,
			store.WithS3Prefix(cfg.Store.S3.Prefix)), nil

	case config.BackendRedis:
		// The redis store takes an injected client; the CLI has no driver.
		return nil, fmt.Errorf("the redis backend is only available when embedding formsync (store.NewRedisStore); the CLI supports memory and s3")

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
