package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pingbot/internal/config"
	"github.com/oshokin/pingbot/internal/logger"
	"github.com/oshokin/pingbot/internal/service/server"
	"github.com/oshokin/pingbot/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// grpcAddress overrides the query surface listen address.
	grpcAddress string

	// rootCmd represents the base command for running the bot server.
	rootCmd = &cobra.Command{
		Use:   "pingbot-server [http-listen-address]",
		Short: "Run the pingbot webhook and query servers.",
		Long: `Starts the chat-bot backend.

The HTTP server receives messaging provider webhooks, turns location pins,
TITLE.LOCATION messages and catalog button presses into short-lived pings and
tracks subscribers. While the demo is active, a summary of live pings and
telemetry markers is pushed to every subscriber on a fixed period.

The gRPC server exposes the active pings, the next summary time and a
subscriber reset. Secrets may be provided through the environment
(LINE_CHANNEL_TOKEN, LINE_CHANNEL_SECRET, TELEMETRY_GATEWAY_TOKEN,
GEOCODE_API_KEY, PINGBOT_QUERY_TOKEN, DEMO_ACTIVE).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			// Use listen address argument if provided, otherwise rely on config.
			var httpAddress string
			if len(args) > 0 {
				httpAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:  configPath,
				HTTPAddress: httpAddress,
				GRPCAddress: grpcAddress,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the pingbot-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&grpcAddress, "grpc-address", "g", "", "override the gRPC listen address")
}
