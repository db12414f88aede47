package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pingbot/internal/config"
	"github.com/oshokin/pingbot/internal/service/watcher"
	"github.com/oshokin/pingbot/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// once polls a single time and exits.
	once bool

	// rootCmd represents the base command for watching pings.
	rootCmd = &cobra.Command{
		Use:   "pingbot-watch [server-address]",
		Short: "Poll the pingbot query surface and log active pings.",
		Long: `Polls the pingbot gRPC server at fixed 5-second intervals and logs the
next summary time and every active ping with its remaining lifetime.

Server address can be provided as argument or loaded from configuration file.
When an address is given, the configuration file is optional and the query
token is read from PINGBOT_QUERY_TOKEN.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use server address argument if provided, otherwise rely on config.
			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			watcherOptions := &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Once:          once,
			}

			return watcher.Run(ctx, watcherOptions)
		},
	}
)

// Execute runs the pingbot-watch CLI and exits with non-zero status on error.
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
	rootCmd.Flags().BoolVarP(&once, "once", "1", false, "poll once and exit")
}
