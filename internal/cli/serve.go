package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miquelpairo/predictionsreport/internal/app"
	"github.com/miquelpairo/predictionsreport/internal/infrastructure"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve starts the HTTP API. Exports uploaded to /api/v1/datasets are kept
in memory for the configured TTL and can be queried for statistics,
comparisons and reports until they expire.

The server stops gracefully on SIGINT or SIGTERM.`,
		Example: `  predictions serve
  predictions serve --host 0.0.0.0 --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := infrastructure.InitializeLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer infrastructure.CloseLogFile()

			application, err := app.NewApplication(cfg, logger)
			if err != nil {
				logger.Error("failed to create application", slog.String("error", err.Error()))
				return err
			}
			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
