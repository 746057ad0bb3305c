package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/miquelpairo/predictionsreport/internal/config"
	"github.com/miquelpairo/predictionsreport/internal/dataprocessing"
	"github.com/miquelpairo/predictionsreport/internal/files"
	"github.com/miquelpairo/predictionsreport/internal/infrastructure"
	"github.com/miquelpairo/predictionsreport/internal/services"
	"github.com/miquelpairo/predictionsreport/internal/validation"
	"github.com/miquelpairo/predictionsreport/pkg/contracts"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the predictions command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "predictions",
		Short: "Compare NIR lamp predictions from instrument exports",
		Long: `predictions reads SpreadsheetML 2003 exports of a NIR analyser, groups the
predictions by product and lamp, and reports how the lamps differ.

Use inspect to see what an export holds, report to compare lamps, and serve
to run the same analysis behind an HTTP API.`,
		Version:       contracts.GetFullVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: first of "+strings.Join(config.DefaultConfigLocations, ", ")+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newInspectCommand(opts),
		newReportCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// Execute runs the command tree until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig reads the configuration and applies the global flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// workspace holds what the file commands share. The analysis service has no
// store and logs go to the command's stderr.
type workspace struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *services.AnalysisService
	files   *validation.FileValidator
	exports *files.Discovery
}

func (o *globalOptions) newWorkspace(cmd *cobra.Command, skipInvalid bool) (*workspace, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if skipInvalid {
		cfg.Analysis.SkipInvalidSheets = true
	}

	logger := infrastructure.NewLogger(cmd.ErrOrStderr(), cfg.Logging)
	return &workspace{
		cfg:     cfg,
		logger:  logger.With(slog.String("command", cmd.Name())),
		service: services.NewAnalysisService(cfg.Analysis, cfg.Report, logger),
		files:   validation.NewFileValidator(logger, 0),
		exports: files.NewDiscovery(""),
	}, nil
}

// parse validates and reads the export at path, or the newest export in
// path when it is a directory. Skipped worksheets are logged as warnings.
func (w *workspace) parse(ctx context.Context, path string) (*dataprocessing.ParseResult, error) {
	path, err := w.exports.ResolveExport(path)
	if err != nil {
		return nil, err
	}
	if err := w.files.ValidateExportFile(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result, err := w.service.Parse(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	for _, skipped := range result.Skipped {
		w.logger.WarnContext(ctx, "worksheet skipped",
			slog.String("worksheet", skipped.Name),
			slog.String("reason", skipped.Reason.Error()))
	}
	return result, nil
}
