package cli

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miquelpairo/predictionsreport/internal/services"
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

type reportOptions struct {
	products     []string
	lamps        []string
	parameters   []string
	lampA        string
	lampB        string
	baselineLamp string
	baseline     string
	format       string
	out          string
	csvPath      string
	csvTable     string
	xlsxPath     string
	skipInvalid  bool
}

// request turns the flags into a comparison request.
func (o *reportOptions) request(cmd *cobra.Command) (services.ComparisonRequest, error) {
	req := services.ComparisonRequest{
		Selection: domain.Selection{
			Products:   o.products,
			Parameters: o.parameters,
		},
		Baseline: domain.BaselineSide(o.baseline),
	}
	for _, lamp := range o.lamps {
		req.Selection.LampKeys = append(req.Selection.LampKeys, domain.ParseLampKey(lamp))
	}

	if cmd.Flags().Changed("lamp-a") || cmd.Flags().Changed("lamp-b") {
		if o.lampA == "" || o.lampB == "" {
			return req, services.ErrIncompletePair
		}
		a, b := domain.ParseLampKey(o.lampA), domain.ParseLampKey(o.lampB)
		req.LampA, req.LampB = &a, &b
	}
	if o.baselineLamp != "" {
		key := domain.ParseLampKey(o.baselineLamp)
		req.BaselineLamp = &key
	}
	return req, req.Validate()
}

func newReportCommand(opts *globalOptions) *cobra.Command {
	ro := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Compare lamps and write a report",
		Long: `Report aggregates the predictions of an export per product, lamp and
parameter and compares lamps.

With --lamp-a and --lamp-b the two lamps are compared on every selected
product. Otherwise every selected lamp is compared against --baseline-lamp,
or against the first selected lamp of each product.

The report goes to --out (stdout by default) as text, or as the full
analysis in JSON or YAML. --csv and --xlsx additionally export the numbers.
Given a directory, the most recently modified export in it is used.`,
		Example: `  predictions report wheat.xml
  predictions report wheat.xml --lamp-a 'LampA|' --lamp-b 'LampB|' --baseline a
  predictions report wheat.xml --product Wheat --param H --csv wheat.csv --csv-table differences
  predictions report wheat.xml --format json --out analysis.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(ro.format); err != nil {
				return err
			}
			if err := checkTable(ro.csvTable); err != nil {
				return err
			}
			req, err := ro.request(cmd)
			if err != nil {
				return err
			}

			ws, err := opts.newWorkspace(cmd, ro.skipInvalid)
			if err != nil {
				return err
			}
			for _, path := range []string{ro.out, ro.csvPath, ro.xlsxPath} {
				if path == "" || path == "-" {
					continue
				}
				if err := ws.files.ValidateOutputFile(path); err != nil {
					return err
				}
			}

			return runReport(cmd, ws, args[0], req, ro)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&ro.products, "product", nil, "product to include (repeatable, default all)")
	f.StringArrayVar(&ro.lamps, "lamp", nil, "lamp key ID|Note to include (repeatable, default all)")
	f.StringArrayVar(&ro.parameters, "param", nil, "parameter to include (repeatable, default all)")
	f.StringVar(&ro.lampA, "lamp-a", "", "first lamp of a pairwise comparison (ID|Note)")
	f.StringVar(&ro.lampB, "lamp-b", "", "second lamp of a pairwise comparison (ID|Note)")
	f.StringVar(&ro.baselineLamp, "baseline-lamp", "", "lamp every other lamp is compared against (ID|Note)")
	f.StringVar(&ro.baseline, "baseline", "", "side percent differences are relative to (a, b)")
	f.StringVarP(&ro.format, "format", "f", formatText, "report format (text, json, yaml)")
	f.StringVarP(&ro.out, "out", "o", "", "report file (default stdout)")
	f.StringVar(&ro.csvPath, "csv", "", "also export a CSV table to this file")
	f.StringVar(&ro.csvTable, "csv-table", services.TableStatistics, "CSV table (statistics, differences, summary)")
	f.StringVar(&ro.xlsxPath, "xlsx", "", "also export an XLSX workbook to this file")
	f.BoolVar(&ro.skipInvalid, "skip-invalid", false, "skip worksheets with schema errors instead of failing")

	cmd.MarkFlagsMutuallyExclusive("lamp-a", "baseline-lamp")
	cmd.MarkFlagsMutuallyExclusive("lamp-b", "baseline-lamp")
	return cmd
}

func runReport(cmd *cobra.Command, ws *workspace, path string, req services.ComparisonRequest, ro *reportOptions) error {
	ctx := cmd.Context()

	parsed, err := ws.parse(ctx, path)
	if err != nil {
		return err
	}

	result, err := ws.service.Analyze(ctx, parsed.Dataset, req)
	if err != nil {
		return err
	}

	if ro.format == formatText {
		rendered, err := ws.service.Render(ctx, result, services.RenderOptions{Format: services.FormatText})
		if err != nil {
			return err
		}
		if err := writeOutput(cmd.OutOrStdout(), ro.out, rendered.Body); err != nil {
			return err
		}
	} else {
		var buf bytes.Buffer
		if err := printStructured(&buf, ro.format, result); err != nil {
			return err
		}
		if err := writeOutput(cmd.OutOrStdout(), ro.out, buf.Bytes()); err != nil {
			return err
		}
	}

	if ro.csvPath != "" {
		if err := export(cmd, ws, result, services.RenderOptions{Format: services.FormatCSV, Table: ro.csvTable}, ro.csvPath); err != nil {
			return err
		}
	}
	if ro.xlsxPath != "" {
		if err := export(cmd, ws, result, services.RenderOptions{Format: services.FormatXLSX}, ro.xlsxPath); err != nil {
			return err
		}
	}

	ws.logger.InfoContext(ctx, "report written",
		slog.String("source", result.Source),
		slog.String("mode", result.Comparison.Mode),
		slog.Int("stats", len(result.Statistics)),
		slog.Int("differences", len(result.Comparison.Differences)))
	return nil
}

func export(cmd *cobra.Command, ws *workspace, result *services.AnalysisResult, opts services.RenderOptions, path string) error {
	rendered, err := ws.service.Render(cmd.Context(), result, opts)
	if err != nil {
		return fmt.Errorf("%s export: %w", opts.Format, err)
	}
	return writeOutput(cmd.OutOrStdout(), path, rendered.Body)
}

func checkTable(table string) error {
	switch table {
	case services.TableStatistics, services.TableDifferences, services.TableSummary:
		return nil
	}
	return fmt.Errorf("invalid CSV table %q: must be one of %s, %s, %s",
		table, services.TableStatistics, services.TableDifferences, services.TableSummary)
}
