package cli

import (
	"github.com/spf13/cobra"

	"github.com/miquelpairo/predictionsreport/internal/services"
)

func newInspectCommand(opts *globalOptions) *cobra.Command {
	var (
		format      string
		skipInvalid bool
	)

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the products, lamps and parameters of an export",
		Long: `Inspect parses an instrument export and lists what it holds: products,
the lamp keys measured on each product, the prediction parameters, the
sensor serial and the number of measurements.

Given a directory, the most recently modified export in it is inspected.
Lamp keys are printed as ID|Note, the form accepted by report --lamp.`,
		Example: `  predictions inspect wheat.xml
  predictions inspect exports/
  predictions inspect wheat.xml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			ws, err := opts.newWorkspace(cmd, skipInvalid)
			if err != nil {
				return err
			}

			result, err := ws.parse(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			summary := services.Summarize(services.StoredDataset{
				Dataset: result.Dataset,
				Skipped: result.Skipped,
			})
			if format == formatText {
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			}
			return printStructured(cmd.OutOrStdout(), format, summary)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "skip worksheets with schema errors instead of failing")
	return cmd
}
