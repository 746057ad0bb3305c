package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miquelpairo/predictionsreport/pkg/contracts"
)

func newVersionCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Example: `  predictions version
  predictions version --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			if format == formatText {
				fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
				return nil
			}
			return printStructured(cmd.OutOrStdout(), format, contracts.GetVersionInfo())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format (text, json, yaml)")
	return cmd
}
