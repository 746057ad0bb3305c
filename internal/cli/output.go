package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/miquelpairo/predictionsreport/internal/services"
)

// Output formats of the structured commands.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var outputFormats = []string{formatText, formatJSON, formatYAML}

func checkFormat(format string) error {
	for _, f := range outputFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(outputFormats, ", "))
}

// printStructured writes v as indented JSON or YAML.
func printStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported structured format %q", format)
	}
}

func printSummary(w io.Writer, s services.DatasetSummary) {
	fmt.Fprintf(w, "Source:        %s\n", s.Name)
	if s.SensorSerial != "" {
		fmt.Fprintf(w, "Sensor serial: %s\n", s.SensorSerial)
	}
	fmt.Fprintf(w, "Measurements:  %d\n", s.Measurements)
	fmt.Fprintf(w, "Parameters:    %s\n", strings.Join(s.Parameters, ", "))

	fmt.Fprintf(w, "\nProducts (%d):\n", len(s.Products))
	for _, product := range s.Products {
		fmt.Fprintf(w, "  %s\n", product)
		for _, lamp := range s.LampsByProduct[product] {
			fmt.Fprintf(w, "    - %s\n", lamp)
		}
	}

	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped worksheets (%d):\n", len(s.Skipped))
		for _, sheet := range s.Skipped {
			fmt.Fprintf(w, "  %s: %s\n", sheet.Name, sheet.Reason)
		}
	}
}

// writeOutput writes body to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, body []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(body)
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
