// Command predictions compares NIR lamp predictions from instrument exports.
package main

import (
	"fmt"
	"os"

	"github.com/miquelpairo/predictionsreport/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
