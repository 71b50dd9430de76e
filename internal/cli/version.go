package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"drain-audit/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, version.String())
	},
}
