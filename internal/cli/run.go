package cli

import (
	"github.com/spf13/cobra"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled audit service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runOnce {
			return getApp().RunOnce(cmd.Context())
		}
		return getApp().Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Execute a single audit bucket and exit")
}
