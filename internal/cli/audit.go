package cli

import (
	"github.com/spf13/cobra"

	"drain-audit/internal/app"
)

var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the reconciliation pipeline once and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Audit(cmd.Context(), app.AuditOptions{JSON: auditJSON})
	},
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Emit the report as JSON")
}
