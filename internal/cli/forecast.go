package cli

import (
	"github.com/spf13/cobra"

	"drain-audit/internal/app"
)

var forecastJSON bool

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project overflow risk once and print the ranked forecasts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Forecast(cmd.Context(), app.ForecastOptions{JSON: forecastJSON})
	},
}

func init() {
	forecastCmd.Flags().BoolVar(&forecastJSON, "json", false, "Emit the report as JSON")
}
