package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"drain-audit/internal/service"
)

// Forecast runs the overflow projection once and prints the report.
func (a *App) Forecast(ctx context.Context, opts ForecastOptions) error {
	report, err := a.newAuditor().Forecast(ctx)
	if err != nil {
		return err
	}

	if opts.JSON {
		return writeJSON(report)
	}
	renderForecastReport(report)
	return nil
}

func renderForecastReport(report *service.ForecastReport) {
	fmt.Fprintf(os.Stdout, "Forecast run %s at %s\n\n", report.RunID, report.GeneratedAt.Format("2006-01-02 15:04:05"))

	if len(report.Predictions) == 0 {
		fmt.Fprintln(os.Stdout, "no vessels at risk of overflow within the horizon")
		return
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Urgency\tVessel\tLevel\tCapacity\tFill Rate\tHours To Full\tOverflow (UTC)")
	for _, p := range report.Predictions {
		name := p.VesselName
		if name == "" {
			name = p.VesselID
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Urgency,
			name,
			formatFloat(p.CurrentLevel, 1),
			formatFloat(p.MaxVolume, 1),
			formatFloat(p.FillRate, 2),
			formatFloat(p.HoursToFull, 1),
			p.OverflowTime.UTC().Format(time.RFC3339),
		)
	}
	writer.Flush()
}
