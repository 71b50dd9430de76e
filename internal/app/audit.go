package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"drain-audit/internal/service"
)

// Audit runs the reconciliation pipeline once and prints the report.
func (a *App) Audit(ctx context.Context, opts AuditOptions) error {
	report, err := a.newAuditor().Audit(ctx)
	if err != nil {
		return err
	}

	if opts.JSON {
		return writeJSON(report)
	}
	renderAuditReport(report)
	return nil
}

func renderAuditReport(report *service.AuditReport) {
	fmt.Fprintf(os.Stdout, "Audit run %s at %s\n\n", report.RunID, report.GeneratedAt.Format("2006-01-02 15:04:05"))

	if len(report.Events) == 0 {
		fmt.Fprintln(os.Stdout, "no drain events detected")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Vessel\tStart\tEnd\tMinutes\tLevel Drop\tRemoved\tDrain Rate")
		for _, ev := range report.Events {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				ev.VesselID,
				ev.StartTime,
				ev.EndTime,
				formatFloat(ev.DurationMinutes, 1),
				formatFloat(ev.LevelDrop, 1),
				formatFloat(ev.TotalRemoved, 1),
				formatFloat(ev.DrainRate, 2),
			)
		}
		writer.Flush()
	}

	fmt.Fprintln(os.Stdout)
	if len(report.Discrepancies) == 0 {
		fmt.Fprintln(os.Stdout, "no discrepancies found")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Type\tSeverity\tVessel\tDate\tTicket Vol\tDrain Vol\tDiff%\tMessage")
		for _, d := range report.Discrepancies {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				d.Type,
				d.Severity,
				d.VesselID,
				d.Date,
				formatFloat(d.TicketVolume, 1),
				formatFloat(d.DrainVolume, 1),
				formatFloat(d.PercentDiff, 1),
				sanitizeInline(d.Message),
			)
		}
		writer.Flush()
	}

	suspicious := 0
	for _, t := range report.Tickets {
		if t.Suspicious {
			suspicious++
		}
	}
	fmt.Fprintf(os.Stdout, "\n%d of %d tickets flagged suspicious\n", suspicious, len(report.Tickets))
}

func writeJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
