package reconcile

import (
	"strings"

	"drain-audit/internal/detect"
	"drain-audit/internal/telemetry"
)

// AnnotatedTicket is a ticket joined with every discrepancy that references
// it. Purely derived; the discrepancy set itself is never altered.
type AnnotatedTicket struct {
	telemetry.Ticket
	Key        string              `json:"key"`
	Suspicious bool                `json:"suspicious"`
	Severity   string              `json:"severity,omitempty"`
	Reasons    string              `json:"reasons,omitempty"`
	Drains     []detect.DrainEvent `json:"drainEvents,omitempty"`
}

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// AnnotateTickets marks each ticket with the discrepancies referencing its
// identity. A ticket with none is not suspicious; otherwise it takes the
// highest referenced severity, the concatenated messages, and every linked
// drain event.
func AnnotateTickets(tickets []telemetry.Ticket, discrepancies []Discrepancy) []AnnotatedTicket {
	byKey := make(map[string][]Discrepancy)
	for _, d := range discrepancies {
		if d.TicketKey == "" {
			continue
		}
		byKey[d.TicketKey] = append(byKey[d.TicketKey], d)
	}

	annotated := make([]AnnotatedTicket, 0, len(tickets))
	for _, t := range tickets {
		key := t.Key()
		at := AnnotatedTicket{Ticket: t, Key: key}

		linked := byKey[key]
		if len(linked) == 0 {
			annotated = append(annotated, at)
			continue
		}

		at.Suspicious = true
		messages := make([]string, 0, len(linked))
		for _, d := range linked {
			if severityRank[d.Severity] > severityRank[at.Severity] {
				at.Severity = d.Severity
			}
			messages = append(messages, d.Message)
			if d.Drain != nil {
				at.Drains = append(at.Drains, *d.Drain)
			}
		}
		at.Reasons = strings.Join(messages, "; ")
		annotated = append(annotated, at)
	}
	return annotated
}
