package reconcile

import (
	"strings"
	"testing"

	"drain-audit/internal/telemetry"
)

func TestAnnotateCleanTicket(t *testing.T) {
	tickets := []telemetry.Ticket{ticketOn("2025-01-01", "V1", 100)}

	annotated := AnnotateTickets(tickets, nil)
	if len(annotated) != 1 {
		t.Fatalf("expected 1 annotated ticket, got %d", len(annotated))
	}
	at := annotated[0]
	if at.Suspicious {
		t.Fatalf("ticket with no discrepancies must not be suspicious: %+v", at)
	}
	if at.Key == "" {
		t.Fatal("annotated ticket must carry its identity key")
	}
}

func TestAnnotateSuspiciousTicketTakesHighestSeverity(t *testing.T) {
	ticket := ticketOn("2025-01-01", "V1", 100)
	drain := drainOn("2025-01-01", "V1", 95)

	discrepancies := []Discrepancy{
		{
			Type:      TypeMinorMismatch,
			Severity:  SeverityMedium,
			TicketKey: ticket.Key(),
			Drain:     &drain,
			Message:   "medium finding",
		},
		{
			Type:      TypeSignificantMismatch,
			Severity:  SeverityHigh,
			TicketKey: ticket.Key(),
			Message:   "high finding",
		},
	}

	annotated := AnnotateTickets([]telemetry.Ticket{ticket}, discrepancies)
	at := annotated[0]
	if !at.Suspicious {
		t.Fatal("ticket with discrepancies must be suspicious")
	}
	if at.Severity != SeverityHigh {
		t.Fatalf("expected highest severity high, got %s", at.Severity)
	}
	if !strings.Contains(at.Reasons, "medium finding") || !strings.Contains(at.Reasons, "high finding") {
		t.Fatalf("all messages should be concatenated: %q", at.Reasons)
	}
	if len(at.Drains) != 1 {
		t.Fatalf("linked drains should be attached, got %d", len(at.Drains))
	}
}

func TestAnnotateExplicitIDLookup(t *testing.T) {
	ticket := telemetry.Ticket{ID: "T-1", Date: "2025-01-01", VesselID: "V1", AmountCollected: 50, CourierID: "C1"}
	discrepancies := []Discrepancy{
		{Type: TypePhantomTicket, Severity: SeverityCritical, TicketKey: "T-1", Message: "phantom"},
	}

	annotated := AnnotateTickets([]telemetry.Ticket{ticket}, discrepancies)
	if !annotated[0].Suspicious || annotated[0].Severity != SeverityCritical {
		t.Fatalf("explicit-id lookup failed: %+v", annotated[0])
	}
}

func TestAnnotateIgnoresUnrelatedDiscrepancies(t *testing.T) {
	ticket := ticketOn("2025-01-01", "V1", 100)
	drain := drainOn("2025-01-01", "V2", 40)
	discrepancies := []Discrepancy{
		{Type: TypeUnloggedDrain, Severity: SeverityCritical, Drain: &drain, Message: "unlogged"},
	}

	annotated := AnnotateTickets([]telemetry.Ticket{ticket}, discrepancies)
	if annotated[0].Suspicious {
		t.Fatalf("unlogged drains reference no ticket: %+v", annotated[0])
	}
}
