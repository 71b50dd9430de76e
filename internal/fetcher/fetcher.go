package fetcher

import (
	"context"

	"drain-audit/internal/telemetry"
)

// SnapshotFetcher retrieves raw per-timestamp level snapshots.
type SnapshotFetcher interface {
	FetchSnapshots(ctx context.Context) ([]telemetry.Snapshot, error)
}

// TicketFetcher retrieves reported collection tickets.
type TicketFetcher interface {
	FetchTickets(ctx context.Context) ([]telemetry.Ticket, error)
}

// VesselFetcher retrieves vessel reference data.
type VesselFetcher interface {
	FetchVessels(ctx context.Context) ([]telemetry.Vessel, error)
}
