package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"drain-audit/internal/alerting"
	"drain-audit/internal/config"
	"drain-audit/internal/forecast"
	"drain-audit/internal/reconcile"
	"drain-audit/internal/telemetry"
)

// stubSource serves canned upstream data through all three fetcher interfaces.
type stubSource struct {
	snapshots []telemetry.Snapshot
	tickets   []telemetry.Ticket
	vessels   []telemetry.Vessel
	err       error
}

func (s *stubSource) FetchSnapshots(ctx context.Context) ([]telemetry.Snapshot, error) {
	return s.snapshots, s.err
}

func (s *stubSource) FetchTickets(ctx context.Context) ([]telemetry.Ticket, error) {
	return s.tickets, s.err
}

func (s *stubSource) FetchVessels(ctx context.Context) ([]telemetry.Vessel, error) {
	return s.vessels, s.err
}

type captureNotifier struct {
	notes []alerting.Notification
}

func (c *captureNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	c.notes = append(c.notes, note)
	return nil
}

// fixtureSnapshots builds a 5-minute cadence series for two vessels: V1 fills
// at 2/min, drains steeply between minute 65 and 90, then resumes filling.
// V2 sits flat the whole time.
func fixtureSnapshots() []telemetry.Snapshot {
	levels := []float64{
		500, 510, 520, 530, 540, 550, 560, 570, 580, 590, 600, 610, 620,
		570, 520, 470, 420, 370, 320,
		330, 340, 350, 360, 370, 380, 390,
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshots := make([]telemetry.Snapshot, len(levels))
	for i, level := range levels {
		at := base.Add(time.Duration(i) * 5 * time.Minute)
		snapshots[i] = telemetry.Snapshot{
			Timestamp: at.Format(time.RFC3339),
			Levels:    map[string]float64{"V1": level, "V2": 100},
		}
	}
	return snapshots
}

func TestAuditorFlagsUnloggedDrain(t *testing.T) {
	src := &stubSource{snapshots: fixtureSnapshots()}
	auditor := New(&config.Config{}, src, src, src, nil, zerolog.Nop())

	report, err := auditor.Audit(context.Background())
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}

	if report.BaselineRates["V1"] != 2.0 {
		t.Fatalf("expected V1 baseline 2.0, got %v", report.BaselineRates["V1"])
	}
	if report.BaselineRates["V2"] != 0 {
		t.Fatalf("flat vessel should estimate 0, got %v", report.BaselineRates["V2"])
	}

	if len(report.Events) != 1 {
		t.Fatalf("expected 1 drain event, got %+v", report.Events)
	}
	event := report.Events[0]
	if event.VesselID != "V1" {
		t.Fatalf("drain attributed to wrong vessel: %+v", event)
	}
	if event.DurationMinutes < 20 || event.TotalRemoved < 30 {
		t.Fatalf("event below reporting thresholds: %+v", event)
	}
	if event.TotalRemoved != event.LevelDrop+event.PotionGenerated {
		t.Fatalf("volume accounting broken: %+v", event)
	}

	if len(report.Discrepancies) != 1 {
		t.Fatalf("expected 1 discrepancy, got %+v", report.Discrepancies)
	}
	d := report.Discrepancies[0]
	if d.Type != reconcile.TypeUnloggedDrain || d.Severity != reconcile.SeverityCritical {
		t.Fatalf("drain without ticket should be critical unlogged: %+v", d)
	}
	if d.VesselID != "V1" || d.Date != "2025-01-01" {
		t.Fatalf("discrepancy bucket wrong: %+v", d)
	}

	if len(report.Tickets) != 0 {
		t.Fatalf("no tickets were supplied, got %+v", report.Tickets)
	}
}

func TestAuditorMatchesLoggedDrain(t *testing.T) {
	src := &stubSource{snapshots: fixtureSnapshots()}
	auditor := New(&config.Config{}, src, src, src, nil, zerolog.Nop())

	// First pass learns the detected volume, second pass logs a ticket for it.
	report, err := auditor.Audit(context.Background())
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	if len(report.Events) != 1 {
		t.Fatalf("expected 1 drain event, got %+v", report.Events)
	}

	src.tickets = []telemetry.Ticket{{
		Date:            "2025-01-01",
		VesselID:        "V1",
		AmountCollected: report.Events[0].TotalRemoved,
		CourierID:       "C1",
	}}

	report, err = auditor.Audit(context.Background())
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	if len(report.Discrepancies) != 0 {
		t.Fatalf("matching ticket should reconcile cleanly: %+v", report.Discrepancies)
	}
	if len(report.Tickets) != 1 || report.Tickets[0].Suspicious {
		t.Fatalf("matched ticket must not be suspicious: %+v", report.Tickets)
	}
}

func TestAuditorPropagatesFetchError(t *testing.T) {
	src := &stubSource{err: errors.New("upstream down")}
	auditor := New(&config.Config{}, src, src, src, nil, zerolog.Nop())

	if _, err := auditor.Audit(context.Background()); err == nil {
		t.Fatal("fetch failure must surface")
	}
	if _, err := auditor.Forecast(context.Background()); err == nil {
		t.Fatal("fetch failure must surface")
	}
}

func TestRunBucketNotifiesCriticalFindings(t *testing.T) {
	src := &stubSource{
		snapshots: fixtureSnapshots(),
		vessels: []telemetry.Vessel{
			{ID: "V1", Name: "North Tank", MaxVolume: 600},
			{ID: "V2", Name: "South Tank", MaxVolume: 10000},
		},
	}
	notifier := &captureNotifier{}
	cfg := &config.Config{}
	cfg.Alerting.Enabled = true

	auditor := New(cfg, src, src, src, notifier, zerolog.Nop())
	bucket := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	if err := auditor.RunBucket(context.Background(), bucket); err != nil {
		t.Fatalf("run bucket failed: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if !note.Bucket.Equal(bucket) {
		t.Fatalf("wrong bucket on notification: %v", note.Bucket)
	}

	if len(note.Discrepancies) != 1 || note.Discrepancies[0].Type != reconcile.TypeUnloggedDrain {
		t.Fatalf("critical discrepancy missing: %+v", note.Discrepancies)
	}

	// V1 sits at 390 of 600 filling at 2/min: full in 1.75h, critical.
	if len(note.Overflows) != 1 {
		t.Fatalf("expected 1 overflow alert, got %+v", note.Overflows)
	}
	overflow := note.Overflows[0]
	if overflow.VesselID != "V1" || overflow.Urgency != forecast.UrgencyCritical {
		t.Fatalf("unexpected overflow alert: %+v", overflow)
	}
}

func TestRunBucketSkipsNotifierWhenClean(t *testing.T) {
	// Steady fill, no drain, vessel far from full.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshots := make([]telemetry.Snapshot, 15)
	for i := range snapshots {
		at := base.Add(time.Duration(i) * 5 * time.Minute)
		snapshots[i] = telemetry.Snapshot{
			Timestamp: at.Format(time.RFC3339),
			Levels:    map[string]float64{"V1": 100 + float64(i)*10},
		}
	}

	src := &stubSource{
		snapshots: snapshots,
		vessels:   []telemetry.Vessel{{ID: "V1", MaxVolume: 100000}},
	}
	notifier := &captureNotifier{}
	cfg := &config.Config{}
	cfg.Alerting.Enabled = true

	auditor := New(cfg, src, src, src, notifier, zerolog.Nop())
	if err := auditor.RunBucket(context.Background(), time.Now()); err != nil {
		t.Fatalf("run bucket failed: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("clean run must not notify: %+v", notifier.notes)
	}
}
