package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drain-audit/internal/alerting"
	"drain-audit/internal/config"
	"drain-audit/internal/detect"
	"drain-audit/internal/fetcher"
	"drain-audit/internal/forecast"
	"drain-audit/internal/reconcile"
	"drain-audit/internal/telemetry"
)

// AuditReport is the composite reconciliation result of one pipeline run.
// Every derived entity is recomputed from scratch; nothing carries identity
// across runs except the run id itself.
type AuditReport struct {
	RunID         string                      `json:"runId"`
	GeneratedAt   time.Time                   `json:"generatedAt"`
	BaselineRates map[string]float64          `json:"baselineRates"`
	Events        []detect.DrainEvent         `json:"drainEvents"`
	Discrepancies []reconcile.Discrepancy     `json:"discrepancies"`
	Tickets       []reconcile.AnnotatedTicket `json:"tickets"`
}

// ForecastReport is the composite overflow-forecast result of one run.
type ForecastReport struct {
	RunID       string                `json:"runId"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Predictions []forecast.Prediction `json:"predictions"`
}

// Auditor orchestrates the analytics pipeline: fetch, normalize, estimate,
// detect, merge, reconcile, and forecast. It holds no state between runs.
type Auditor struct {
	snapshots fetcher.SnapshotFetcher
	tickets   fetcher.TicketFetcher
	vessels   fetcher.VesselFetcher
	notifier  alerting.Notifier
	logger    zerolog.Logger

	estimatorOpts   telemetry.EstimatorOptions
	defaultBaseline float64
	detector        *detect.Detector
	mergeGapMinutes float64
	matcherOpts     reconcile.Options
	forecastOpts    forecast.Options
	alertsOn        bool
}

// New constructs the auditor from runtime configuration.
func New(cfg *config.Config, snapshots fetcher.SnapshotFetcher, tickets fetcher.TicketFetcher, vessels fetcher.VesselFetcher, notifier alerting.Notifier, logger zerolog.Logger) *Auditor {
	defaultBaseline := cfg.Estimator.DefaultBaselineRate
	if defaultBaseline <= 0 {
		defaultBaseline = 0.1
	}
	mergeGap := cfg.Merger.MaxGapMinutes
	if mergeGap <= 0 {
		mergeGap = detect.DefaultMaxGapMinutes
	}

	return &Auditor{
		snapshots: snapshots,
		tickets:   tickets,
		vessels:   vessels,
		notifier:  notifier,
		logger:    logger.With().Str("component", "auditor").Logger(),
		estimatorOpts: telemetry.EstimatorOptions{
			MaxGapMinutes: cfg.Estimator.MaxGapMinutes,
			MinRate:       cfg.Estimator.MinRate,
			MaxRate:       cfg.Estimator.MaxRate,
		},
		defaultBaseline: defaultBaseline,
		detector: detect.NewDetector(detect.Options{
			MinSamples:         cfg.Detector.MinSamples,
			WindowMinutes:      cfg.Detector.WindowMinutes,
			WindowSlackMinutes: cfg.Detector.WindowSlackMinutes,
			DrainRateFactor:    cfg.Detector.DrainRateFactor,
			MinDurationMinutes: cfg.Detector.MinDurationMinutes,
			MinRemovedVolume:   cfg.Detector.MinRemovedVolume,
		}, logger),
		mergeGapMinutes: mergeGap,
		matcherOpts: reconcile.Options{
			TolerancePct:           cfg.Matcher.TolerancePct,
			MinorAbsDiff:           cfg.Matcher.MinorAbsDiff,
			MinorPct:               cfg.Matcher.MinorPct,
			MinorHighPct:           cfg.Matcher.MinorHighPct,
			SignificantHighPct:     cfg.Matcher.SignificantHighPct,
			SignificantCriticalPct: cfg.Matcher.SignificantCriticalPct,
		},
		forecastOpts: forecast.Options{
			HorizonHours:       cfg.Forecast.HorizonHours,
			CriticalUnderHours: cfg.Forecast.CriticalUnderHours,
			HighUnderHours:     cfg.Forecast.HighUnderHours,
		},
		alertsOn: cfg.Alerting.Enabled,
	}
}

// Audit runs the full reconciliation pipeline over a fresh upstream batch.
func (a *Auditor) Audit(ctx context.Context) (*AuditReport, error) {
	snapshots, err := a.snapshots.FetchSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	tickets, err := a.tickets.FetchTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	samples := telemetry.Normalize(snapshots)
	rates := telemetry.EstimateFillRates(samples, a.estimatorOpts)
	merged := detect.Merge(a.detectAll(samples, rates), a.mergeGapMinutes)
	discrepancies := reconcile.Match(merged, tickets, a.matcherOpts)
	annotated := reconcile.AnnotateTickets(tickets, discrepancies)

	report := &AuditReport{
		RunID:         uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
		BaselineRates: rates,
		Events:        merged,
		Discrepancies: discrepancies,
		Tickets:       annotated,
	}

	a.logger.Info().Str("run_id", report.RunID).
		Int("samples", len(samples)).
		Int("tickets", len(tickets)).
		Int("drain_events", len(merged)).
		Int("discrepancies", len(discrepancies)).
		Msg("audit completed")

	return report, nil
}

// Forecast runs the overflow projection over a fresh upstream batch.
func (a *Auditor) Forecast(ctx context.Context) (*ForecastReport, error) {
	snapshots, err := a.snapshots.FetchSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	vessels, err := a.vessels.FetchVessels(ctx)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	samples := telemetry.Normalize(snapshots)
	rates := telemetry.EstimateFillRates(samples, a.estimatorOpts)
	predictions := forecast.Predict(samples, vessels, rates, a.forecastOpts)

	report := &ForecastReport{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Predictions: predictions,
	}

	a.logger.Info().Str("run_id", report.RunID).
		Int("vessels", len(vessels)).
		Int("predictions", len(predictions)).
		Msg("forecast completed")

	return report, nil
}

// RunBucket executes one scheduled audit tick: a full audit plus forecast,
// with alerting on critical findings.
func (a *Auditor) RunBucket(ctx context.Context, bucket time.Time) error {
	audit, err := a.Audit(ctx)
	if err != nil {
		return err
	}
	fc, err := a.Forecast(ctx)
	if err != nil {
		return err
	}

	if !a.alertsOn || a.notifier == nil {
		return nil
	}

	note := buildNotification(audit, fc, bucket)
	if note.Empty() {
		return nil
	}
	if err := a.notifier.Notify(ctx, note); err != nil {
		a.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
	}
	return nil
}

// detectAll scans each vessel independently, substituting the small nonzero
// default for vessels whose baseline could not be estimated.
func (a *Auditor) detectAll(samples []telemetry.Sample, rates map[string]float64) []detect.DrainEvent {
	grouped := telemetry.GroupByVessel(samples)

	vessels := make([]string, 0, len(grouped))
	for id := range grouped {
		vessels = append(vessels, id)
	}
	sort.Strings(vessels)

	var events []detect.DrainEvent
	for _, id := range vessels {
		rate := rates[id]
		if rate == 0 {
			rate = a.defaultBaseline
		}
		events = append(events, a.detector.Detect(id, grouped[id], rate)...)
	}
	return events
}

func buildNotification(audit *AuditReport, fc *ForecastReport, bucket time.Time) alerting.Notification {
	note := alerting.Notification{RunID: audit.RunID, Bucket: bucket}

	for _, d := range audit.Discrepancies {
		if d.Severity != reconcile.SeverityCritical {
			continue
		}
		volume := d.TicketVolume
		if volume == 0 {
			volume = d.DrainVolume
		}
		note.Discrepancies = append(note.Discrepancies, alerting.DiscrepancyAlert{
			Type:     d.Type,
			Severity: d.Severity,
			VesselID: d.VesselID,
			Date:     d.Date,
			Volume:   decimal.NewFromFloat(volume),
			Message:  d.Message,
		})
	}

	for _, p := range fc.Predictions {
		if p.Urgency != forecast.UrgencyCritical {
			continue
		}
		note.Overflows = append(note.Overflows, alerting.OverflowAlert{
			VesselID:     p.VesselID,
			VesselName:   p.VesselName,
			HoursToFull:  decimal.NewFromFloat(p.HoursToFull),
			Urgency:      p.Urgency,
			OverflowTime: p.OverflowTime,
		})
	}

	return note
}
