package detect

import (
	"time"

	"github.com/rs/zerolog"

	"drain-audit/internal/telemetry"
)

// Options tune the windowed drain scan.
type Options struct {
	// MinSamples is the minimum ordered sample count before a vessel is scanned.
	MinSamples int
	// WindowMinutes is the nominal comparison window; a window is accepted when
	// its actual elapsed time lies within WindowSlackMinutes of the nominal.
	WindowMinutes      float64
	WindowSlackMinutes float64
	// DrainRateFactor: a window qualifies as draining when its observed rate
	// falls below DrainRateFactor × the baseline fill rate.
	DrainRateFactor float64
	// MinDurationMinutes and MinRemovedVolume suppress false positives; spans
	// failing either are discarded and the scan advances by one sample.
	MinDurationMinutes float64
	MinRemovedVolume   float64
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		MinSamples:         10,
		WindowMinutes:      30,
		WindowSlackMinutes: 5,
		DrainRateFactor:    0.3,
		MinDurationMinutes: 20,
		MinRemovedVolume:   30,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MinSamples <= 0 {
		o.MinSamples = def.MinSamples
	}
	if o.WindowMinutes <= 0 {
		o.WindowMinutes = def.WindowMinutes
	}
	if o.WindowSlackMinutes <= 0 {
		o.WindowSlackMinutes = def.WindowSlackMinutes
	}
	if o.DrainRateFactor <= 0 {
		o.DrainRateFactor = def.DrainRateFactor
	}
	if o.MinDurationMinutes <= 0 {
		o.MinDurationMinutes = def.MinDurationMinutes
	}
	if o.MinRemovedVolume <= 0 {
		o.MinRemovedVolume = def.MinRemovedVolume
	}
	return o
}

// Detector scans one vessel's ordered samples for drain spans. Vessels are
// independent of each other, so a Detector may be shared across them.
type Detector struct {
	opts   Options
	logger zerolog.Logger
}

// NewDetector constructs a detector with the given thresholds.
func NewDetector(opts Options, logger zerolog.Logger) *Detector {
	return &Detector{
		opts:   opts.withDefaults(),
		logger: logger.With().Str("component", "drain_detector").Logger(),
	}
}

// Detect emits candidate drain events for a single vessel. The baseline rate
// must already have the small-nonzero substitution applied by the caller.
// Vessels with too few samples are skipped, not errors.
func (d *Detector) Detect(vesselID string, samples []telemetry.Sample, baselineRate float64) []DrainEvent {
	if len(samples) < d.opts.MinSamples {
		d.logger.Debug().Str("vessel", vesselID).Int("samples", len(samples)).
			Msg("insufficient samples, vessel skipped")
		return nil
	}

	ordered := telemetry.SortByTime(samples)
	times := make([]time.Time, len(ordered))
	parsed := make([]bool, len(ordered))
	for i, s := range ordered {
		times[i], parsed[i] = telemetry.ParseTime(s.Timestamp)
	}

	var events []DrainEvent
	expected := d.opts.DrainRateFactor * baselineRate

	i := 0
	for i < len(ordered)-1 {
		end := d.windowEnd(times, parsed, i)
		if end < 0 || !d.qualifies(ordered, times, i, end, expected) {
			i++
			continue
		}

		// Extend the span while successive windows keep qualifying.
		for {
			next := d.windowEnd(times, parsed, end)
			if next < 0 || !d.qualifies(ordered, times, end, next, expected) {
				break
			}
			end = next
		}

		duration := telemetry.MinutesBetween(times[i], times[end])
		drop := ordered[i].Level - ordered[end].Level
		generated := baselineRate * duration
		removed := drop + generated

		if duration < d.opts.MinDurationMinutes || removed < d.opts.MinRemovedVolume {
			i++
			continue
		}

		event := DrainEvent{
			VesselID:        vesselID,
			StartTime:       ordered[i].Timestamp,
			EndTime:         ordered[end].Timestamp,
			DurationMinutes: duration,
			StartLevel:      ordered[i].Level,
			EndLevel:        ordered[end].Level,
			LevelDrop:       drop,
			PotionGenerated: generated,
			TotalRemoved:    removed,
			FillRate:        baselineRate,
			DrainRate:       removed / duration,
		}
		events = append(events, event)
		d.logger.Debug().Str("vessel", vesselID).
			Str("start", event.StartTime).Str("end", event.EndTime).
			Float64("removed", event.TotalRemoved).
			Msg("drain span detected")

		i = end + 1
	}

	return events
}

// windowEnd locates the first sample whose elapsed time from start falls
// inside the accepted window band. Returns -1 when no sample does, or when the
// start timestamp itself failed to parse.
func (d *Detector) windowEnd(times []time.Time, parsed []bool, start int) int {
	if !parsed[start] {
		return -1
	}
	lo := d.opts.WindowMinutes - d.opts.WindowSlackMinutes
	hi := d.opts.WindowMinutes + d.opts.WindowSlackMinutes
	for j := start + 1; j < len(times); j++ {
		if !parsed[j] {
			continue
		}
		elapsed := telemetry.MinutesBetween(times[start], times[j])
		if elapsed < lo {
			continue
		}
		if elapsed > hi {
			return -1
		}
		return j
	}
	return -1
}

func (d *Detector) qualifies(samples []telemetry.Sample, times []time.Time, start, end int, expectedRate float64) bool {
	elapsed := telemetry.MinutesBetween(times[start], times[end])
	if elapsed <= 0 {
		return false
	}
	observed := (samples[end].Level - samples[start].Level) / elapsed
	return observed < expectedRate
}
