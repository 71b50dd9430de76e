package telemetry

import (
	"sort"
	"time"
)

// EstimatorOptions bound which consecutive-pair rates count toward the
// baseline estimate.
type EstimatorOptions struct {
	// MaxGapMinutes is the largest pair spacing still considered consecutive.
	MaxGapMinutes float64
	// MinRate and MaxRate delimit the plausible fill band, exclusive on both
	// ends. Rates outside are sensor noise or drain artifacts.
	MinRate float64
	MaxRate float64
}

// DefaultEstimatorOptions returns the production thresholds.
func DefaultEstimatorOptions() EstimatorOptions {
	return EstimatorOptions{MaxGapMinutes: 5, MinRate: 0.01, MaxRate: 10}
}

func (o EstimatorOptions) withDefaults() EstimatorOptions {
	def := DefaultEstimatorOptions()
	if o.MaxGapMinutes <= 0 {
		o.MaxGapMinutes = def.MaxGapMinutes
	}
	if o.MinRate <= 0 {
		o.MinRate = def.MinRate
	}
	if o.MaxRate <= 0 {
		o.MaxRate = def.MaxRate
	}
	return o
}

// EstimateFillRate derives one vessel's baseline fill rate in volume-units per
// minute: the median of positive consecutive-pair rates inside the plausible
// band. Returns 0 when no pair qualifies; callers substitute a small nonzero
// default before dividing by it.
func EstimateFillRate(samples []Sample, opts EstimatorOptions) float64 {
	opts = opts.withDefaults()

	ordered := SortByTime(samples)
	rates := make([]float64, 0, len(ordered))
	for i := 0; i+1 < len(ordered); i++ {
		cur, curOK := ParseTime(ordered[i].Timestamp)
		next, nextOK := ParseTime(ordered[i+1].Timestamp)
		if !curOK || !nextOK {
			continue
		}
		gap := MinutesBetween(cur, next)
		if gap <= 0 || gap > opts.MaxGapMinutes {
			continue
		}
		rate := (ordered[i+1].Level - ordered[i].Level) / gap
		if rate <= opts.MinRate || rate >= opts.MaxRate {
			continue
		}
		rates = append(rates, rate)
	}

	return median(rates)
}

// EstimateFillRates computes baseline rates for every vessel present in the
// sample stream.
func EstimateFillRates(samples []Sample, opts EstimatorOptions) map[string]float64 {
	rates := make(map[string]float64)
	for vesselID, vesselSamples := range GroupByVessel(samples) {
		rates[vesselID] = EstimateFillRate(vesselSamples, opts)
	}
	return rates
}

// SortByTime returns a copy of samples stably ordered by parsed timestamp.
// Samples with unparseable timestamps keep their relative order after all
// parseable ones.
func SortByTime(samples []Sample) []Sample {
	type timed struct {
		Sample
		at time.Time
		ok bool
	}

	decorated := make([]timed, len(samples))
	for i, s := range samples {
		at, ok := ParseTime(s.Timestamp)
		decorated[i] = timed{Sample: s, at: at, ok: ok}
	}

	sort.SliceStable(decorated, func(i, j int) bool {
		if decorated[i].ok != decorated[j].ok {
			return decorated[i].ok
		}
		if !decorated[i].ok {
			return false
		}
		return decorated[i].at.Before(decorated[j].at)
	})

	ordered := make([]Sample, len(decorated))
	for i, d := range decorated {
		ordered[i] = d.Sample
	}
	return ordered
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
