package forecast

import (
	"sort"
	"time"

	"drain-audit/internal/telemetry"
)

// Urgency levels by proximity to overflow.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
)

// Prediction is a linear overflow projection for one vessel.
type Prediction struct {
	VesselID     string    `json:"vesselId"`
	VesselName   string    `json:"vesselName,omitempty"`
	CurrentLevel float64   `json:"currentLevel"`
	MaxVolume    float64   `json:"maxVolume"`
	FillRate     float64   `json:"fillRate"`
	HoursToFull  float64   `json:"hoursToFull"`
	OverflowTime time.Time `json:"estimatedOverflowTime"`
	Urgency      string    `json:"urgency"`
}

// Options tune the forecast horizon and urgency thresholds, all in hours.
type Options struct {
	HorizonHours       float64
	CriticalUnderHours float64
	HighUnderHours     float64
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{HorizonHours: 24, CriticalUnderHours: 4, HighUnderHours: 12}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.HorizonHours <= 0 {
		o.HorizonHours = def.HorizonHours
	}
	if o.CriticalUnderHours <= 0 {
		o.CriticalUnderHours = def.CriticalUnderHours
	}
	if o.HighUnderHours <= 0 {
		o.HighUnderHours = def.HighUnderHours
	}
	return o
}

// Predict projects each vessel's latest level forward at its baseline fill
// rate and reports the ones that would overflow within the horizon, most
// urgent first. Vessels with a non-positive fill rate, no remaining capacity
// concern, or an unparseable latest timestamp are skipped.
func Predict(samples []telemetry.Sample, vessels []telemetry.Vessel, rates map[string]float64, opts Options) []Prediction {
	opts = opts.withDefaults()

	vesselByID := make(map[string]telemetry.Vessel, len(vessels))
	for _, v := range vessels {
		vesselByID[v.ID] = v
	}

	var predictions []Prediction
	for vesselID, vesselSamples := range telemetry.GroupByVessel(samples) {
		vessel, ok := vesselByID[vesselID]
		if !ok {
			continue
		}

		latest, latestAt, ok := latestSample(vesselSamples)
		if !ok {
			continue
		}

		fillRate := rates[vesselID]
		if fillRate <= 0 {
			continue
		}
		remaining := vessel.MaxVolume - latest.Level
		if remaining <= 0 {
			continue
		}

		minutesToFull := remaining / fillRate
		hoursToFull := minutesToFull / 60
		if hoursToFull > opts.HorizonHours {
			continue
		}

		urgency := UrgencyMedium
		switch {
		case hoursToFull < opts.CriticalUnderHours:
			urgency = UrgencyCritical
		case hoursToFull < opts.HighUnderHours:
			urgency = UrgencyHigh
		}

		predictions = append(predictions, Prediction{
			VesselID:     vesselID,
			VesselName:   vessel.Name,
			CurrentLevel: latest.Level,
			MaxVolume:    vessel.MaxVolume,
			FillRate:     fillRate,
			HoursToFull:  hoursToFull,
			OverflowTime: latestAt.Add(time.Duration(minutesToFull * float64(time.Minute))),
			Urgency:      urgency,
		})
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		if predictions[i].HoursToFull != predictions[j].HoursToFull {
			return predictions[i].HoursToFull < predictions[j].HoursToFull
		}
		return predictions[i].VesselID < predictions[j].VesselID
	})
	return predictions
}

func latestSample(samples []telemetry.Sample) (telemetry.Sample, time.Time, bool) {
	var latest telemetry.Sample
	var latestAt time.Time
	found := false
	for _, s := range samples {
		at, ok := telemetry.ParseTime(s.Timestamp)
		if !ok {
			continue
		}
		if !found || at.After(latestAt) || at.Equal(latestAt) {
			latest, latestAt, found = s, at, true
		}
	}
	return latest, latestAt, found
}
