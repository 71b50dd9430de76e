package telemetry

import (
	"strconv"
	"strings"
	"time"
)

// Snapshot is one raw upstream reading: a single timestamp with the level of
// every vessel that reported in that poll.
type Snapshot struct {
	Timestamp string             `json:"timestamp"`
	Levels    map[string]float64 `json:"levelsByVessel"`
}

// Sample is a flattened per-vessel observation. Timestamps stay in their raw
// ISO-8601 form; each stage parses what it needs so that one malformed record
// only ever invalidates itself.
type Sample struct {
	Timestamp string  `json:"timestamp"`
	VesselID  string  `json:"vesselId"`
	Level     float64 `json:"level"`
}

// Vessel is external reference data, read-only to the pipeline.
type Vessel struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	MaxVolume float64 `json:"maxVolume"`
}

// Ticket is a human-submitted collection record.
type Ticket struct {
	ID              string  `json:"id,omitempty"`
	Date            string  `json:"date"`
	VesselID        string  `json:"vesselId"`
	AmountCollected float64 `json:"amountCollected"`
	CourierID       string  `json:"courierId"`
}

// Key returns a stable identity for the ticket: the explicit id when present,
// otherwise a synthetic key from its fields.
func (t Ticket) Key() string {
	if t.ID != "" {
		return t.ID
	}
	amount := strconv.FormatFloat(t.AmountCollected, 'f', -1, 64)
	return strings.Join([]string{t.Date, t.VesselID, amount, t.CourierID}, "|")
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses an upstream ISO-8601 timestamp. Layouts without an explicit
// offset are interpreted as UTC.
func ParseTime(value string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// DateOf reduces a timestamp or date string to its calendar-day portion.
func DateOf(value string) (string, bool) {
	if ts, ok := ParseTime(value); ok {
		return ts.Format("2006-01-02"), true
	}
	if len(value) >= 10 && value[4] == '-' && value[7] == '-' {
		return value[:10], true
	}
	return "", false
}

// MinutesBetween returns the elapsed minutes from a to b.
func MinutesBetween(a, b time.Time) float64 {
	return b.Sub(a).Minutes()
}
