package reconcile

import (
	"fmt"
	"math"
	"sort"

	"drain-audit/internal/detect"
	"drain-audit/internal/telemetry"
)

// Discrepancy types.
const (
	TypePhantomTicket       = "PHANTOM_TICKET"
	TypeUnloggedDrain       = "UNLOGGED_DRAIN"
	TypeSignificantMismatch = "SIGNIFICANT_VOLUME_MISMATCH"
	TypeMinorMismatch       = "MINOR_VOLUME_MISMATCH"
)

// Severities, ordered critical > high > medium > low. Always derived from the
// percent difference, never assigned ad hoc.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Discrepancy is a classified inconsistency between a reconstructed drain and
// the reported tickets for its (date, vessel) bucket. Message is a rendering
// of the structured fields and carries no extra information.
type Discrepancy struct {
	Type         string             `json:"type"`
	Severity     string             `json:"severity"`
	VesselID     string             `json:"vesselId"`
	Date         string             `json:"date"`
	Ticket       *telemetry.Ticket  `json:"ticket,omitempty"`
	Drain        *detect.DrainEvent `json:"drainEvent,omitempty"`
	TicketKey    string             `json:"ticketKey,omitempty"`
	TicketVolume float64            `json:"ticketVolume,omitempty"`
	DrainVolume  float64            `json:"drainVolume,omitempty"`
	Difference   float64            `json:"difference,omitempty"`
	PercentDiff  float64            `json:"percentDiff,omitempty"`
	Message      string             `json:"message"`
}

// Options tune matching tolerance and classification thresholds. Percent
// thresholds are in percent units; TolerancePct is a fraction of drain volume.
type Options struct {
	TolerancePct           float64
	MinorAbsDiff           float64
	MinorPct               float64
	MinorHighPct           float64
	SignificantHighPct     float64
	SignificantCriticalPct float64
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		TolerancePct:           0.10,
		MinorAbsDiff:           1.0,
		MinorPct:               2,
		MinorHighPct:           5,
		SignificantHighPct:     20,
		SignificantCriticalPct: 50,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TolerancePct <= 0 {
		o.TolerancePct = def.TolerancePct
	}
	if o.MinorAbsDiff <= 0 {
		o.MinorAbsDiff = def.MinorAbsDiff
	}
	if o.MinorPct <= 0 {
		o.MinorPct = def.MinorPct
	}
	if o.MinorHighPct <= 0 {
		o.MinorHighPct = def.MinorHighPct
	}
	if o.SignificantHighPct <= 0 {
		o.SignificantHighPct = def.SignificantHighPct
	}
	if o.SignificantCriticalPct <= 0 {
		o.SignificantCriticalPct = def.SignificantCriticalPct
	}
	return o
}

type bucketKey struct {
	date     string
	vesselID string
}

type bucket struct {
	drains  []detect.DrainEvent
	tickets []telemetry.Ticket
}

// Match reconciles merged drain events against reported tickets per
// (date, vessel) bucket. Matching is greedy largest-first with a tolerance
// computed against the drain volume, not the ticket volume; the asymmetry is
// deliberate. Tickets or drains whose date cannot be derived are skipped.
func Match(events []detect.DrainEvent, tickets []telemetry.Ticket, opts Options) []Discrepancy {
	opts = opts.withDefaults()

	buckets := make(map[bucketKey]*bucket)
	get := func(key bucketKey) *bucket {
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		return b
	}

	for _, ev := range events {
		date, ok := telemetry.DateOf(ev.StartTime)
		if !ok {
			continue
		}
		b := get(bucketKey{date: date, vesselID: ev.VesselID})
		b.drains = append(b.drains, ev)
	}
	for _, t := range tickets {
		date, ok := telemetry.DateOf(t.Date)
		if !ok {
			continue
		}
		b := get(bucketKey{date: date, vesselID: t.VesselID})
		b.tickets = append(b.tickets, t)
	}

	keys := make([]bucketKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].vesselID < keys[j].vesselID
	})

	var out []Discrepancy
	for _, key := range keys {
		out = append(out, matchBucket(key, buckets[key], opts)...)
	}
	return out
}

func matchBucket(key bucketKey, b *bucket, opts Options) []Discrepancy {
	drains := make([]detect.DrainEvent, len(b.drains))
	copy(drains, b.drains)
	sort.SliceStable(drains, func(i, j int) bool {
		return drains[i].TotalRemoved > drains[j].TotalRemoved
	})

	tickets := make([]telemetry.Ticket, len(b.tickets))
	copy(tickets, b.tickets)
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].AmountCollected > tickets[j].AmountCollected
	})

	drainUsed := make([]bool, len(drains))

	type pair struct {
		ticket telemetry.Ticket
		drain  detect.DrainEvent
		diff   float64
	}
	var pairs []pair
	var unmatchedTickets []telemetry.Ticket

	for _, t := range tickets {
		best := -1
		bestDiff := math.MaxFloat64
		for i, d := range drains {
			if drainUsed[i] {
				continue
			}
			diff := math.Abs(d.TotalRemoved - t.AmountCollected)
			if diff > opts.TolerancePct*d.TotalRemoved {
				continue
			}
			if diff < bestDiff {
				best = i
				bestDiff = diff
			}
		}
		if best < 0 {
			unmatchedTickets = append(unmatchedTickets, t)
			continue
		}
		drainUsed[best] = true
		pairs = append(pairs, pair{ticket: t, drain: drains[best], diff: bestDiff})
	}

	var out []Discrepancy

	// Matched pairs inside tolerance may still disagree enough to flag.
	for _, p := range pairs {
		pct := percentOf(p.diff, p.drain.TotalRemoved)
		if p.diff <= opts.MinorAbsDiff || pct <= opts.MinorPct {
			continue
		}
		severity := SeverityMedium
		if pct > opts.MinorHighPct {
			severity = SeverityHigh
		}
		ticket := p.ticket
		drain := p.drain
		out = append(out, Discrepancy{
			Type:         TypeMinorMismatch,
			Severity:     severity,
			VesselID:     key.vesselID,
			Date:         key.date,
			Ticket:       &ticket,
			Drain:        &drain,
			TicketKey:    ticket.Key(),
			TicketVolume: ticket.AmountCollected,
			DrainVolume:  drain.TotalRemoved,
			Difference:   p.diff,
			PercentDiff:  pct,
			Message: fmt.Sprintf(
				"ticket reports %.1f but matched drain removed %.1f (off by %.1f, %.1f%%)",
				ticket.AmountCollected, drain.TotalRemoved, p.diff, pct),
		})
	}

	// Tickets outside tolerance pair with the closest remaining drain as a
	// significant mismatch; with no drains left they are phantoms.
	for _, t := range unmatchedTickets {
		best := -1
		bestDiff := math.MaxFloat64
		for i, d := range drains {
			if drainUsed[i] {
				continue
			}
			diff := math.Abs(d.TotalRemoved - t.AmountCollected)
			if diff < bestDiff {
				best = i
				bestDiff = diff
			}
		}

		ticket := t
		if best < 0 {
			out = append(out, Discrepancy{
				Type:         TypePhantomTicket,
				Severity:     SeverityCritical,
				VesselID:     key.vesselID,
				Date:         key.date,
				Ticket:       &ticket,
				TicketKey:    ticket.Key(),
				TicketVolume: ticket.AmountCollected,
				Message: fmt.Sprintf(
					"ticket reports %.1f collected from vessel %s on %s but telemetry shows no drain",
					ticket.AmountCollected, key.vesselID, key.date),
			})
			continue
		}

		drainUsed[best] = true
		drain := drains[best]
		pct := percentOf(bestDiff, drain.TotalRemoved)
		severity := SeverityMedium
		switch {
		case pct > opts.SignificantCriticalPct:
			severity = SeverityCritical
		case pct > opts.SignificantHighPct:
			severity = SeverityHigh
		}
		out = append(out, Discrepancy{
			Type:         TypeSignificantMismatch,
			Severity:     severity,
			VesselID:     key.vesselID,
			Date:         key.date,
			Ticket:       &ticket,
			Drain:        &drain,
			TicketKey:    ticket.Key(),
			TicketVolume: ticket.AmountCollected,
			DrainVolume:  drain.TotalRemoved,
			Difference:   bestDiff,
			PercentDiff:  pct,
			Message: fmt.Sprintf(
				"ticket reports %.1f but closest drain removed %.1f (off by %.1f, %.1f%%)",
				ticket.AmountCollected, drain.TotalRemoved, bestDiff, pct),
		})
	}

	// Whatever drains remain have no ticket at all.
	for i, d := range drains {
		if drainUsed[i] {
			continue
		}
		drain := d
		out = append(out, Discrepancy{
			Type:        TypeUnloggedDrain,
			Severity:    SeverityCritical,
			VesselID:    key.vesselID,
			Date:        key.date,
			Drain:       &drain,
			DrainVolume: drain.TotalRemoved,
			Message: fmt.Sprintf(
				"telemetry shows %.1f removed from vessel %s between %s and %s with no matching ticket",
				drain.TotalRemoved, key.vesselID, drain.StartTime, drain.EndTime),
		})
	}

	return out
}

func percentOf(diff, base float64) float64 {
	if base == 0 {
		return 0
	}
	return diff / base * 100
}
