package detect

import (
	"sort"

	"drain-audit/internal/telemetry"
)

// DefaultMaxGapMinutes is the largest pause between two candidate events that
// still counts as one physical collection.
const DefaultMaxGapMinutes = 60.0

// Merge coalesces temporally adjacent candidate events per vessel. It is a
// single left-to-right greedy pass over time-sorted events: each candidate is
// folded into the running span when the gap from the span's end is at most
// maxGapMinutes, otherwise the span is flushed and the candidate starts a new
// one. Gaps are only ever evaluated against the immediately preceding merged
// span. Merging an already-merged list is a no-op.
func Merge(events []DrainEvent, maxGapMinutes float64) []DrainEvent {
	if len(events) == 0 {
		return nil
	}

	byVessel := make(map[string][]DrainEvent)
	for _, ev := range events {
		byVessel[ev.VesselID] = append(byVessel[ev.VesselID], ev)
	}

	vessels := make([]string, 0, len(byVessel))
	for id := range byVessel {
		vessels = append(vessels, id)
	}
	sort.Strings(vessels)

	merged := make([]DrainEvent, 0, len(events))
	for _, id := range vessels {
		merged = append(merged, mergeVessel(byVessel[id], maxGapMinutes)...)
	}
	return merged
}

func mergeVessel(events []DrainEvent, maxGapMinutes float64) []DrainEvent {
	sort.SliceStable(events, func(i, j int) bool {
		a, aok := telemetry.ParseTime(events[i].StartTime)
		b, bok := telemetry.ParseTime(events[j].StartTime)
		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		return a.Before(b)
	})

	out := make([]DrainEvent, 0, len(events))
	current := events[0]
	for _, candidate := range events[1:] {
		gap, ok := gapMinutes(current, candidate)
		if ok && gap <= maxGapMinutes {
			current = fold(current, candidate)
			continue
		}
		out = append(out, current)
		current = candidate
	}
	return append(out, current)
}

func gapMinutes(current, candidate DrainEvent) (float64, bool) {
	end, endOK := telemetry.ParseTime(current.EndTime)
	start, startOK := telemetry.ParseTime(candidate.StartTime)
	if !endOK || !startOK {
		return 0, false
	}
	return telemetry.MinutesBetween(end, start), true
}

func fold(current, candidate DrainEvent) DrainEvent {
	current.EndTime = candidate.EndTime
	current.EndLevel = candidate.EndLevel
	current.TotalRemoved += candidate.TotalRemoved
	current.PotionGenerated += candidate.PotionGenerated
	current.LevelDrop = current.StartLevel - current.EndLevel

	start, startOK := telemetry.ParseTime(current.StartTime)
	end, endOK := telemetry.ParseTime(current.EndTime)
	if startOK && endOK {
		current.DurationMinutes = telemetry.MinutesBetween(start, end)
	}
	if current.DurationMinutes > 0 {
		current.DrainRate = current.TotalRemoved / current.DurationMinutes
	}
	return current
}
