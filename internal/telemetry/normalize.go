package telemetry

import "sort"

// Normalize flattens raw snapshots into a per-vessel sample stream. Snapshot
// order is preserved; within a snapshot vessels are emitted in id order so the
// output is deterministic. Snapshots without levels contribute nothing.
func Normalize(snapshots []Snapshot) []Sample {
	samples := make([]Sample, 0, len(snapshots))
	for _, snap := range snapshots {
		if len(snap.Levels) == 0 {
			continue
		}
		ids := make([]string, 0, len(snap.Levels))
		for id := range snap.Levels {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			samples = append(samples, Sample{
				Timestamp: snap.Timestamp,
				VesselID:  id,
				Level:     snap.Levels[id],
			})
		}
	}
	return samples
}

// GroupByVessel splits a sample stream per vessel, preserving input order
// within each vessel.
func GroupByVessel(samples []Sample) map[string][]Sample {
	grouped := make(map[string][]Sample)
	for _, s := range samples {
		grouped[s.VesselID] = append(grouped[s.VesselID], s)
	}
	return grouped
}
