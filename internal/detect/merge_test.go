package detect

import (
	"reflect"
	"testing"
	"time"
)

func eventSpan(vessel string, startMinute, endMinute float64, startLevel, endLevel, removed, generated float64) DrainEvent {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	start := base.Add(time.Duration(startMinute * float64(time.Minute)))
	end := base.Add(time.Duration(endMinute * float64(time.Minute)))
	duration := endMinute - startMinute
	return DrainEvent{
		VesselID:        vessel,
		StartTime:       start.Format(time.RFC3339),
		EndTime:         end.Format(time.RFC3339),
		DurationMinutes: duration,
		StartLevel:      startLevel,
		EndLevel:        endLevel,
		LevelDrop:       startLevel - endLevel,
		PotionGenerated: generated,
		TotalRemoved:    removed,
		DrainRate:       removed / duration,
	}
}

func TestMergeCombinesAdjacentEvents(t *testing.T) {
	events := []DrainEvent{
		eventSpan("V1", 0, 30, 500, 300, 230, 30),
		eventSpan("V1", 60, 90, 310, 100, 240, 30),
	}

	merged := Merge(events, 60)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged event, got %d", len(merged))
	}

	ev := merged[0]
	if ev.StartTime != events[0].StartTime || ev.EndTime != events[1].EndTime {
		t.Fatalf("span not extended: %+v", ev)
	}
	if ev.TotalRemoved != 470 {
		t.Fatalf("removed volumes should sum: got %v", ev.TotalRemoved)
	}
	if ev.PotionGenerated != 60 {
		t.Fatalf("generated volumes should sum: got %v", ev.PotionGenerated)
	}
	if ev.LevelDrop != 400 {
		t.Fatalf("level drop should come from the combined span: got %v", ev.LevelDrop)
	}
	if ev.DurationMinutes != 90 {
		t.Fatalf("duration should cover the combined span: got %v", ev.DurationMinutes)
	}
	if ev.DrainRate != 470.0/90 {
		t.Fatalf("drain rate not recomputed: got %v", ev.DrainRate)
	}
}

func TestMergeLeavesDistantEventsAlone(t *testing.T) {
	events := []DrainEvent{
		eventSpan("V1", 0, 30, 500, 300, 230, 30),
		eventSpan("V1", 120, 150, 310, 100, 240, 30),
	}

	merged := Merge(events, 60)
	if len(merged) != 2 {
		t.Fatalf("expected 2 events, got %d", len(merged))
	}
}

func TestMergeIdempotent(t *testing.T) {
	events := []DrainEvent{
		eventSpan("V1", 0, 30, 500, 300, 230, 30),
		eventSpan("V1", 120, 150, 310, 100, 240, 30),
		eventSpan("V2", 10, 40, 900, 600, 330, 30),
	}

	once := Merge(events, 60)
	twice := Merge(once, 60)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMergeZeroGapNeverCombines(t *testing.T) {
	events := []DrainEvent{
		eventSpan("V1", 0, 30, 500, 300, 230, 30),
		eventSpan("V1", 31, 60, 300, 100, 229, 29),
	}

	merged := Merge(events, 0)
	if len(merged) != 2 {
		t.Fatalf("maxGap 0 must keep distinct events apart, got %d", len(merged))
	}
}

func TestMergeKeepsVesselsSeparate(t *testing.T) {
	events := []DrainEvent{
		eventSpan("V1", 0, 30, 500, 300, 230, 30),
		eventSpan("V2", 40, 70, 900, 600, 330, 30),
	}

	merged := Merge(events, 60)
	if len(merged) != 2 {
		t.Fatalf("events of different vessels must not merge, got %d", len(merged))
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if merged := Merge(nil, 60); merged != nil {
		t.Fatalf("expected nil for empty input, got %+v", merged)
	}
}
