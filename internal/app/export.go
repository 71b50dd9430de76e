package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"drain-audit/internal/detect"
	"drain-audit/internal/telemetry"
)

type levelPoint struct {
	at    time.Time
	level float64
}

// Export renders one vessel's level history as CSV and/or a PNG chart with
// the detected drain spans overlaid.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.VesselID == "" {
		return errors.New("--vessel is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	snapshots, err := a.newClient().FetchSnapshots(ctx)
	if err != nil {
		return err
	}

	samples := telemetry.Normalize(snapshots)
	vesselSamples := telemetry.GroupByVessel(samples)[opts.VesselID]
	if len(vesselSamples) == 0 {
		a.Logger.Info().Str("vessel", opts.VesselID).Msg("no samples found for vessel")
		return nil
	}

	points := toPoints(telemetry.SortByTime(vesselSamples))
	if len(points) == 0 {
		a.Logger.Info().Str("vessel", opts.VesselID).Msg("no parseable samples for vessel")
		return nil
	}
	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Str("vessel", opts.VesselID).
		Int("total", len(points)).Int("exported", len(downsampled)).
		Msg("exporting level history")

	if opts.CSVPath != "" {
		if err := writeLevelsCSV(opts.CSVPath, opts.VesselID, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		events := a.detectForExport(opts.VesselID, vesselSamples)
		if err := writeLevelsPNG(opts.PNGPath, opts.VesselID, downsampled, events); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) detectForExport(vesselID string, samples []telemetry.Sample) []detect.DrainEvent {
	rate := telemetry.EstimateFillRate(samples, telemetry.EstimatorOptions{
		MaxGapMinutes: a.Config.Estimator.MaxGapMinutes,
		MinRate:       a.Config.Estimator.MinRate,
		MaxRate:       a.Config.Estimator.MaxRate,
	})
	if rate == 0 {
		rate = a.Config.Estimator.DefaultBaselineRate
		if rate <= 0 {
			rate = 0.1
		}
	}

	detector := detect.NewDetector(detect.Options{
		MinSamples:         a.Config.Detector.MinSamples,
		WindowMinutes:      a.Config.Detector.WindowMinutes,
		WindowSlackMinutes: a.Config.Detector.WindowSlackMinutes,
		DrainRateFactor:    a.Config.Detector.DrainRateFactor,
		MinDurationMinutes: a.Config.Detector.MinDurationMinutes,
		MinRemovedVolume:   a.Config.Detector.MinRemovedVolume,
	}, a.Logger)

	return detect.Merge(detector.Detect(vesselID, samples, rate), a.Config.Merger.MaxGapMinutes)
}

func toPoints(samples []telemetry.Sample) []levelPoint {
	points := make([]levelPoint, 0, len(samples))
	for _, s := range samples {
		at, ok := telemetry.ParseTime(s.Timestamp)
		if !ok {
			continue
		}
		points = append(points, levelPoint{at: at, level: s.Level})
	}
	return points
}

func downsamplePoints(points []levelPoint, max int) []levelPoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]levelPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeLevelsCSV(path, vesselID string, points []levelPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "vessel_id", "level"}); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.at.Format(time.RFC3339),
			vesselID,
			formatFloat(p.level, 2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeLevelsPNG(path, vesselID string, points []levelPoint, events []detect.DrainEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	levels := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.at
		levels[i] = p.level
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    fmt.Sprintf("Level (%s)", vesselID),
			XValues: x,
			YValues: levels,
		},
	}

	for i, ev := range events {
		start, startOK := telemetry.ParseTime(ev.StartTime)
		end, endOK := telemetry.ParseTime(ev.EndTime)
		if !startOK || !endOK {
			continue
		}
		series = append(series, chart.TimeSeries{
			Name:    fmt.Sprintf("Drain %d", i+1),
			XValues: []time.Time{start, end},
			YValues: []float64{ev.StartLevel, ev.EndLevel},
			Style: chart.Style{
				StrokeColor: chart.ColorRed,
				StrokeWidth: 3,
			},
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Level (volume units)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
