package strategy

import (
	"fmt"
	"math"
	"time"

	"cronx/pkg/models"
	"cronx/pkg/random"
)

// segmentWeights approximates a bell curve over seven equal slices of the
// window. The middle slice carries the most mass, the edges the least.
var segmentWeights = []float64{0.05, 0.10, 0.20, 0.30, 0.20, 0.10, 0.05}

// Window fires at a random point inside a [start, end] wall-clock window. The
// window spans midnight when end <= start; if the window has already closed
// today, the pick lands in tomorrow's window. A pick made while today's window
// is still open lands anywhere in that window, earlier or later than now, so
// more than one fire can fall on the same day.
type Window struct {
	startHour, startMin int
	endHour, endMin     int
	loc                 *time.Location
	dist                models.Distribution
	rng                 *random.Source
}

// NewWindow parses the HH:MM bounds and resolves the IANA timezone.
func NewWindow(cfg models.WindowConfig, tz string, rng *random.Source) (*Window, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	sh, sm, err := parseTimeOfDay(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid window start: %w", err)
	}
	eh, em, err := parseTimeOfDay(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("invalid window end: %w", err)
	}
	dist := cfg.Distribution
	if dist == "" {
		dist = models.DistWeighted
	}
	return &Window{
		startHour: sh, startMin: sm,
		endHour: eh, endMin: em,
		loc:  loc,
		dist: dist,
		rng:  rng,
	}, nil
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("malformed time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", s)
	}
	return hour, minute, nil
}

// CalculateNextRun picks a point in the currently active or next day's window
// according to the configured distribution. lastRun does not influence the
// pick; the window alone paces the job.
func (w *Window) CalculateNextRun(_ *int64, now int64) int64 {
	nowT := time.UnixMilli(now).In(w.loc)

	start := time.Date(nowT.Year(), nowT.Month(), nowT.Day(), w.startHour, w.startMin, 0, 0, w.loc)
	end := time.Date(nowT.Year(), nowT.Month(), nowT.Day(), w.endHour, w.endMin, 0, 0, w.loc)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	if nowT.After(end) {
		start = start.AddDate(0, 0, 1)
		end = end.AddDate(0, 0, 1)
	}

	startMs := float64(start.UnixMilli())
	endMs := float64(end.UnixMilli())

	var pick float64
	switch w.dist {
	case models.DistUniform:
		pick = w.rng.Uniform(startMs, endMs)
	case models.DistGaussian:
		// 3 sigma spans the half-window, so the clipped draw stays inside.
		mid := (startMs + endMs) / 2
		stddev := (endMs - startMs) / 6
		pick = mid + w.rng.Gaussian()*stddev
		pick = math.Min(math.Max(pick, startMs), endMs)
	default: // weighted
		seg := (endMs - startMs) / float64(len(segmentWeights))
		idx := w.rng.Weighted(segmentWeights)
		segStart := startMs + float64(idx)*seg
		pick = w.rng.Uniform(segStart, segStart+seg)
	}

	return int64(math.Floor(pick))
}
