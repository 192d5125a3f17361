// Package aggregate compares an active learning run log with a random sampling
// run log of the same configuration.
//
// The comparison point of an iteration is the best accuracy the random sampling
// replicate ever reached. Active learning steps recorded after that accuracy was
// exceeded are not counted. From the remaining steps the package derives the
// average sample budget and elapsed time of both strategies and projects the
// speed-up of active learning for an assumed cost of acquiring one sample.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ciricc/go-al-speedup/internal/runlog"
	"github.com/samber/lo"
)

var ErrNoMatchedIterations = errors.New("no iteration has active learning rows below the random sampling threshold")

// Summary holds the per configuration aggregates the speed-up projection is based on.
type Summary struct {
	// ALSamples is the mean over iterations of the largest sample count active
	// learning needed to match the best random sampling accuracy.
	ALSamples float64 `json:"al_samples"`
	// RSSamples is the mean over iterations of the largest random sampling sample count.
	RSSamples float64 `json:"rs_samples"`
	// ALTime is the mean over iterations of the summed dt of the counted active learning steps.
	ALTime float64 `json:"al_time"`
	// RSTime is the mean over iterations of the mean dt of a random sampling step.
	RSTime float64 `json:"rs_time"`
	// ALTimeRaw = ALTime - RSTime, the active learning overhead without sampling.
	ALTimeRaw float64 `json:"al_time_raw"`

	Iterations        int   `json:"iterations"`
	MatchedIterations int   `json:"matched_iterations"`
	DroppedIterations []int `json:"dropped_iterations,omitempty"`

	// OrphanedIterations are active learning iterations without a random sampling
	// counterpart. They count toward the active learning means with all their rows.
	OrphanedIterations []int `json:"orphaned_iterations,omitempty"`
}

// Filtered is the active learning table limited to the comparison point of each iteration.
type Filtered struct {
	Rows runlog.Table
	// Unmatched lists random sampling iterations with no active learning row left.
	Unmatched []int
	// Orphaned lists active learning iterations missing from the random sampling log.
	// Their rows are in Rows unfiltered.
	Orphaned []int
}

// Thresholds returns the best accuracy of every random sampling iteration.
func Thresholds(random runlog.Table) map[int]float64 {
	out := make(map[int]float64)
	for it, rows := range random.ByIteration() {
		out[it] = maxOf(rows, func(r runlog.Record) float64 { return r.Acc })
	}
	return out
}

// FilterActive keeps the active rows whose accuracy does not exceed the threshold
// of their iteration. Row order is preserved. Iterations without a threshold
// have nothing to be cut at and are kept whole.
func FilterActive(active runlog.Table, thresholds map[int]float64) Filtered {
	var f Filtered
	kept := make(map[int]bool, len(thresholds))
	orphaned := make(map[int]bool)
	for _, r := range active {
		th, ok := thresholds[r.Iteration]
		if !ok {
			if !orphaned[r.Iteration] {
				orphaned[r.Iteration] = true
				f.Orphaned = append(f.Orphaned, r.Iteration)
			}
			f.Rows = append(f.Rows, r)
			continue
		}
		if r.Acc <= th {
			f.Rows = append(f.Rows, r)
			kept[r.Iteration] = true
		}
	}
	for it := range thresholds {
		if !kept[it] {
			f.Unmatched = append(f.Unmatched, it)
		}
	}
	slices.Sort(f.Unmatched)
	return f
}

// Summarize computes the aggregates of one configuration. Random sampling
// iterations without any counted active learning row are left out of the
// active learning means and reported in DroppedIterations.
func Summarize(active, random runlog.Table) (Summary, error) {
	if len(random) == 0 {
		return Summary{}, fmt.Errorf("random sampling: %w", runlog.ErrEmptyTable)
	}
	thresholds := Thresholds(random)
	filtered := FilterActive(active, thresholds)
	if len(filtered.Rows) == 0 {
		return Summary{}, ErrNoMatchedIterations
	}

	al := groups(filtered.Rows)
	rs := groups(random)

	// RSTime is a mean of per step means while ALTime is a mean of sums:
	// random sampling logs record dt per step.
	s := Summary{
		ALSamples:          meanOver(al, func(t runlog.Table) float64 { return maxOf(t, size) }),
		RSSamples:          meanOver(rs, func(t runlog.Table) float64 { return maxOf(t, size) }),
		ALTime:             meanOver(al, func(t runlog.Table) float64 { return sumOf(t, dt) }),
		RSTime:             meanOver(rs, func(t runlog.Table) float64 { return meanOf(t, dt) }),
		Iterations:         len(rs),
		MatchedIterations:  len(al),
		DroppedIterations:  filtered.Unmatched,
		OrphanedIterations: filtered.Orphaned,
	}
	s.ALTimeRaw = s.ALTime - s.RSTime
	return s, nil
}

// Speedup is the ratio of the projected random sampling time to the projected
// active learning time for a cost of stime seconds per sample.
//
// A non-positive projected active learning time has no meaningful ratio. It
// yields +Inf when the random sampling time is positive and NaN otherwise.
func (s Summary) Speedup(stime float64) float64 {
	randomTime := stime * s.RSSamples
	activeTime := stime*s.ALSamples + s.ALTimeRaw
	if activeTime <= 0 {
		if randomTime > 0 {
			return math.Inf(1)
		}
		return math.NaN()
	}
	return randomTime / activeTime
}

// Project evaluates Speedup for every sample time, in order.
func (s Summary) Project(stimes []float64) []float64 {
	return lo.Map(stimes, func(st float64, _ int) float64 { return s.Speedup(st) })
}

func size(r runlog.Record) float64 { return r.Size }

func dt(r runlog.Record) float64 { return r.DT }

// groups returns per iteration tables sorted by iteration id so that float
// sums over iterations do not depend on map order.
func groups(t runlog.Table) []runlog.Table {
	byIt := t.ByIteration()
	keys := lo.Keys(byIt)
	slices.Sort(keys)
	return lo.Map(keys, func(k int, _ int) runlog.Table { return byIt[k] })
}

func meanOver(gs []runlog.Table, f func(runlog.Table) float64) float64 {
	return lo.Mean(lo.Map(gs, func(t runlog.Table, _ int) float64 { return f(t) }))
}

func maxOf(t runlog.Table, f func(runlog.Record) float64) float64 {
	m := math.Inf(-1)
	for _, r := range t {
		m = math.Max(m, f(r))
	}
	return m
}

func sumOf(t runlog.Table, f func(runlog.Record) float64) float64 {
	return lo.SumBy(t, f)
}

func meanOf(t runlog.Table, f func(runlog.Record) float64) float64 {
	if len(t) == 0 {
		return 0
	}
	return sumOf(t, f) / float64(len(t))
}
