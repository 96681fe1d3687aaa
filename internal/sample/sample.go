// Package sample defines the Sample record produced by a Sample Source and
// the interval-grouping logic that buckets raw samples before feature
// engineering.
package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// PerfTimeTolerance is the maximum difference in PerfTime, in seconds,
// between two samples still considered part of the same interval.
const PerfTimeTolerance = 0.001

// MinSamplesPerInterval is the minimum number of samples an interval must
// contain before it is forwarded to the feature engineer; see spec §5.
const MinSamplesPerInterval = 3

// Sample is one observation of one counter during one sampling interval.
type Sample struct {
	PerfTime   float64 // monotonically non-decreasing seconds, from the Sample Source's own clock
	WallTime   float64 // seconds since epoch
	Counter    string  // short counter name, e.g. "cycles"
	Value      uint64  // non-negative counter value
	DurationMS int     // nominal interval width in milliseconds
}

// IntervalGrouper buckets an incoming stream of Samples into intervals by
// PerfTime equality within PerfTimeTolerance. It implements the §5 grouping
// contract: tolerance-based PerfTime grouping is the sole normative
// algorithm (see SPEC_FULL.md §4.2, resolving Open Question (a)).
//
// A grouper is not safe for concurrent use; the pipeline that owns it reads
// the Sample Source on a single goroutine per session.
type IntervalGrouper struct {
	expectedPerInterval int
	open                []*openInterval
}

type openInterval struct {
	perfTime float64
	samples  []Sample
}

// NewIntervalGrouper creates a grouper that closes an interval once it has
// accumulated expectedPerInterval samples (typically the configured number
// of perf_events), or when Flush is called at session end.
func NewIntervalGrouper(expectedPerInterval int) *IntervalGrouper {
	return &IntervalGrouper{expectedPerInterval: expectedPerInterval}
}

// Add appends s to the interval matching its PerfTime within tolerance,
// opening a new interval if none matches. It returns true if s completed an
// interval, together with that interval's samples; the samples are nil when
// the completed interval holds fewer than MinSamplesPerInterval samples and
// is therefore discarded.
func (g *IntervalGrouper) Add(s Sample) ([]Sample, bool) {
	for i, iv := range g.open {
		if abs(iv.perfTime-s.PerfTime) < PerfTimeTolerance {
			iv.samples = append(iv.samples, s)
			if g.expectedPerInterval > 0 && len(iv.samples) >= g.expectedPerInterval {
				g.open = append(g.open[:i], g.open[i+1:]...)
				return closeInterval(iv.samples), true
			}
			return nil, false
		}
	}
	g.open = append(g.open, &openInterval{perfTime: s.PerfTime, samples: []Sample{s}})
	return nil, false
}

// Flush closes every still-open interval, in the order intervals were
// first opened, discarding any with fewer than MinSamplesPerInterval
// samples. Call Flush once, when the Sample Source session ends.
func (g *IntervalGrouper) Flush() [][]Sample {
	var closed [][]Sample
	for _, iv := range g.open {
		if complete := closeInterval(iv.samples); complete != nil {
			closed = append(closed, complete)
		}
	}
	g.open = nil
	return closed
}

func closeInterval(samples []Sample) []Sample {
	if len(samples) < MinSamplesPerInterval {
		return nil
	}
	return samples
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
