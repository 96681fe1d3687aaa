// Package features reduces a set of per-interval counter samples to a
// fixed-shape behavioral feature vector.
package features

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"time"

	"github.com/pkg/errors"
	"hpcids/internal/sample"
)

// ErrMissingEssentials is returned when an interval is missing the cycles
// or instructions counter, without which IPC cannot be computed.
var ErrMissingEssentials = errors.New("missing essential counters (cycles, instructions)")

// Counter name constants, grounded in original_source/src/statistics.c.
// Names are matched exactly; unrecognized counters are ignored.
const (
	CounterCycles          = "cycles"
	CounterInstructions    = "instructions"
	CounterBranches        = "branches"
	CounterBranchMisses    = "branch-misses"
	CounterCacheReferences = "cache-references"
	CounterCacheMisses     = "cache-misses"
	CounterL1DLoadMisses   = "L1-dcache-load-misses"
	CounterITLBLoadMisses  = "iTLB-load-misses"
	CounterDTLBLoadMisses  = "dTLB-load-misses"
)

// RecognizedCounters lists every counter name Engineer knows how to use.
// A configured perf_events entry outside this set is still passed through
// to perf unmodified but contributes nothing to the feature vector.
var RecognizedCounters = []string{
	CounterCycles, CounterInstructions, CounterBranches, CounterBranchMisses,
	CounterCacheReferences, CounterCacheMisses,
	CounterL1DLoadMisses, CounterITLBLoadMisses, CounterDTLBLoadMisses,
}

// FeatureNames lists the six derived features in the fixed order alerts
// must be emitted in (spec §5 "Ordering guarantees").
var FeatureNames = []string{"ipc", "branch_miss_rate", "cache_miss_rate", "l1d_mpki", "itlb_mpki", "dtlb_mpki"}

// Vector is one behavioral summary of one interval.
type Vector struct {
	WallTime       float64
	IPC            float64
	BranchMissRate float64
	CacheMissRate  float64
	L1DMPKI        float64
	ITLBMPKI       float64
	DTLBMPKI       float64
}

// Value returns the scalar value of the named feature, used by the
// collector and detector to iterate FeatureNames generically.
func (v Vector) Value(name string) float64 {
	switch name {
	case "ipc":
		return v.IPC
	case "branch_miss_rate":
		return v.BranchMissRate
	case "cache_miss_rate":
		return v.CacheMissRate
	case "l1d_mpki":
		return v.L1DMPKI
	case "itlb_mpki":
		return v.ITLBMPKI
	case "dtlb_mpki":
		return v.DTLBMPKI
	}
	return 0
}

// nowFunc is overridable in tests so WallTime stamping is deterministic.
var nowFunc = func() float64 { return float64(time.Now().Unix()) }

// Engineer scans samples once, captures the first occurrence of each
// recognized counter, and derives the feature vector. Samples belonging to
// counters outside the recognized set are ignored for forward compatibility.
func Engineer(samples []sample.Sample) (Vector, error) {
	var cycles, instructions, branches, branchMisses uint64
	var cacheRefs, cacheMisses, l1dMisses, itlbMisses, dtlbMisses uint64
	seen := make(map[string]bool, 9)

	for _, s := range samples {
		if seen[s.Counter] {
			continue
		}
		switch s.Counter {
		case CounterCycles:
			cycles, seen[s.Counter] = s.Value, true
		case CounterInstructions:
			instructions, seen[s.Counter] = s.Value, true
		case CounterBranches:
			branches, seen[s.Counter] = s.Value, true
		case CounterBranchMisses:
			branchMisses, seen[s.Counter] = s.Value, true
		case CounterCacheReferences:
			cacheRefs, seen[s.Counter] = s.Value, true
		case CounterCacheMisses:
			cacheMisses, seen[s.Counter] = s.Value, true
		case CounterL1DLoadMisses:
			l1dMisses, seen[s.Counter] = s.Value, true
		case CounterITLBLoadMisses:
			itlbMisses, seen[s.Counter] = s.Value, true
		case CounterDTLBLoadMisses:
			dtlbMisses, seen[s.Counter] = s.Value, true
		}
	}

	if cycles == 0 || instructions == 0 {
		return Vector{}, ErrMissingEssentials
	}

	v := Vector{
		WallTime: nowFunc(),
		IPC:      float64(instructions) / float64(cycles),
	}
	if branches > 0 {
		v.BranchMissRate = float64(branchMisses) / float64(branches)
	}
	if cacheRefs > 0 {
		v.CacheMissRate = float64(cacheMisses) / float64(cacheRefs)
	}
	instructionsK := float64(instructions) / 1000.0
	v.L1DMPKI = float64(l1dMisses) / instructionsK
	v.ITLBMPKI = float64(itlbMisses) / instructionsK
	v.DTLBMPKI = float64(dtlbMisses) / instructionsK

	return v, nil
}
