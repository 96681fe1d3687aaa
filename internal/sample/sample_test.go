package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalGrouperClosesOnExpectedCount(t *testing.T) {
	g := NewIntervalGrouper(3)

	closed, ok := g.Add(Sample{PerfTime: 1.000, Counter: "cycles", Value: 10})
	assert.False(t, ok)
	assert.Nil(t, closed)

	closed, ok = g.Add(Sample{PerfTime: 1.0005, Counter: "instructions", Value: 20})
	assert.False(t, ok)
	assert.Nil(t, closed)

	closed, ok = g.Add(Sample{PerfTime: 1.0008, Counter: "branches", Value: 30})
	require.True(t, ok)
	require.Len(t, closed, 3)
}

func TestIntervalGrouperRespectsTolerance(t *testing.T) {
	g := NewIntervalGrouper(10)
	g.Add(Sample{PerfTime: 1.000, Counter: "cycles", Value: 1})
	g.Add(Sample{PerfTime: 1.002, Counter: "instructions", Value: 2}) // outside 1ms tolerance -> new interval

	closed := g.Flush()
	// neither interval reached MinSamplesPerInterval (3), so both are dropped
	assert.Empty(t, closed)
}

func TestIntervalGrouperFlushDropsShortIntervals(t *testing.T) {
	g := NewIntervalGrouper(10)
	g.Add(Sample{PerfTime: 1.0, Counter: "cycles", Value: 1})
	g.Add(Sample{PerfTime: 1.0, Counter: "instructions", Value: 2})

	closed := g.Flush()
	assert.Empty(t, closed, "interval with fewer than MinSamplesPerInterval samples must be discarded")
}

func TestIntervalGrouperFlushKeepsCompleteIntervals(t *testing.T) {
	g := NewIntervalGrouper(10)
	for _, counter := range []string{"cycles", "instructions", "branches"} {
		g.Add(Sample{PerfTime: 2.0, Counter: counter, Value: 5})
	}

	closed := g.Flush()
	require.Len(t, closed, 1)
	assert.Len(t, closed[0], 3)
}

func TestIntervalGrouperNewPerfTimeOpensNewInterval(t *testing.T) {
	g := NewIntervalGrouper(3)
	first, _ := g.Add(Sample{PerfTime: 1.0, Counter: "cycles"})
	assert.Nil(t, first)
	for _, c := range []string{"instructions", "branches"} {
		g.Add(Sample{PerfTime: 1.0, Counter: c})
	}

	second, ok := g.Add(Sample{PerfTime: 2.0, Counter: "cycles"})
	assert.False(t, ok)
	assert.Nil(t, second)
}
