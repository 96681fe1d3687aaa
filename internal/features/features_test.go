package features

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hpcids/internal/sample"
)

func scenarioSamples() []sample.Sample {
	return []sample.Sample{
		{Counter: CounterCycles, Value: 10_000_000},
		{Counter: CounterInstructions, Value: 20_000_000},
		{Counter: CounterBranches, Value: 1_000_000},
		{Counter: CounterBranchMisses, Value: 10_000},
		{Counter: CounterCacheReferences, Value: 100_000},
		{Counter: CounterCacheMisses, Value: 5_000},
		{Counter: CounterL1DLoadMisses, Value: 40_000},
		{Counter: CounterITLBLoadMisses, Value: 200},
		{Counter: CounterDTLBLoadMisses, Value: 400},
	}
}

func TestEngineerScenario(t *testing.T) {
	// scenario 3 from spec.md §8
	v, err := Engineer(scenarioSamples())
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.IPC)
	assert.Equal(t, 0.01, v.BranchMissRate)
	assert.Equal(t, 0.05, v.CacheMissRate)
	assert.Equal(t, 2.0, v.L1DMPKI)
	assert.Equal(t, 0.01, v.ITLBMPKI)
	assert.Equal(t, 0.02, v.DTLBMPKI)
}

func TestEngineerMissingEssentials(t *testing.T) {
	_, err := Engineer([]sample.Sample{{Counter: CounterBranches, Value: 5}})
	assert.ErrorIs(t, err, ErrMissingEssentials)

	_, err = Engineer([]sample.Sample{{Counter: CounterCycles, Value: 0}, {Counter: CounterInstructions, Value: 100}})
	assert.ErrorIs(t, err, ErrMissingEssentials)
}

func TestEngineerZeroDenominators(t *testing.T) {
	v, err := Engineer([]sample.Sample{
		{Counter: CounterCycles, Value: 100},
		{Counter: CounterInstructions, Value: 200},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.BranchMissRate)
	assert.Equal(t, 0.0, v.CacheMissRate)
	assert.Equal(t, 0.0, v.L1DMPKI)
}

func TestEngineerIgnoresUnrecognizedCounters(t *testing.T) {
	samples := scenarioSamples()
	samples = append(samples, sample.Sample{Counter: "cpu-clock", Value: 999})
	v, err := Engineer(samples)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.IPC)
}

func TestEngineerKeepsFirstOccurrence(t *testing.T) {
	samples := []sample.Sample{
		{Counter: CounterCycles, Value: 1},
		{Counter: CounterInstructions, Value: 2},
		{Counter: CounterCycles, Value: 999}, // duplicate, first occurrence wins
	}
	v, err := Engineer(samples)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.IPC)
}

func TestFeatureVectorInvariants(t *testing.T) {
	v, err := Engineer(scenarioSamples())
	require.NoError(t, err)
	assert.Greater(t, v.IPC, 0.0)
	assert.GreaterOrEqual(t, v.BranchMissRate, 0.0)
	assert.LessOrEqual(t, v.BranchMissRate, 1.0)
	assert.GreaterOrEqual(t, v.CacheMissRate, 0.0)
	assert.LessOrEqual(t, v.CacheMissRate, 1.0)
	assert.GreaterOrEqual(t, v.L1DMPKI, 0.0)
	assert.GreaterOrEqual(t, v.ITLBMPKI, 0.0)
	assert.GreaterOrEqual(t, v.DTLBMPKI, 0.0)
}

func TestValueAccessorMatchesFeatureNames(t *testing.T) {
	v := Vector{IPC: 1, BranchMissRate: 2, CacheMissRate: 3, L1DMPKI: 4, ITLBMPKI: 5, DTLBMPKI: 6}
	want := []float64{1, 2, 3, 4, 5, 6}
	for i, name := range FeatureNames {
		assert.Equal(t, want[i], v.Value(name))
	}
}
