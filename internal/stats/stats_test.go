package stats

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedianOdd(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{1, 2, 3, 4, 100}))
}

func TestMedianEven(t *testing.T) {
	assert.Equal(t, 2.5, Median([]float64{1, 2, 3, 4}))
}

func TestMedianEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	xs := []float64{5, 1, 3}
	Median(xs)
	assert.Equal(t, []float64{5, 1, 3}, xs)
}

func TestRobustStatisticsScenario(t *testing.T) {
	// scenario 1 from spec.md §8
	xs := []float64{1, 2, 3, 4, 100}
	median := Median(xs)
	require.Equal(t, 3.0, median)
	mad := MAD(xs, median)
	assert.Equal(t, 1.0, mad)
	assert.Equal(t, 97.0, RobustZ(100, median, mad))

	summary, err := Summary(xs)
	require.NoError(t, err)
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 100.0, summary.Max)
	assert.Equal(t, 5, summary.Samples)
}

func TestDegenerateMAD(t *testing.T) {
	// scenario 2 from spec.md §8
	xs := []float64{7, 7, 7, 7}
	median := Median(xs)
	mad := MAD(xs, median)
	assert.Equal(t, 7.0, median)
	assert.Equal(t, 0.0, mad)
	assert.Equal(t, 0.0, RobustZ(7, median, mad))
}

func TestSummaryInsufficientSamples(t *testing.T) {
	summary, err := Summary(nil)
	require.ErrorIs(t, err, ErrInsufficientSamples)
	assert.Equal(t, SummaryStatistics{}, summary)
}

func TestSummaryInvariants(t *testing.T) {
	cases := [][]float64{
		{42},
		{1, 2},
		{1, 1},
		{-5, 0, 5, 10, 1000},
	}
	for _, xs := range cases {
		summary, err := Summary(xs)
		require.NoError(t, err)
		assert.LessOrEqual(t, summary.Min, summary.Median)
		assert.LessOrEqual(t, summary.Median, summary.Max)
		assert.GreaterOrEqual(t, summary.MAD, 0.0)
		assert.Equal(t, len(xs), summary.Samples)
	}
}

func TestSummaryMADZeroIffAllEqual(t *testing.T) {
	summary, err := Summary([]float64{3, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.MAD)

	summary, err = Summary([]float64{3, 5})
	require.NoError(t, err)
	assert.NotEqual(t, 0.0, summary.MAD)
}

func TestRobustZFloorsAtEpsilon(t *testing.T) {
	z := RobustZ(1.0, 0.0, 0.0)
	assert.Equal(t, 1.0/Epsilon, z)
}
