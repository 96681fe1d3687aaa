// Package stats implements the robust point-statistics used to build and
// score baselines: median, median absolute deviation, and the resulting
// robust z-score.
package stats

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"slices"

	"github.com/pkg/errors"
)

// Epsilon floors the denominator of RobustZ so a degenerate, zero-variance
// baseline never divides by zero.
const Epsilon = 1e-9

// MaxReasonableSamples bounds SummaryStatistics.Samples as a defensive cap,
// mirroring the original implementation's MAX_SAMPLES constant. It is not
// an allocation limit; Summary accepts any length slice.
const MaxReasonableSamples = 10000

// ErrInsufficientSamples is returned by Summary when the input set is empty.
var ErrInsufficientSamples = errors.New("insufficient samples")

// SummaryStatistics is the robust statistical summary of one scalar feature.
type SummaryStatistics struct {
	Median  float64 `json:"median"`
	MAD     float64 `json:"mad"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// Median returns the middle value of xs (arithmetic mean of the two middle
// values when len(xs) is even). Returns 0 for an empty slice. xs is not
// mutated; a sorted copy is used internally.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2.0
	}
	return sorted[n/2]
}

// MAD returns the median absolute deviation of xs around m.
func MAD(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	deviations := make([]float64, len(xs))
	for i, x := range xs {
		deviations[i] = abs(x - m)
	}
	return Median(deviations)
}

// RobustZ returns the robust z-score of v against median m and dispersion
// d, flooring d at Epsilon to avoid division by zero for a constant
// baseline without inflating the score of a truly variable one.
func RobustZ(v, m, d float64) float64 {
	if d < Epsilon {
		d = Epsilon
	}
	return (v - m) / d
}

// Summary computes the full robust summary of xs. For an empty input it
// returns the zero-value SummaryStatistics and ErrInsufficientSamples.
func Summary(xs []float64) (SummaryStatistics, error) {
	if len(xs) == 0 {
		return SummaryStatistics{}, ErrInsufficientSamples
	}
	median := Median(xs)
	min, max := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return SummaryStatistics{
		Median:  median,
		MAD:     MAD(xs, median),
		Min:     min,
		Max:     max,
		Samples: len(xs),
	}, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
