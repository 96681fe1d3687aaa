// Package detector implements the anomaly-detection state machine: baseline
// selection, cooldown gating, per-feature robust-z scoring, severity
// classification, and alert emission.
package detector

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hpcids/internal/alert"
	"hpcids/internal/baseline"
	"hpcids/internal/features"
	"hpcids/internal/stats"
)

// Thresholds holds the three robust-z boundaries a measured deviation is
// classified against. Config-load time must enforce Medium < High < Critical
// (spec §9 "Severity ordering"); Detect assumes that invariant holds.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// Detector scores feature vectors against resolved baselines and emits
// alerts through a Sink. All detector state lives on the struct; there is
// no package-level mutable state (spec §9 "Global, mutable last-alert timer").
type Detector struct {
	store      *baseline.Store
	sink       alert.Sink
	thresholds Thresholds
	cooldown   time.Duration

	mu            sync.Mutex
	lastAlertTime time.Time
	hasAlerted    bool

	nowFunc func() time.Time
}

// New returns a Detector scoring against store and emitting through sink.
func New(store *baseline.Store, sink alert.Sink, thresholds Thresholds, cooldown time.Duration) *Detector {
	return &Detector{
		store:      store,
		sink:       sink,
		thresholds: thresholds,
		cooldown:   cooldown,
		nowFunc:    time.Now,
	}
}

// Detect runs the five-step operating loop for one feature vector and
// returns every alert emitted. A nil return with a nil error means no alert
// was emitted: no feature crossed the medium threshold, the cooldown gate
// skipped scoring altogether, or no baseline was available (spec §4.6
// "safe-no-op"); ctx is honored only for cancellation between per-feature
// alert sink writes.
func (d *Detector) Detect(ctx context.Context, fv features.Vector, appName string) ([]alert.Alert, error) {
	b, kind, ok := d.store.Resolve(appName)
	if !ok {
		return nil, nil
	}

	now := d.nowFunc()

	d.mu.Lock()
	if d.hasAlerted && now.Sub(d.lastAlertTime) < d.cooldown {
		d.mu.Unlock()
		return nil, nil
	}
	d.mu.Unlock()

	var emitted []alert.Alert
	for _, name := range features.FeatureNames {
		if ctx.Err() != nil {
			return emitted, ctx.Err()
		}

		value := fv.Value(name)
		baselineStats := b.Get(name)
		z := stats.RobustZ(value, baselineStats.Median, baselineStats.MAD)

		severity, threshold, anomalous := classify(z, d.thresholds)
		if !anomalous {
			continue
		}

		a := alert.Alert{
			ApplicationName: appName,
			BaselineType:    kind,
			Feature:         name,
			MeasuredValue:   value,
			BaselineMedian:  baselineStats.Median,
			RobustZScore:    z,
			Threshold:       threshold,
			Severity:        severity,
			Timestamp:       float64(now.Unix()),
		}
		if err := d.sink.Append(a); err != nil {
			slog.Error("alert sink write failed", slog.String("feature", name), slog.String("error", err.Error()))
		}
		emitted = append(emitted, a)
	}

	if len(emitted) > 0 {
		d.mu.Lock()
		d.lastAlertTime = now
		d.hasAlerted = true
		d.mu.Unlock()
	}

	return emitted, nil
}

// classify maps a robust z-score to a severity and the threshold boundary
// it crossed, checking critical first since thresholds are nested
// (critical implies high implies medium).
func classify(z float64, t Thresholds) (severity alert.Severity, threshold float64, anomalous bool) {
	abs := z
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= t.Critical:
		return alert.SeverityCritical, t.Critical, true
	case abs >= t.High:
		return alert.SeverityHigh, t.High, true
	case abs >= t.Medium:
		return alert.SeverityMedium, t.Medium, true
	default:
		return "", 0, false
	}
}
