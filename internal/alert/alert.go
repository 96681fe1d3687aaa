// Package alert defines the Alert record emitted by the anomaly detector.
package alert

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// BaselineKind tags which baseline variant an Alert was scored against.
type BaselineKind string

const (
	KindGlobal BaselineKind = "global"
	KindPerApp BaselineKind = "per_app"
)

// Severity classifies how far a measured value deviated from baseline.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is an immutable record of one anomalous feature observation.
type Alert struct {
	ApplicationName string       `json:"application_name"`
	BaselineType    BaselineKind `json:"baseline_type"`
	Feature         string       `json:"feature"`
	MeasuredValue   float64      `json:"measured_value"`
	BaselineMedian  float64      `json:"baseline_median"`
	RobustZScore    float64      `json:"robust_z_score"`
	Threshold       float64      `json:"threshold"`
	Severity        Severity     `json:"severity"`
	Timestamp       float64      `json:"timestamp"`
}

// Sink is an append-only consumer of Alerts, owned by the detector for the
// lifetime of a monitoring session.
type Sink interface {
	Append(a Alert) error
}
