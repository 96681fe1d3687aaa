// Package metricsexport is a supplemental live metrics exporter: it mirrors
// the currently observed feature vector and cumulative alert counts as
// Prometheus gauges/counters, grounded in the teacher's
// cmd/metrics/metrics_server.go.
package metricsexport

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"hpcids/internal/alert"
	"hpcids/internal/features"
)

const metricPrefix = "hpcids_"

var (
	featureGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: metricPrefix + "feature", Help: "Last observed value of a behavioral feature."},
		[]string{"name"},
	)
	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: metricPrefix + "alerts_total", Help: "Count of anomaly alerts emitted, by severity."},
		[]string{"severity"},
	)

	registerOnce sync.Once
	enabled      bool
)

func ensureRegistered() {
	registerOnce.Do(func() {
		prometheus.MustRegister(featureGauge, alertsTotal)
		enabled = true
	})
}

// Enabled reports whether a metrics server has been started this process.
func Enabled() bool {
	return enabled
}

// Serve starts an HTTP server exposing /metrics on listenAddr and returns
// it so the caller can Close it on shutdown.
func Serve(listenAddr string) *http.Server {
	ensureRegistered()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	slog.Info("starting live metrics server", slog.String("address", listenAddr))
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return server
}

// ObserveFeatures updates the feature gauges with the most recently
// engineered vector.
func ObserveFeatures(fv features.Vector) {
	if !enabled {
		return
	}
	for _, name := range features.FeatureNames {
		featureGauge.WithLabelValues(name).Set(fv.Value(name))
	}
}

// ObserveAlert increments the alert counter for a's severity.
func ObserveAlert(a alert.Alert) {
	if !enabled {
		return
	}
	alertsTotal.WithLabelValues(string(a.Severity)).Inc()
}
