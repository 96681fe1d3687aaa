// Package monitor implements the `monitor` subcommand: runs a live
// monitoring session against the system, a process, or an application,
// scoring every feature vector against the Baseline Store.
package monitor

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hpcids/internal/alert"
	"hpcids/internal/alertsink"
	"hpcids/internal/app"
	"hpcids/internal/baseline"
	"hpcids/internal/collector"
	"hpcids/internal/detector"
	"hpcids/internal/features"
	"hpcids/internal/metricsexport"
	"hpcids/internal/perfsource"
	"hpcids/internal/sample"
	"hpcids/internal/util"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	flagSystemName        = "system"
	flagPIDName           = "pid"
	flagAppName           = "app"
	flagMetricsListenName = "metrics-listen"
)

var (
	flagSystem        bool
	flagPID           int
	flagApp           string
	flagMetricsListen string
)

// Cmd is the `monitor` subcommand.
var Cmd = &cobra.Command{
	GroupID: "primary",
	Use:     "monitor",
	Short:   "Monitor live behavior against stored baselines",
	PreRunE: validateFlags,
	RunE:    run,
}

func init() {
	Cmd.Flags().BoolVar(&flagSystem, flagSystemName, false, "monitor system-wide activity (default when no target is given)")
	Cmd.Flags().IntVar(&flagPID, flagPIDName, 0, "monitor a running process by PID")
	Cmd.Flags().StringVar(&flagApp, flagAppName, "", "monitor an application executable by name")
	Cmd.Flags().StringVar(&flagMetricsListen, flagMetricsListenName, "", "address to serve live Prometheus metrics on, e.g. :9090")
	Cmd.MarkFlagsMutuallyExclusive(flagSystemName, flagPIDName, flagAppName)
}

// validateFlags mirrors the teacher's cmd/config.validateFlags style. It
// only rejects a negative --pid: mutual exclusion of the target flags is
// enforced by cobra (MarkFlagsMutuallyExclusive in init), and the --app
// executable check happens in resolveTarget.
func validateFlags(cmd *cobra.Command, args []string) error {
	if flagPID < 0 {
		return errors.New("--" + flagPIDName + " must be non-negative")
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, ok := cmd.Context().Value(app.Context{}).(app.Context)
	if !ok {
		return errors.New("application context not initialized")
	}
	cfg := ctx.Config

	store, err := baseline.NewStore(cfg.BaselineDirectory)
	if err != nil {
		return errors.Wrap(err, "loading baseline store")
	}

	sink := alertsink.NewFileSink(cfg.AlertOutputFile)
	defer sink.Close()

	thresholds := detector.Thresholds{Medium: cfg.ThresholdMedium, High: cfg.ThresholdHigh, Critical: cfg.ThresholdCritical}
	det := detector.New(store, sink, thresholds, time.Duration(cfg.AlertCooldownSecs)*time.Second)

	var metricsServer *http.Server
	if flagMetricsListen != "" {
		metricsServer = metricsexport.Serve(flagMetricsListen)
		defer metricsServer.Close()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	target, appName, err := resolveTarget(cfg.AppDirectory)
	if err != nil {
		return err
	}
	source := perfsource.NewPerfStatSource(cfg.SamplingIntervalMS, cfg.PerfEvents)
	slog.Info("starting monitoring session", slog.String("command", source.BuildCommandLine(target)))

	session, err := source.Open(runCtx, target)
	if err != nil {
		return errors.Wrap(err, "opening sample source")
	}
	defer session.Close()

	grouper := sample.NewIntervalGrouper(len(cfg.PerfEvents))
	for {
		s, err := session.Next()
		if err != nil {
			break
		}
		interval, closed := grouper.Add(s)
		if !closed || interval == nil {
			continue
		}
		fv, err := features.Engineer(interval)
		if err != nil {
			slog.Debug("skipping interval missing essential counters", slog.String("error", err.Error()))
			continue
		}
		if metricsServer != nil {
			metricsexport.ObserveFeatures(fv)
		}
		alerts, err := det.Detect(runCtx, fv, appName)
		if err != nil {
			slog.Error("detection failed", slog.String("error", err.Error()))
			continue
		}
		for _, a := range alerts {
			recordAlert(a)
		}
	}
	for _, interval := range grouper.Flush() {
		fv, err := features.Engineer(interval)
		if err != nil {
			continue
		}
		alerts, _ := det.Detect(runCtx, fv, appName)
		for _, a := range alerts {
			recordAlert(a)
		}
	}
	return nil
}

// resolveTarget mirrors the original's monitor_app: an --app target is
// joined against the configured application directory and must carry the
// executable bit before perf is ever invoked against it
// (original_source/src/core.c:234-244, monitor_app's access(app_path, X_OK)).
func resolveTarget(appDirectory string) (perfsource.Target, string, error) {
	switch {
	case flagPID > 0:
		appName, err := perfsource.ProcessExecutableName(flagPID)
		if err != nil {
			slog.Warn("could not resolve process executable name", slog.Int("pid", flagPID), slog.String("error", err.Error()))
			appName = ""
		}
		return perfsource.PIDTarget(flagPID), appName, nil
	case flagApp != "":
		appPath := filepath.Join(appDirectory, flagApp)
		executable, err := util.IsExecutableFile(appPath)
		if err != nil {
			return perfsource.Target{}, "", errors.Wrap(err, "checking executable bit for "+appPath)
		}
		if !executable {
			return perfsource.Target{}, "", errors.Wrap(collector.ErrAppNotExecutable, appPath)
		}
		return perfsource.PathTarget(appPath), flagApp, nil
	default:
		return perfsource.SystemTarget(), "", nil
	}
}

// recordAlert updates live metrics for a; the diagnostic echo itself is
// rendered once, by the alert sink, so every path that receives an Alert
// sees the same line.
func recordAlert(a alert.Alert) {
	if metricsexport.Enabled() {
		metricsexport.ObserveAlert(a)
	}
}
