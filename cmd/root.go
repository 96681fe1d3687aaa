// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package cmd provides the command line interface for the application.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"hpcids/cmd/collect"
	"hpcids/cmd/monitor"
	"hpcids/internal/app"
	"hpcids/internal/baseline"
	"hpcids/internal/config"
	"hpcids/internal/logging"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var gLogFile *os.File

var examples = []string{
	fmt.Sprintf("  Monitor system-wide activity:          $ %s monitor --system", app.Name),
	fmt.Sprintf("  Monitor a running process:             $ %s monitor --pid 4242", app.Name),
	fmt.Sprintf("  Collect a baseline for one app:        $ %s collect --app myservice", app.Name),
	fmt.Sprintf("  Collect baselines for every app:       $ %s collect --all", app.Name),
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:               app.Name,
	Short:             app.Name,
	Long:              fmt.Sprintf(`%s is a host-based intrusion and anomaly detector for HPC workloads, built on hardware performance counter baselines.`, app.Name),
	Example:           strings.Join(examples, "\n"),
	PersistentPreRunE: initializeApplication,
	Version:           app.Version,
}

var (
	flagDebug     bool
	flagSyslog    bool
	flagLogStdOut bool
	flagConfig    string
)

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.AddGroup([]*cobra.Group{{ID: "primary", Title: "Commands:"}}...)
	rootCmd.AddCommand(monitor.Cmd)
	rootCmd.AddCommand(collect.Cmd)

	rootCmd.PersistentFlags().BoolVar(&flagDebug, app.FlagDebugName, false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagSyslog, app.FlagSyslogName, false, "write logs to syslog instead of a file")
	rootCmd.PersistentFlags().BoolVar(&flagLogStdOut, app.FlagLogStdOutName, false, "write logs to stdout")
	rootCmd.PersistentFlags().StringVar(&flagConfig, app.FlagConfigName, "", "path to the configuration file")
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if gLogFile != nil {
			slog.Error("command failed", slog.String("error", err.Error()))
			_ = gLogFile.Close()
		}
		os.Exit(1)
	}
	if gLogFile != nil {
		_ = gLogFile.Close()
	}
}

func initializeApplication(cmd *cobra.Command, args []string) error {
	var logOpts slog.HandlerOptions
	if flagDebug {
		logOpts.Level = slog.LevelDebug
		logOpts.AddSource = true
	} else {
		logOpts.Level = slog.LevelInfo
	}

	switch {
	case flagSyslog && flagLogStdOut:
		return errors.New("only one of --" + app.FlagSyslogName + " or --" + app.FlagLogStdOutName + " may be specified")
	case flagSyslog:
		handler, err := logging.NewSyslogHandler(&logOpts)
		if err != nil {
			return errors.Wrap(err, "failed to create syslog handler")
		}
		slog.SetDefault(slog.New(handler))
	case flagLogStdOut:
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &logOpts)))
	default:
		f, err := os.OpenFile(app.Name+".log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G302
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		gLogFile = f
		slog.SetDefault(slog.New(slog.NewTextHandler(gLogFile, &logOpts)))
	}

	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil && !errors.Is(err, config.ErrConfigUnavailable) {
			return err
		}
		cfg = loaded
	}

	slog.Info("starting up",
		slog.String("app", app.Name),
		slog.String("version", app.Version),
		slog.Int("pid", os.Getpid()),
		slog.String("arguments", strings.Join(os.Args, " ")),
	)

	// Mirrors original_source/src/core.c:hpc_ids_init's startup summary,
	// which reports the counter and per-app baseline counts once a config
	// and baseline directory are known.
	numAppBaselines := 0
	if store, err := baseline.NewStore(cfg.BaselineDirectory); err != nil {
		slog.Warn("could not load baseline store for startup summary", slog.String("error", err.Error()))
	} else {
		numAppBaselines = store.AppCount()
	}
	slog.Info(fmt.Sprintf("initialized with %d events and %d app baselines", len(cfg.PerfEvents), numAppBaselines))

	cmd.SetContext(context.WithValue(context.Background(), app.Context{}, app.Context{
		Debug:  flagDebug,
		Config: cfg,
	}))
	return nil
}
