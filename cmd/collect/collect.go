// Package collect implements the `collect` subcommand: drives baseline
// collection runs for one application or every application in the
// configured application directory.
package collect

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"

	"hpcids/internal/app"
	"hpcids/internal/baseline"
	"hpcids/internal/collector"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	flagAppName = "app"
	flagAllName = "all"
)

var (
	flagApp string
	flagAll bool
)

// Cmd is the `collect` subcommand.
var Cmd = &cobra.Command{
	GroupID: "primary",
	Use:     "collect",
	Short:   "Collect a baseline profile for one or every configured application",
	PreRunE: validateFlags,
	RunE:    run,
}

func init() {
	Cmd.Flags().StringVar(&flagApp, flagAppName, "", "application executable name to collect a baseline for")
	Cmd.Flags().BoolVar(&flagAll, flagAllName, false, "collect baselines for every executable in the application directory")
	Cmd.MarkFlagsMutuallyExclusive(flagAppName, flagAllName)
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagApp == "" && !flagAll {
		return errors.New("one of --" + flagAppName + " or --" + flagAllName + " is required")
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

	c := collector.New(cfg.AppDirectory, cfg.RunsPerApp, cfg.MaxRuntimeSeconds, cfg.MinSamplesPerApp,
		cfg.SamplingIntervalMS, cfg.CoreAffinity, cfg.PerfEvents, store)

	if flagAll {
		succeeded, failures := c.CollectAll(cmd.Context())
		for appName, err := range failures {
			slog.Warn("baseline collection failed", slog.String("app", appName), slog.String("error", err.Error()))
		}
		fmt.Printf("collected %d baseline(s), %d failure(s)\n", succeeded, len(failures))
		if succeeded == 0 {
			return errors.New("no baselines were collected")
		}
		return nil
	}

	n, err := c.Collect(cmd.Context(), flagApp)
	if err != nil {
		return errors.Wrap(err, "collecting baseline for "+flagApp)
	}
	fmt.Printf("collected baseline for %s from %d feature samples\n", flagApp, n)
	return nil
}
