// Package app defines application-wide identity shared across commands.
package app

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"

	"hpcids/internal/config"
)

// Name is the name of the application executable.
var Name = filepath.Base(os.Args[0])

// Version is set by the linker at build time.
var Version = "dev"

// Context represents the application context shared by all commands,
// attached to the root command's context in initializeApplication and
// retrieved by every subcommand's RunE.
type Context struct {
	Debug  bool          // Debug is true if the application is running in debug mode.
	Config config.Config // Config is the resolved, defaulted configuration for this run.
}

// Flag names for flags defined in the root command, shared with subcommands.
const (
	FlagDebugName     = "debug"
	FlagSyslogName    = "syslog"
	FlagLogStdOutName = "log-stdout"
	FlagConfigName    = "config"
)
