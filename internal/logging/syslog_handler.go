// Package logging provides the syslog slog.Handler that the command layer
// can select instead of its stdout JSON or append-mode text log file
// handlers (both of which are built directly in cmd/root.go), grounded in
// the teacher's cmd/root.go SyslogHandler.
package logging

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
	"os"
	"path/filepath"
	"runtime"
)

// SyslogHandler is a slog.Handler that formats records as single-line
// key=value pairs and writes them through the local syslog daemon.
type SyslogHandler struct {
	writer    *syslog.Writer
	level     slog.Leveler
	addSource bool
}

// NewSyslogHandler opens a connection to the local syslog daemon tagged
// with the calling executable's name.
func NewSyslogHandler(opts *slog.HandlerOptions) (*SyslogHandler, error) {
	writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, filepath.Base(os.Args[0]))
	if err != nil {
		return nil, err
	}
	return &SyslogHandler{writer: writer, level: opts.Level, addSource: opts.AddSource}, nil
}

// Enabled reports whether level is at or above the handler's configured level.
func (h *SyslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.level != nil {
		minLevel = h.level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes one log record to syslog at the matching severity.
func (h *SyslogHandler) Handle(_ context.Context, r slog.Record) error {
	var msg string
	if r.PC != 0 && h.addSource {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		msg = fmt.Sprintf("level=%s source=%s:%d msg=%q", r.Level.String(), f.File, f.Line, r.Message)
	} else {
		msg = fmt.Sprintf("level=%s msg=%q", r.Level.String(), r.Message)
	}
	r.Attrs(func(attr slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%q", attr.Key, attr.Value)
		return true
	})
	switch r.Level {
	case slog.LevelDebug:
		return h.writer.Debug(msg)
	case slog.LevelWarn:
		return h.writer.Warning(msg)
	case slog.LevelError:
		return h.writer.Err(msg)
	default:
		return h.writer.Info(msg)
	}
}

// WithAttrs and WithGroup are unsupported; syslog records are flat and the
// handler has no use for scoped state, so both return the receiver
// unchanged. Attrs and groups passed to them do not appear in the output.
func (h *SyslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

func (h *SyslogHandler) WithGroup(name string) slog.Handler { return h }
