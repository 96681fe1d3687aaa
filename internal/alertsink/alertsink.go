// Package alertsink implements the append-only Alert sink: one JSON
// object per line, plus a best-effort diagnostic echo, grounded in
// original_source/src/detection.c:log_alert.
package alertsink

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
	"hpcids/internal/alert"
)

// ErrSinkWrite wraps any failure appending an alert record to the file.
var ErrSinkWrite = errors.New("failed to append alert")

// FileSink appends one JSON-encoded Alert per line to a file, opening it
// lazily on first use, matching the original's lazy fopen-on-first-alert
// behavior.
type FileSink struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewFileSink returns a Sink that writes to path, creating it (and any
// existing content preserved via append) on first Append call.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Append writes a to the sink and echoes a one-line summary to the
// diagnostic log channel. A write failure is wrapped in ErrSinkWrite;
// per spec §7 (AlertSinkError), callers should log and continue rather
// than abort detection.
func (s *FileSink) Append(a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304
		if err != nil {
			return errors.Wrap(ErrSinkWrite, err.Error())
		}
		s.file = f
	}

	line, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(ErrSinkWrite, err.Error())
	}
	line = append(line, '\n')
	if _, err := s.file.Write(line); err != nil {
		return errors.Wrap(ErrSinkWrite, err.Error())
	}
	if err := s.file.Sync(); err != nil {
		return errors.Wrap(ErrSinkWrite, err.Error())
	}

	fmt.Fprintf(os.Stderr, "[%s] %s anomaly in %s: %s=%.6f (baseline=%.6f, z=%.3f)\n",
		a.Severity, a.BaselineType, a.ApplicationName, a.Feature, a.MeasuredValue, a.BaselineMedian, a.RobustZScore)
	return nil
}

// Close releases the underlying file handle, if one was opened.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
