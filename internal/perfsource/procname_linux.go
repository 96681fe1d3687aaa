//go:build linux

package perfsource

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ProcessExecutableName resolves the basename of the executable backing
// pid via /proc/<pid>/exe, grounded in
// original_source/src/perf_integration.c:get_app_name_from_pid. Unlike the
// original, which silently returns "unknown" on failure, this returns an
// error so callers can decide whether "unknown" is the right fallback.
func ProcessExecutableName(pid int) (string, error) {
	link, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "", errors.Wrap(ErrSampleSourceFailure, err.Error())
	}
	return filepath.Base(link), nil
}
