// Package perfsource provides the canonical Sample Source binding: a
// subprocess wrapping `perf stat`, parsed into the abstract sample stream
// the rest of the pipeline consumes.
package perfsource

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"hpcids/internal/sample"
)

// ErrSampleSourceFailure indicates the Sample Source subprocess could not
// be started or terminated abnormally before producing any samples.
var ErrSampleSourceFailure = errors.New("sample source failure")

// MaxTrackedEvents bounds the number of distinct counter names a single
// session will track, a defensive cap mirroring the original's fixed-size
// event array.
const MaxTrackedEvents = 32

// TargetKind selects what perf stat attaches to.
type TargetKind int

const (
	// TargetSystem monitors system-wide activity (perf stat -a).
	TargetSystem TargetKind = iota
	// TargetPID attaches to a running process (perf stat -p <pid>).
	TargetPID
	// TargetPath launches and monitors an executable by path.
	TargetPath
)

// Target identifies what a Session should monitor.
type Target struct {
	Kind TargetKind
	PID  int
	Path string
	Args []string
}

// SystemTarget returns a Target for system-wide monitoring.
func SystemTarget() Target { return Target{Kind: TargetSystem} }

// PIDTarget returns a Target attaching to an already-running process.
func PIDTarget(pid int) Target { return Target{Kind: TargetPID, PID: pid} }

// PathTarget returns a Target that launches path with args under perf stat.
func PathTarget(path string, args ...string) Target {
	return Target{Kind: TargetPath, Path: path, Args: args}
}

// PerfStatSource launches `perf stat` as a subprocess and parses its CSV
// output into samples, grounded in
// original_source/src/perf_integration.c:build_perf_command,execute_perf_command.
type PerfStatSource struct {
	IntervalMS int
	Events     []string
}

// NewPerfStatSource returns a PerfStatSource sampling at intervalMS
// milliseconds for the given counter events.
func NewPerfStatSource(intervalMS int, events []string) *PerfStatSource {
	if len(events) > MaxTrackedEvents {
		events = events[:MaxTrackedEvents]
	}
	return &PerfStatSource{IntervalMS: intervalMS, Events: events}
}

// Session is an open Sample Source reader. Next blocks until a sample is
// available, the target exits, or ctx is canceled. Close releases the
// underlying subprocess and must be called exactly once.
type Session struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	reader     *bufio.Scanner
	nowFn      func() float64
	intervalMS int
}

// Open launches `perf stat` against target and returns a ready-to-read
// Session.
func (p *PerfStatSource) Open(ctx context.Context, target Target) (*Session, error) {
	args := p.commandArgs(target)
	cmd := exec.CommandContext(ctx, "perf", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(ErrSampleSourceFailure, err.Error())
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(ErrSampleSourceFailure, err.Error())
	}

	slog.Info("sample source started", slog.String("command", "perf "+strings.Join(args, " ")))

	return &Session{
		cmd:        cmd,
		stdout:     stdout,
		reader:     bufio.NewScanner(stdout),
		nowFn:      func() float64 { return float64(time.Now().Unix()) },
		intervalMS: p.IntervalMS,
	}, nil
}

// commandArgs builds the perf stat argument vector, matching
// build_perf_command's three target shapes exactly.
func (p *PerfStatSource) commandArgs(target Target) []string {
	args := []string{"stat", "--no-big-num", "-I", strconv.Itoa(p.IntervalMS), "-x", ",", "-e", strings.Join(p.Events, ",")}
	switch target.Kind {
	case TargetPID:
		return append(args, "-p", strconv.Itoa(target.PID))
	case TargetPath:
		return append(append(args, target.Path), target.Args...)
	default:
		return append(args, "-a")
	}
}

// Next reads and parses the next valid measurement line, skipping
// comments, blank lines, and lines without the expected comma-separated
// shape. It returns io.EOF once the subprocess's output is exhausted.
func (s *Session) Next() (sample.Sample, error) {
	for s.reader.Scan() {
		line := s.reader.Text()
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, " ") {
			continue
		}
		if !strings.Contains(line, ",") {
			continue
		}
		smpl, ok := ParseLine(line, s.nowFn())
		if !ok {
			continue
		}
		smpl.DurationMS = s.intervalMS
		return smpl, nil
	}
	if err := s.reader.Err(); err != nil {
		return sample.Sample{}, errors.Wrap(ErrSampleSourceFailure, err.Error())
	}
	return sample.Sample{}, io.EOF
}

// Close waits for the subprocess to exit and releases its resources. A
// nonzero exit status is not itself an error: the original accepts
// `timeout`'s nonzero exit when it kills the target as a normal
// end-of-session signal.
func (s *Session) Close() error {
	_ = s.stdout.Close()
	_ = s.cmd.Wait()
	return nil
}

// notAvailableMarkers are perf's placeholders for counters the hardware or
// kernel could not supply; such lines are dropped rather than parsed as
// zero, since zero and "not supported" are not interchangeable.
var notAvailableMarkers = []string{"<not supported>", "<not counted>", "<not available>"}

// ParseLine parses one line of `perf stat -x ,` CSV output into a Sample,
// mirroring original_source/src/perf_integration.c:parse_perf_line's
// field-by-field layout: 0=perf_time, 1=value, 2=empty, 3=counter name,
// fields 4+ ignored. ok is false for lines that do not carry a usable
// measurement (missing fields, unavailable counter).
func ParseLine(line string, wallTime float64) (s sample.Sample, ok bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return sample.Sample{}, false
	}

	perfTime, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return sample.Sample{}, false
	}

	valueField := strings.TrimSpace(fields[1])
	for _, marker := range notAvailableMarkers {
		if strings.Contains(valueField, marker) {
			return sample.Sample{}, false
		}
	}
	value, err := strconv.ParseUint(valueField, 10, 64)
	if err != nil {
		return sample.Sample{}, false
	}

	counter := strings.TrimSpace(fields[3])
	if counter == "" {
		return sample.Sample{}, false
	}

	return sample.Sample{
		PerfTime: perfTime,
		Counter:  counter,
		Value:    value,
		WallTime: wallTime,
	}, true
}

// BuildCommandLine renders the `perf stat` invocation for target as a
// single display string, used in startup and diagnostic logging.
func (p *PerfStatSource) BuildCommandLine(target Target) string {
	return fmt.Sprintf("perf %s", strings.Join(p.commandArgs(target), " "))
}
