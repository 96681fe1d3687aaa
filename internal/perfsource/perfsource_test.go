package perfsource

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLineValidMeasurement(t *testing.T) {
	s, ok := ParseLine("1.000234567,10000000,,cycles,100.00,,,", 1700000000)
	assert.True(t, ok)
	assert.InDelta(t, 1.000234567, s.PerfTime, 1e-9)
	assert.Equal(t, uint64(10000000), s.Value)
	assert.Equal(t, "cycles", s.Counter)
	assert.Equal(t, float64(1700000000), s.WallTime)
}

func TestParseLineNotSupported(t *testing.T) {
	_, ok := ParseLine("1.000234567,<not supported>,,branch-misses,,,,", 0)
	assert.False(t, ok)
}

func TestParseLineNotCounted(t *testing.T) {
	_, ok := ParseLine("1.000234567,<not counted>,,cache-misses,,,,", 0)
	assert.False(t, ok)
}

func TestParseLineTooFewFields(t *testing.T) {
	_, ok := ParseLine("1.0,100", 0)
	assert.False(t, ok)
}

func TestParseLineMalformedTimestamp(t *testing.T) {
	_, ok := ParseLine("not-a-number,100,,cycles", 0)
	assert.False(t, ok)
}

func TestParseLineEmptyCounterName(t *testing.T) {
	_, ok := ParseLine("1.0,100,,", 0)
	assert.False(t, ok)
}

func TestParseLinePreservesEmptyThirdField(t *testing.T) {
	// field 2 is deliberately empty in perf's own output; parsing must keep
	// it as its own empty field so the counter name stays at index 3.
	s, ok := ParseLine("2.5,500,,instructions,50.00", 0)
	assert.True(t, ok)
	assert.Equal(t, "instructions", s.Counter)
	assert.Equal(t, uint64(500), s.Value)
}

func TestCommandArgsSystemWide(t *testing.T) {
	src := NewPerfStatSource(200, []string{"cycles", "instructions"})
	args := src.commandArgs(SystemTarget())
	assert.Equal(t, []string{"stat", "--no-big-num", "-I", "200", "-x", ",", "-e", "cycles,instructions", "-a"}, args)
}

func TestCommandArgsPID(t *testing.T) {
	src := NewPerfStatSource(200, []string{"cycles"})
	args := src.commandArgs(PIDTarget(4242))
	assert.Equal(t, []string{"stat", "--no-big-num", "-I", "200", "-x", ",", "-e", "cycles", "-p", "4242"}, args)
}

func TestCommandArgsPath(t *testing.T) {
	src := NewPerfStatSource(200, []string{"cycles"})
	args := src.commandArgs(PathTarget("/usr/bin/myapp", "--flag"))
	assert.Equal(t, []string{"stat", "--no-big-num", "-I", "200", "-x", ",", "-e", "cycles", "/usr/bin/myapp", "--flag"}, args)
}

func TestNewPerfStatSourceCapsEventCount(t *testing.T) {
	events := make([]string, MaxTrackedEvents+10)
	for i := range events {
		events[i] = "cycles"
	}
	src := NewPerfStatSource(200, events)
	assert.Len(t, src.Events, MaxTrackedEvents)
}
