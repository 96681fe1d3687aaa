// Package baseline implements the in-memory Baseline Store: global and
// per-application baselines, lookup, and on-disk profile persistence.
package baseline

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"hpcids/internal/alert"
	"hpcids/internal/features"
	"hpcids/internal/stats"
)

// ErrBaselineMissing indicates the expected baseline file was absent.
var ErrBaselineMissing = errors.New("baseline missing")

// ErrProfilePersistence indicates a baseline profile could not be written.
var ErrProfilePersistence = errors.New("failed to persist baseline profile")

// MaxAppBaselines bounds the number of per-application baselines the store
// will hold in memory, a defensive cap mirroring the original's MAX_APPS.
const MaxAppBaselines = 64

// globalFileName is the well-known filename for the system-wide baseline.
const globalFileName = "rigorous_baseline.json"

// Baseline maps every named feature to its robust summary statistics. A
// Baseline is always fully populated; partial baselines are not
// representable (spec §3).
type Baseline struct {
	IPC            stats.SummaryStatistics
	BranchMissRate stats.SummaryStatistics
	CacheMissRate  stats.SummaryStatistics
	L1DMPKI        stats.SummaryStatistics
	ITLBMPKI       stats.SummaryStatistics
	DTLBMPKI       stats.SummaryStatistics
}

// Get returns the summary statistics for the named feature, matching
// features.FeatureNames.
func (b Baseline) Get(name string) stats.SummaryStatistics {
	switch name {
	case "ipc":
		return b.IPC
	case "branch_miss_rate":
		return b.BranchMissRate
	case "cache_miss_rate":
		return b.CacheMissRate
	case "l1d_mpki":
		return b.L1DMPKI
	case "itlb_mpki":
		return b.ITLBMPKI
	case "dtlb_mpki":
		return b.DTLBMPKI
	}
	return stats.SummaryStatistics{}
}

// Set assigns the summary statistics for the named feature; used while
// assembling a Baseline from collected feature samples.
func (b *Baseline) Set(name string, s stats.SummaryStatistics) {
	switch name {
	case "ipc":
		b.IPC = s
	case "branch_miss_rate":
		b.BranchMissRate = s
	case "cache_miss_rate":
		b.CacheMissRate = s
	case "l1d_mpki":
		b.L1DMPKI = s
	case "itlb_mpki":
		b.ITLBMPKI = s
	case "dtlb_mpki":
		b.DTLBMPKI = s
	}
}

// FromFeatures builds a fully populated Baseline from a buffer of collected
// feature vectors, grounded on
// original_source/src/baseline_collector.c:compute_baseline_from_features.
func FromFeatures(vectors []features.Vector) (Baseline, error) {
	var b Baseline
	for _, name := range features.FeatureNames {
		values := make([]float64, len(vectors))
		for i, v := range vectors {
			values[i] = v.Value(name)
		}
		summary, err := stats.Summary(values)
		if err != nil {
			return Baseline{}, errors.Wrap(err, "computing summary for "+name)
		}
		b.Set(name, summary)
	}
	return b, nil
}

// ApplicationRecord pairs an application name with its baseline and a flag
// distinguishing "known but unprofiled" from "has a usable baseline".
type ApplicationRecord struct {
	Name        string
	Baseline    Baseline
	HasBaseline bool
}

// Store owns every Baseline for the process lifetime. It is populated at
// startup (NewStore) and whenever a collection run completes (Put).
type Store struct {
	dir string

	mu     sync.RWMutex
	global *Baseline
	apps   map[string]ApplicationRecord
}

// NewStore loads the global baseline and every per-application baseline
// found in dir. A missing global baseline is logged and tolerated: the
// store still functions, but global-baseline detection degrades to a
// safe no-op (spec §7, ErrBaselineMissing).
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir, apps: make(map[string]ApplicationRecord)}

	globalPath := filepath.Join(dir, globalFileName)
	if b, err := LoadProfile(globalPath); err != nil {
		if !errors.Is(err, ErrBaselineMissing) {
			return nil, err
		}
		slog.Warn("global baseline not found; global-baseline detection will be a safe no-op", slog.String("path", globalPath))
	} else {
		s.global = &b
	}

	if err := s.loadAppBaselines(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAppBaselines() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.Wrap(err, "reading baseline directory")
	}
	for _, entry := range entries {
		if entry.IsDir() || len(s.apps) >= MaxAppBaselines {
			continue
		}
		name, ok := appNameFromFileName(entry.Name())
		if !ok {
			continue
		}
		b, err := LoadProfile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			slog.Warn("failed to load per-app baseline", slog.String("app", name), slog.String("error", err.Error()))
			continue
		}
		s.apps[name] = ApplicationRecord{Name: name, Baseline: b, HasBaseline: true}
		slog.Info("loaded baseline for app", slog.String("app", name))
	}
	return nil
}

// appNameFromFileName extracts APP from "baseline_<APP>.<ext>" (any
// non-empty extension), rejecting the global baseline's own filename.
func appNameFromFileName(fileName string) (string, bool) {
	const prefix = "baseline_"
	if fileName == globalFileName || !strings.HasPrefix(fileName, prefix) {
		return "", false
	}
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(fileName, prefix), ext)
	if name == "" {
		return "", false
	}
	return name, true
}

// Kind tags which baseline variant Resolve selected.
type Kind = alert.BaselineKind

// Resolve returns the baseline to score against for appName: the per-app
// baseline if appName is non-empty and known with has_baseline=true,
// otherwise the global baseline. Resolve never returns an error; when the
// global baseline is also absent it returns the zero Baseline with
// ok=false, signaling the caller to skip scoring (spec §4.6, "safe no-op").
func (s *Store) Resolve(appName string) (b Baseline, kind Kind, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if appName != "" {
		if rec, found := s.apps[appName]; found && rec.HasBaseline {
			return rec.Baseline, alert.KindPerApp, true
		}
	}
	if s.global == nil {
		return Baseline{}, alert.KindGlobal, false
	}
	return *s.global, alert.KindGlobal, true
}

// Put installs a freshly computed per-application baseline, making it
// immediately visible to Resolve. Used by internal/collector on success.
func (s *Store) Put(appName string, b Baseline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[appName] = ApplicationRecord{Name: appName, Baseline: b, HasBaseline: true}
}

// Dir returns the baseline directory the store was loaded from, used by
// the collector to compute the destination path for a new profile.
func (s *Store) Dir() string {
	return s.dir
}

// AppCount returns the number of per-application baselines currently
// loaded, used by the startup summary log.
func (s *Store) AppCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apps)
}

// GlobalFileName is the well-known filename for the system-wide baseline,
// exported for callers that need to construct the path themselves.
const GlobalFileName = globalFileName
