package baseline

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"hpcids/internal/features"
	"hpcids/internal/stats"
)

// profileMethod names the statistical method used to build a profile,
// recorded in the file so a future reader knows how to interpret it.
const profileMethod = "robust_median_mad"

// Metadata records the provenance of one collection run that produced a
// Baseline, persisted alongside the baseline statistics (spec §4.4).
type Metadata struct {
	ApplicationName    string   `json:"application_name,omitempty"`
	CollectedAtUTC     string   `json:"collected_at_utc"`
	RunsExecuted       int      `json:"runs_executed"`
	SampleCount        int      `json:"sample_count"`
	CounterEvents      []string `json:"counter_events"`
	SamplingIntervalMS int      `json:"sampling_interval_ms"`
	CoreAffinity       int      `json:"core_affinity"`
}

// featureStatistics mirrors stats.SummaryStatistics for JSON purposes,
// grounded in the field names of original_source's baseline profile format.
type featureStatistics struct {
	Median  float64 `json:"median"`
	MAD     float64 `json:"mad"`
	Method  string  `json:"method"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// profileDocument is the on-disk JSON shape of one baseline file: a
// metadata section plus one featureStatistics entry per named feature.
type profileDocument struct {
	Metadata           Metadata                     `json:"metadata"`
	BaselineStatistics map[string]featureStatistics `json:"baseline_statistics"`
}

func toDocStats(s stats.SummaryStatistics) featureStatistics {
	return featureStatistics{Median: s.Median, MAD: s.MAD, Method: profileMethod, Min: s.Min, Max: s.Max, Samples: s.Samples}
}

func fromDocStats(s featureStatistics) stats.SummaryStatistics {
	return stats.SummaryStatistics{Median: s.Median, MAD: s.MAD, Min: s.Min, Max: s.Max, Samples: s.Samples}
}

// nowUTC is overridable in tests so CollectedAtUTC is deterministic.
var nowUTC = func() time.Time { return time.Now().UTC() }

// SaveProfile writes b to path as a profileDocument, atomically replacing
// any existing file. meta carries the collection provenance recorded
// alongside the statistics; its ApplicationName is left empty for the
// global profile.
func SaveProfile(path string, meta Metadata, b Baseline) error {
	if meta.CollectedAtUTC == "" {
		meta.CollectedAtUTC = nowUTC().Format(time.RFC3339)
	}
	doc := profileDocument{
		Metadata:           meta,
		BaselineStatistics: make(map[string]featureStatistics, len(features.FeatureNames)),
	}
	for _, name := range features.FeatureNames {
		doc.BaselineStatistics[name] = toDocStats(b.Get(name))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(ErrProfilePersistence, err.Error())
	}
	return writeFileAtomically(path, data)
}

// writeFileAtomically writes data to a temporary file in the same
// directory as path and renames it into place, so a crash or a write
// error mid-flight never leaves a truncated or half-written profile at
// path (spec §7, ProfilePersistenceError: "partial files must not be
// left behind").
func writeFileAtomically(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(ErrProfilePersistence, err.Error())
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // #nosec G104 -- no-op once Rename below succeeds

	if _, err := tmp.Write(data); err != nil { // #nosec G306
		tmp.Close()
		return errors.Wrap(ErrProfilePersistence, err.Error())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(ErrProfilePersistence, err.Error())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(ErrProfilePersistence, err.Error())
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil { // #nosec G302
		return errors.Wrap(ErrProfilePersistence, err.Error())
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(ErrProfilePersistence, err.Error())
	}
	return nil
}

// LoadProfile reads and decodes a baseline profile from path. A missing
// file yields ErrBaselineMissing; a present-but-unparsable file yields a
// wrapped decode error so the caller can distinguish the two (spec §7).
func LoadProfile(path string) (Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Baseline{}, ErrBaselineMissing
		}
		return Baseline{}, errors.Wrap(err, "reading baseline profile "+path)
	}

	var doc profileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Baseline{}, errors.Wrap(err, "decoding baseline profile "+path)
	}

	var b Baseline
	for _, name := range features.FeatureNames {
		if s, ok := doc.BaselineStatistics[name]; ok {
			b.Set(name, fromDocStats(s))
		}
	}
	return b, nil
}
