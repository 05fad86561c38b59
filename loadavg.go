// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import "github.com/shirou/gopsutil/v3/load"

// gopsutilLoadSampler reports the host's real 1-minute load average,
// backing the scheduler's throttle (spec.md §4.5, §6 -l/--load-average).
type gopsutilLoadSampler struct{}

func newGopsutilLoadSampler() LoadSampler { return gopsutilLoadSampler{} }

// Load1 returns 0, nil on platforms gopsutil can't sample (e.g. some
// containers/Windows builds) rather than erroring, so the engine degrades
// to "never throttle" instead of failing to start (SPEC_FULL.md §3).
func (gopsutilLoadSampler) Load1() (float64, error) {
	avg, err := load.Avg()
	if err != nil {
		return 0, nil
	}
	return avg.Load1, nil
}
