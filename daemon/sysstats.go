/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is a snapshot of daemon process and go runtime health
type ProcessStats struct {
	Uptime       time.Duration
	CPUPct       float64
	RSS          uint64
	NumFDs       int32
	NumThreads   int32
	Goroutines   int
	HeapInuse    uint64
	HeapObjects  uint64
	GCCount      uint32
	GCPauseTotal time.Duration
	// mallocs per second since the previous collection, 0 on the first one
	MallocRate uint64
}

// SysStats collects process stats. Not safe for concurrent use.
type SysStats struct {
	proc    *process.Process
	started time.Time

	lastAt      time.Time
	lastMallocs uint64
}

// NewSysStats returns collector for the current process
func NewSysStats() (*SysStats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("looking up own process: %w", err)
	}
	return &SysStats{proc: proc, started: time.Now()}, nil
}

// perSecond is a crude rate of a monotonic counter, 0 if it went backwards
func perSecond(cur, prev uint64, elapsed time.Duration) uint64 {
	if prev > cur || elapsed <= 0 {
		return 0
	}
	return uint64(float64(cur-prev) / elapsed.Seconds())
}

// Collect gathers cpu, mem and gc statistics
func (s *SysStats) Collect() *ProcessStats {
	now := time.Now()
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)

	p := &ProcessStats{
		Uptime:       now.Sub(s.started),
		Goroutines:   runtime.NumGoroutine(),
		HeapInuse:    m.HeapInuse,
		HeapObjects:  m.HeapObjects,
		GCCount:      m.NumGC,
		GCPauseTotal: time.Duration(m.PauseTotalNs),
	}
	// gopsutil lookups are best effort, missing values stay 0
	if val, err := s.proc.Percent(0); err == nil {
		p.CPUPct = val
	}
	if val, err := s.proc.MemoryInfo(); err == nil {
		p.RSS = val.RSS
	}
	if val, err := s.proc.NumFDs(); err == nil {
		p.NumFDs = val
	}
	if val, err := s.proc.NumThreads(); err == nil {
		p.NumThreads = val
	}
	if !s.lastAt.IsZero() {
		p.MallocRate = perSecond(m.Mallocs, s.lastMallocs, now.Sub(s.lastAt))
	}
	s.lastAt = now
	s.lastMallocs = m.Mallocs
	return p
}
