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
	"math"
	"sync"

	"github.com/facebook/daqclock/quality"
	"github.com/facebook/daqclock/timing"
)

// Event is a counter of things that happened to the daemon
type Event string

// Events counted by the daemon
const (
	EventTransition            Event = "transitions"
	EventReadyLost             Event = "ready_lost"
	EventQualityError          Event = "quality_error"
	EventLogError              Event = "log_error"
	EventReload                Event = "reload"
	EventControlSelect         Event = "control.select"
	EventControlReset          Event = "control.reset"
	EventControlResetEndpoint  Event = "control.reset_endpoint"
	EventControlResetDependent Event = "control.reset_dependent"
)

var events = []Event{
	EventTransition,
	EventReadyLost,
	EventQualityError,
	EventLogError,
	EventReload,
	EventControlSelect,
	EventControlReset,
	EventControlResetEndpoint,
	EventControlResetDependent,
}

// StatsServer is where the daemon publishes its state
type StatsServer interface {
	// Reset atomically sets all the counters to 0
	Reset()
	Inc(e Event)
	PublishStatus(st *timing.Status)
	PublishRelocks(master, dependent int64)
	PublishQuality(r *quality.Report)
	PublishPollErrors(n int64)
	PublishProcess(p *ProcessStats)
}

// Stats is a thread safe map of counters.
// Every Publish call updates its group of counters under one lock,
// so readers never see a status half way through a tick.
type Stats struct {
	mux      sync.Mutex
	counters map[string]int64
}

// NewStats created new instance of Stats with all event counters at 0
func NewStats() *Stats {
	s := &Stats{
		counters: map[string]int64{},
	}
	for _, e := range events {
		s.counters[string(e)] = 0
	}
	return s
}

// Inc increments event counter
func (s *Stats) Inc(e Event) {
	s.mux.Lock()
	s.counters[string(e)]++
	s.mux.Unlock()
}

// PublishStatus sets counters from the status of the last master tick
func (s *Stats) PublishStatus(st *timing.Status) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.counters["tick"] = int64(st.Tick)
	s.counters["timestamp"] = int64(st.Timestamp)
	s.counters["ready"] = b2i(st.Ready)
	s.counters["provisional"] = b2i(st.Provisional)
	s.counters["state"] = int64(st.State)
	s.counters["selected"] = int64(st.Selected)
	s.counters["source"] = int64(st.Source)
	s.counters["target"] = int64(st.Target)
	s.counters["master.locked"] = b2i(st.MasterLocked())
	s.counters["dependent.locked"] = b2i(st.DependentLocked())
	s.counters["endpoint.ready"] = b2i(st.Endpoint.Locked)
	s.counters["endpoint.status"] = int64(st.Endpoint.Code)
	s.counters["loss_of_signal"] = b2i(st.LossOfSignal)
}

// PublishRelocks sets synthesizer relock counters
func (s *Stats) PublishRelocks(master, dependent int64) {
	s.mux.Lock()
	s.counters["master.relocks"] = master
	s.counters["dependent.relocks"] = dependent
	s.mux.Unlock()
}

// PublishQuality sets counters from a window quality report
func (s *Stats) PublishQuality(r *quality.Report) {
	s.mux.Lock()
	s.counters["quality.availability_pct"] = int64(math.Round(r.Availability * 100))
	s.counters["quality.clock_class"] = int64(r.Class)
	s.counters["quality.samples"] = int64(r.Samples)
	s.mux.Unlock()
}

// PublishPollErrors sets the number of failed remote endpoint polls
func (s *Stats) PublishPollErrors(n int64) {
	s.mux.Lock()
	s.counters["endpoint.poll_errors"] = n
	s.mux.Unlock()
}

// PublishProcess sets process and go runtime counters
func (s *Stats) PublishProcess(p *ProcessStats) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.counters["process.alive"] = 1
	s.counters["process.uptime"] = int64(p.Uptime.Seconds())
	s.counters["process.cpu_pct"] = int64(math.Round(p.CPUPct))
	s.counters["process.rss"] = int64(p.RSS)
	s.counters["process.num_fds"] = int64(p.NumFDs)
	s.counters["process.num_threads"] = int64(p.NumThreads)
	s.counters["runtime.goroutines"] = int64(p.Goroutines)
	s.counters["runtime.mem.heap.inuse"] = int64(p.HeapInuse)
	s.counters["runtime.mem.heap.objects"] = int64(p.HeapObjects)
	s.counters["runtime.gc.count"] = int64(p.GCCount)
	s.counters["runtime.gc.pause_total_us"] = p.GCPauseTotal.Microseconds()
	s.counters["runtime.mem.mallocs.rate"] = int64(p.MallocRate)
}

// Get returns a copy of counters
func (s *Stats) Get() map[string]int64 {
	ret := make(map[string]int64)
	s.mux.Lock()
	for key, val := range s.counters {
		ret[key] = val
	}
	s.mux.Unlock()
	return ret
}

// Reset all the values of counters
func (s *Stats) Reset() {
	s.mux.Lock()
	for k := range s.counters {
		s.counters[k] = 0
	}
	s.mux.Unlock()
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
