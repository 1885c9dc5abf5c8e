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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"

	"github.com/facebook/daqclock/quality"
	"github.com/facebook/daqclock/timing"
)

func TestStatsEvents(t *testing.T) {
	s := NewStats()
	for _, e := range events {
		require.Equal(t, int64(0), s.Get()[string(e)], e)
	}
	s.Inc(EventTransition)
	s.Inc(EventTransition)
	s.Inc(EventControlSelect)
	counters := s.Get()
	require.Equal(t, int64(2), counters["transitions"])
	require.Equal(t, int64(1), counters["control.select"])
	require.Len(t, counters, len(events))

	s.Reset()
	require.Equal(t, int64(0), s.Get()["transitions"])
}

func TestStatsPublishStatus(t *testing.T) {
	s := NewStats()
	s.PublishStatus(&timing.Status{
		Tick:      7,
		Timestamp: 1000,
		State:     timing.StateRelocking,
		Selected:  timing.SourceEndpoint,
		Source:    timing.SourceLocal,
		Target:    timing.SourceEndpoint,
		Master:    timing.LockStatus{Domain: timing.DomainMaster, Locked: true},
		Dependent: timing.LockStatus{Domain: timing.DomainMaster},
		Endpoint:  timing.LockStatus{Domain: timing.DomainEndpoint, Locked: true, Code: 0x8},
	})
	s.PublishRelocks(0, 3)
	counters := s.Get()
	expected := map[string]int64{
		"tick":              7,
		"timestamp":         1000,
		"ready":             0,
		"provisional":       0,
		"state":             int64(timing.StateRelocking),
		"selected":          1,
		"source":            0,
		"target":            1,
		"master.locked":     1,
		"dependent.locked":  0,
		"endpoint.ready":    1,
		"endpoint.status":   8,
		"loss_of_signal":    0,
		"master.relocks":    0,
		"dependent.relocks": 3,
	}
	for k, v := range expected {
		require.Equal(t, v, counters[k], k)
	}
}

func TestStatsPublishQuality(t *testing.T) {
	s := NewStats()
	s.PublishQuality(&quality.Report{Samples: 10, Availability: 0.996, Class: quality.ClockClassLocked})
	s.PublishPollErrors(4)
	counters := s.Get()
	require.Equal(t, int64(100), counters["quality.availability_pct"])
	require.Equal(t, int64(6), counters["quality.clock_class"])
	require.Equal(t, int64(10), counters["quality.samples"])
	require.Equal(t, int64(4), counters["endpoint.poll_errors"])
}

func getJSON(t *testing.T, url string) (int, map[string]int64) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var data map[string]int64
	require.NoError(t, json.Unmarshal(body, &data))
	return resp.StatusCode, data
}

func TestJSONStatsHandler(t *testing.T) {
	stats := NewJSONStats()
	stats.PublishQuality(&quality.Report{Samples: 5, Availability: 1, Class: quality.ClockClassLocked})
	stats.PublishPollErrors(2)

	srv := httptest.NewServer(http.HandlerFunc(stats.handleRequest))
	defer srv.Close()

	code, data := getJSON(t, srv.URL)
	require.Equal(t, http.StatusOK, code)
	require.Subset(t, maps.Keys(data), []string{"transitions", "quality.samples", "endpoint.poll_errors"})

	code, data = getJSON(t, srv.URL+"/quality")
	require.Equal(t, http.StatusOK, code)
	expected := map[string]int64{
		"quality.availability_pct": 100,
		"quality.clock_class":      6,
		"quality.samples":          5,
	}
	require.Equal(t, expected, data)

	code, data = getJSON(t, srv.URL+"/endpoint/")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]int64{"endpoint.poll_errors": 2}, data)

	code, _ = getJSON(t, srv.URL+"/offset")
	require.Equal(t, http.StatusNotFound, code)
}

func TestJSONStatsStart(t *testing.T) {
	// grab a free port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	stats := NewJSONStats()
	stats.Inc(EventReload)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- stats.Start(ctx, port)
	}()
	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 5*time.Second, 10*time.Millisecond)
	_, data := getJSON(t, url)
	require.Equal(t, int64(1), data["reload"])

	cancel()
	require.NoError(t, <-done)
}

func TestPrometheusExporter(t *testing.T) {
	stats := NewStats()
	stats.PublishStatus(&timing.Status{Master: timing.LockStatus{Locked: true}})
	stats.PublishQuality(&quality.Report{Class: quality.ClockClassLocked})
	e := NewPrometheusExporter(stats, time.Second)

	e.scrapeMetrics()
	// second scrape reuses registered gauges
	stats.PublishQuality(&quality.Report{Class: quality.ClockClassHoldover})
	e.scrapeMetrics()

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "daqclock_master_locked 1")
	require.Contains(t, string(body), "daqclock_quality_clock_class 7")
}

func TestFlattenKey(t *testing.T) {
	require.Equal(t, "daqclock_runtime_mem_mallocs_rate", flattenKey("runtime.mem.mallocs.rate"))
	require.Equal(t, "daqclock_a_b_c_d_e", flattenKey("a b-c=d/e"))
}

var expectedProcessKeys = []string{
	"process.alive",
	"process.uptime",
	"process.cpu_pct",
	"process.rss",
	"process.num_fds",
	"process.num_threads",
	"runtime.goroutines",
	"runtime.mem.heap.inuse",
	"runtime.mem.heap.objects",
	"runtime.gc.count",
	"runtime.gc.pause_total_us",
	"runtime.mem.mallocs.rate",
}

func TestSysStats(t *testing.T) {
	s, err := NewSysStats()
	require.NoError(t, err)

	p := s.Collect()
	require.Positive(t, p.Goroutines)
	require.Positive(t, p.HeapInuse)
	require.Zero(t, p.MallocRate)

	// allocate something between collections
	junk := make([][]byte, 0, 1000)
	for i := 0; i < 1000; i++ {
		junk = append(junk, make([]byte, 64))
	}
	require.Len(t, junk, 1000)
	time.Sleep(10 * time.Millisecond)
	p = s.Collect()
	require.Positive(t, p.MallocRate)

	stats := NewStats()
	stats.PublishProcess(p)
	require.Subset(t, maps.Keys(stats.Get()), expectedProcessKeys)
	require.Equal(t, int64(1), stats.Get()["process.alive"])
}

func TestPerSecond(t *testing.T) {
	require.Equal(t, uint64(4), perSecond(21, 1, 5*time.Second))
	require.Equal(t, uint64(4), perSecond(3, 1, 500*time.Millisecond))
	// counter went backwards
	require.Equal(t, uint64(0), perSecond(1, 20, time.Second))
	require.Equal(t, uint64(0), perSecond(20, 1, 0))
}
