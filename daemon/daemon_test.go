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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/daqclock/endpoint"
	"github.com/facebook/daqclock/pll"
	"github.com/facebook/daqclock/quality"
	"github.com/facebook/daqclock/timing"
)

type testLogger struct {
	samples []*LogSample
}

func (l *testLogger) Log(s *LogSample) error {
	l.samples = append(l.samples, s)
	return nil
}

// idealPLL locks on the second step
func idealPLL(name string) pll.Config {
	cfg := pll.DefaultConfig(name)
	cfg.FreqError = 0
	cfg.PhaseError = 0
	cfg.Period = 100 * time.Millisecond
	cfg.LockCount = 1
	return cfg
}

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Master = idealPLL("master")
	cfg.Dependent = idealPLL("dependent")
	cfg.Endpoint.Sim.ConvergeTicks = 1
	cfg.Endpoint.Sim.InitialTimestamp = 1000
	cfg.RingSize = 100
	cfg.ControlPort = 0
	cfg.SysStatsInterval = 0
	require.NoError(t, cfg.EvalAndValidate())
	return cfg
}

func newTestDaemon(t *testing.T) (*Daemon, *Stats, *testLogger) {
	stats := NewStats()
	l := &testLogger{}
	d, err := New(testConfig(t), stats, l)
	require.NoError(t, err)
	return d, stats, l
}

func tickUntilReady(t *testing.T, d *Daemon, max int) timing.Status {
	for i := 0; i < max; i++ {
		if st := d.tick(); st.Ready {
			return st
		}
	}
	require.FailNow(t, "never became ready")
	return timing.Status{}
}

func TestNewRemote(t *testing.T) {
	cfg := testConfig(t)
	cfg.Endpoint.Mode = EndpointModeRemote
	d, err := New(cfg, NewStats(), &testLogger{})
	require.NoError(t, err)
	require.NotNil(t, d.remote)
	require.Nil(t, d.sim)

	cfg.Endpoint.Mode = "serial"
	_, err = New(cfg, NewStats(), &testLogger{})
	require.Error(t, err)
}

func TestDaemonTickLocal(t *testing.T) {
	d, stats, l := newTestDaemon(t)

	st := d.tick()
	require.False(t, st.Ready)
	require.Equal(t, uint64(1), st.Tick)

	st = tickUntilReady(t, d, 10)
	require.Equal(t, timing.SourceLocal, st.Source)
	require.Equal(t, timing.Timestamp(st.Tick), st.Timestamp)
	require.Empty(t, l.samples)

	counters := stats.Get()
	require.Equal(t, int64(1), counters["ready"])
	require.Equal(t, int64(1), counters["master.locked"])
	require.Equal(t, int64(1), counters["dependent.locked"])
	require.Equal(t, int64(st.Tick), counters["tick"])
	require.Equal(t, int64(0), counters["transitions"])
}

func TestDaemonSwitchToEndpoint(t *testing.T) {
	d, stats, l := newTestDaemon(t)
	tickUntilReady(t, d, 10)

	// peer domain converges on its own
	d.sim.Tick()
	require.True(t, d.Endpoint().Ready)

	require.NoError(t, d.Core().Select(timing.SourceEndpoint))
	st := d.tick()
	require.False(t, st.Ready)
	require.Equal(t, timing.StateSwitching, st.State)

	st = tickUntilReady(t, d, 10)
	require.Equal(t, timing.StateStable, st.State)
	require.Equal(t, timing.SourceEndpoint, st.Source)
	require.Equal(t, timing.Timestamp(1000), st.Timestamp)
	require.Equal(t, int64(1), d.dependent.Relocks())
	require.Equal(t, int64(0), d.master.Relocks())

	require.Len(t, l.samples, 3)
	require.Equal(t, timing.StateSwitching, l.samples[0].To)
	require.Equal(t, timing.StateRelocking, l.samples[1].To)
	require.Equal(t, timing.StateStable, l.samples[2].To)
	require.Equal(t, timing.SourceEndpoint, l.samples[2].Target)
	require.True(t, l.samples[2].Ready)

	counters := stats.Get()
	require.Equal(t, int64(3), counters["transitions"])
	require.Equal(t, int64(1), counters["ready_lost"])
	require.Equal(t, int64(1), counters["dependent.relocks"])
	require.Equal(t, int64(1), counters["source"])
}

func TestDaemonLossOfSignal(t *testing.T) {
	d, stats, _ := newTestDaemon(t)
	d.sim.Tick()
	require.NoError(t, d.Core().Select(timing.SourceEndpoint))
	tickUntilReady(t, d, 20)

	d.sim.SetLossOfSignal(true)
	d.sim.Tick()
	st := d.tick()
	require.True(t, st.LossOfSignal)
	require.False(t, st.Ready)
	// surfaced only, no switch back
	require.Equal(t, timing.StateStable, st.State)
	require.Equal(t, timing.SourceEndpoint, st.Source)
	require.ErrorIs(t, st.Err(), timing.ErrLossOfSignal)
	require.ErrorIs(t, st.Err(), timing.ErrPeerNotReady)
	require.Equal(t, int64(1), stats.Get()["loss_of_signal"])
}

func TestDaemonQuality(t *testing.T) {
	d, stats, _ := newTestDaemon(t)
	require.Nil(t, d.Quality())

	_, err := d.evaluateQuality()
	require.ErrorIs(t, err, quality.ErrNotEnoughData)

	for i := 0; i < 10; i++ {
		d.tick()
	}
	r, err := d.evaluateQuality()
	require.NoError(t, err)
	require.Equal(t, 10, r.Samples)
	// first tick is not ready
	require.InDelta(t, 0.9, r.Availability, 0.0001)
	require.Equal(t, quality.ClockClassUncalibrated, r.Class)
	require.Equal(t, r, d.Quality())

	counters := stats.Get()
	require.Equal(t, int64(90), counters["quality.availability_pct"])
	require.Equal(t, int64(52), counters["quality.clock_class"])
	require.Equal(t, int64(10), counters["quality.samples"])
}

func TestDaemonReload(t *testing.T) {
	d, stats, _ := newTestDaemon(t)
	cfg := testConfig(t)
	cfg.Source = timing.SourceEndpoint
	cfg.Quality.Class = "max(mean(class), 6)"
	require.NoError(t, d.Reload(cfg))
	require.Equal(t, timing.SourceEndpoint, d.Core().Selected())
	require.Equal(t, "max(mean(class), 6)", d.math.Load().Class)
	require.Equal(t, int64(1), stats.Get()["reload"])

	cfg.Quality.Class = "p99(offset)"
	require.Error(t, d.Reload(cfg))
	require.Equal(t, "max(mean(class), 6)", d.math.Load().Class)
}

func TestDaemonControl(t *testing.T) {
	d, stats, _ := newTestDaemon(t)
	srv := httptest.NewServer(d.ControlHandler())
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	tickUntilReady(t, d, 10)
	r, err := c.Status()
	require.NoError(t, err)
	require.True(t, r.Status.Ready)
	require.Empty(t, r.Error)
	require.Equal(t, timing.StateStable, r.Status.State)
	require.Equal(t, endpoint.StatusReset, r.Endpoint.Status)
	require.Nil(t, r.Quality)

	require.NoError(t, c.Select(timing.SourceEndpoint))
	require.Equal(t, timing.SourceEndpoint, d.Core().Selected())
	st := d.tick()
	require.Equal(t, timing.StateSwitching, st.State)

	r, err = c.Status()
	require.NoError(t, err)
	require.Contains(t, r.Error, timing.ErrSwitching.Error())

	// hard reset goes back to local
	require.NoError(t, c.Reset(ResetHard))
	st = d.tick()
	require.Equal(t, timing.StateStable, st.State)
	require.Equal(t, timing.SourceLocal, st.Source)
	require.Equal(t, timing.Timestamp(0), st.Timestamp)

	require.NoError(t, c.Reset(ResetDependent))
	st = d.tick()
	require.Equal(t, timing.StateRelocking, st.State)
	require.Equal(t, timing.SourceLocal, st.Target)

	d.sim.Tick()
	require.True(t, d.sim.Ready())
	require.NoError(t, c.Reset(ResetEndpoint))
	d.sim.Tick()
	require.False(t, d.sim.Ready())

	require.Error(t, c.Reset("soft"))

	counters := stats.Get()
	require.Equal(t, int64(1), counters["control.select"])
	require.Equal(t, int64(1), counters["control.reset"])
	require.Equal(t, int64(1), counters["control.reset_endpoint"])
	require.Equal(t, int64(1), counters["control.reset_dependent"])
}

func TestDaemonControlBadRequest(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	srv := httptest.NewServer(d.ControlHandler())
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	err := c.Select(timing.Source(7))
	require.ErrorContains(t, err, "400")
	require.Equal(t, timing.SourceLocal, d.Core().Selected())

	// wrong method
	err = c.post("/status", nil)
	require.ErrorContains(t, err, "405")
}

func TestDaemonRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.MasterInterval = time.Millisecond
	cfg.QualityInterval = 5 * time.Millisecond
	cfg.SysStatsInterval = 5 * time.Millisecond
	cfg.Endpoint.Interval = time.Millisecond
	cfg.Source = timing.SourceEndpoint
	stats := NewStats()
	d, err := New(cfg, stats, &testLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- d.Run(ctx)
	}()
	require.Eventually(t, d.Core().Ready, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return d.Quality() != nil
	}, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		_, found := stats.Get()["process.alive"]
		return found
	}, 5*time.Second, time.Millisecond)
	st := d.Core().Status()
	require.Equal(t, timing.SourceEndpoint, st.Source)
	require.GreaterOrEqual(t, uint64(st.Timestamp), uint64(1000))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
