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

package cmd

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/daqclock/daemon"
	"github.com/facebook/daqclock/endpoint"
	"github.com/facebook/daqclock/quality"
	"github.com/facebook/daqclock/timing"
)

func captureStdout(t *testing.T, f func()) string {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = oldStdout
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestPrintEndpoint(t *testing.T) {
	status := &endpoint.Status{
		Ready:     true,
		Status:    endpoint.StatusReady,
		Timestamp: 42,
	}
	output := captureStdout(t, func() { printEndpoint(status) })
	for _, expected := range []string{
		"Endpoint:",
		"[ OK ]",
		"\tstatus: READY (0x8)",
		"\ttimestamp: 42",
		"\tloss_of_signal: false",
	} {
		require.Contains(t, output, expected)
	}
}

func TestPrintStatus(t *testing.T) {
	r := &daemon.StatusResponse{
		Status: timing.Status{
			Tick:         5,
			Timestamp:    100,
			State:        timing.StateRelocking,
			Selected:     timing.SourceEndpoint,
			Target:       timing.SourceEndpoint,
			Master:       timing.LockStatus{Domain: timing.DomainMaster, Locked: true},
			Dependent:    timing.LockStatus{Domain: timing.DomainMaster},
			Endpoint:     timing.LockStatus{Domain: timing.DomainEndpoint, Code: 0x5},
			LossOfSignal: true,
		},
		Error:   "dependent: clock not locked",
		Quality: &quality.Report{Samples: 10, Availability: 0.5, Class: quality.ClockClassHoldover},
	}
	output := captureStdout(t, func() { printStatus(r) })
	for _, expected := range []string{
		"tick: 5",
		"timestamp: 100",
		"[FAIL]",
		"RELOCKING(endpoint), selected endpoint",
		"dependent",
		"0x5",
		"loss of signal",
		"quality: class Holdover (7), availability 50.00% over 10 ticks",
		"dependent: clock not locked",
	} {
		require.Contains(t, output, expected)
	}
}

func TestResetKind(t *testing.T) {
	require.Equal(t, daemon.ResetHard, resetKind(false, false))
	require.Equal(t, daemon.ResetEndpoint, resetKind(true, false))
	require.Equal(t, daemon.ResetDependent, resetKind(false, true))
}

func TestControlCommands(t *testing.T) {
	cfg := daemon.DefaultConfig()
	require.NoError(t, cfg.EvalAndValidate())
	d, err := daemon.New(cfg, daemon.NewStats(), daemon.NewDummyLogger(io.Discard))
	require.NoError(t, err)
	srv := httptest.NewServer(d.ControlHandler())
	defer srv.Close()
	c := daemon.NewClient(srv.URL, time.Second)

	output := captureStdout(t, func() {
		require.NoError(t, selectRun(c, "Endpoint"))
	})
	require.Contains(t, output, "endpoint selected")
	require.Equal(t, timing.SourceEndpoint, d.Core().Selected())
	require.Error(t, selectRun(c, "gps"))

	captureStdout(t, func() {
		require.NoError(t, resetRun(c, daemon.ResetDependent))
		require.NoError(t, statusRun(c, true))
		require.NoError(t, statusRun(c, false))
	})
	require.Error(t, resetRun(c, "soft"))
}

func TestEndpointRun(t *testing.T) {
	sim, err := endpoint.NewSim(endpoint.SimConfig{ConvergeTicks: 1, Increment: 1, InitialTimestamp: 7})
	require.NoError(t, err)
	sim.Tick()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = endpoint.NewServer(sim).Serve(ctx, ln)
	}()

	output := captureStdout(t, func() {
		require.NoError(t, endpointRun(ln.Addr().String(), false, false))
	})
	require.Contains(t, output, "\ttimestamp: 7")

	output = captureStdout(t, func() {
		require.NoError(t, endpointRun(ln.Addr().String(), true, true))
	})
	require.Contains(t, output, `"daqclock.endpoint.timestamp":7`)
	sim.Tick()
	require.False(t, sim.Ready())
}
