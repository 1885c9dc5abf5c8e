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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/daqclock/timing"
)

func TestCSVLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewCSVLogger(&buf)
	samples := []*LogSample{
		{Tick: 3, From: timing.StateStable, To: timing.StateSwitching, Source: timing.SourceLocal, Target: timing.SourceEndpoint, Timestamp: 2},
		{Tick: 4, From: timing.StateSwitching, To: timing.StateRelocking, Source: timing.SourceLocal, Target: timing.SourceEndpoint, Timestamp: 3},
		{Tick: 9, From: timing.StateRelocking, To: timing.StateStable, Source: timing.SourceLocal, Target: timing.SourceEndpoint, Timestamp: 1005, Ready: true},
	}
	for _, s := range samples {
		require.NoError(t, l.Log(s))
	}
	want := `tick,from,to,source,target,timestamp,ready
3,STABLE,SWITCHING,local,endpoint,2,false
4,SWITCHING,RELOCKING,local,endpoint,3,false
9,RELOCKING,STABLE,local,endpoint,1005,true
`
	require.Equal(t, want, buf.String())
}

func TestDummyLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewDummyLogger(&buf)
	require.NoError(t, l.Log(&LogSample{Tick: 7, From: timing.StateStable, To: timing.StateSwitching, Source: timing.SourceLocal, Target: timing.SourceEndpoint}))
	require.Equal(t, "tick 7: STABLE(local) -> SWITCHING(endpoint)\n", buf.String())
}
