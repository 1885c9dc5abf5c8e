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

/*
Package quality evaluates clock health over a sliding window of master tick
samples. Window values are combined with user supplied expressions into an
availability figure and a PTP-style clock class.
*/
package quality

import (
	"github.com/facebook/daqclock/timing"
)

// ClockClass is a PTP-style clock class derived from core status
type ClockClass uint8

// Clock classes we report
const (
	ClockClassLocked       ClockClass = 6
	ClockClassHoldover     ClockClass = 7
	ClockClassCalibrating  ClockClass = 13
	ClockClassUncalibrated ClockClass = 52
)

var clockClassToString = map[ClockClass]string{
	ClockClassLocked:       "Locked",
	ClockClassHoldover:     "Holdover",
	ClockClassCalibrating:  "Calibrating",
	ClockClassUncalibrated: "Uncalibrated",
}

func (c ClockClass) String() string {
	s, found := clockClassToString[c]
	if !found {
		return "UNSUPPORTED VALUE"
	}
	return s
}

// Classify maps core status to a clock class
func Classify(st *timing.Status) ClockClass {
	switch {
	case st.Ready:
		return ClockClassLocked
	case !st.MasterLocked():
		return ClockClassUncalibrated
	case st.State != timing.StateStable:
		return ClockClassHoldover
	default:
		return ClockClassCalibrating
	}
}

// DataPoint is what we store in the window for every sampled tick
type DataPoint struct {
	Tick            uint64
	Ready           bool
	MasterLocked    bool
	DependentLocked bool
	EndpointReady   bool
	LossOfSignal    bool
	Class           ClockClass
}

// NewDataPoint builds DataPoint from core status
func NewDataPoint(st *timing.Status) *DataPoint {
	return &DataPoint{
		Tick:            st.Tick,
		Ready:           st.Ready,
		MasterLocked:    st.MasterLocked(),
		DependentLocked: st.DependentLocked(),
		EndpointReady:   st.Endpoint.Locked,
		LossOfSignal:    st.LossOfSignal,
		Class:           Classify(st),
	}
}

// Report is a result of window evaluation
type Report struct {
	Samples      int        `json:"samples"`
	Availability float64    `json:"availability"`
	Class        ClockClass `json:"class"`
}
