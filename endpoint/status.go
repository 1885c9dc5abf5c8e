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
Package endpoint implements the timing endpoint peer side of the core:
a simulated peer running in its own clock domain, the monitoring protocol
used to read peer status over TCP, and a remote peer adapter polling it.

Peer internals (link protocol, clock recovery) are not modeled, only the
ready flag, the 4-bit status code and the peer timestamp.
*/
package endpoint

// StatusCode is a 4-bit endpoint status code
type StatusCode uint8

// Endpoint status codes as reported by timing endpoint firmware
const (
	StatusReset             StatusCode = 0x0
	StatusWaitSignal        StatusCode = 0x1
	StatusWaitCDRLock       StatusCode = 0x2
	StatusWaitFreqCheck     StatusCode = 0x3
	StatusWaitAlignment     StatusCode = 0x4
	StatusWaitDecode        StatusCode = 0x5
	StatusWaitPhaseAdjust   StatusCode = 0x6
	StatusWaitTimestampInit StatusCode = 0x7
	StatusReady             StatusCode = 0x8
	StatusErrRx             StatusCode = 0xc
	StatusErrTimestamp      StatusCode = 0xd
	StatusErrPhy            StatusCode = 0xe
)

var statusCodeToString = map[StatusCode]string{
	StatusReset:             "RESET",
	StatusWaitSignal:        "WAIT_SIGNAL",
	StatusWaitCDRLock:       "WAIT_CDR_LOCK",
	StatusWaitFreqCheck:     "WAIT_FREQ_CHECK",
	StatusWaitAlignment:     "WAIT_ALIGNMENT",
	StatusWaitDecode:        "WAIT_DECODE",
	StatusWaitPhaseAdjust:   "WAIT_PHASE_ADJUST",
	StatusWaitTimestampInit: "WAIT_TS_INIT",
	StatusReady:             "READY",
	StatusErrRx:             "ERR_RX",
	StatusErrTimestamp:      "ERR_TIMESTAMP",
	StatusErrPhy:            "ERR_PHY",
}

func (c StatusCode) String() string {
	s, found := statusCodeToString[c]
	if !found {
		return "UNSUPPORTED VALUE"
	}
	return s
}

// IsError is true for the error codes
func (c StatusCode) IsError() bool {
	return c >= StatusErrRx && c <= StatusErrPhy
}

// waitStages are codes the peer goes through while converging
var waitStages = []StatusCode{
	StatusWaitSignal,
	StatusWaitCDRLock,
	StatusWaitFreqCheck,
	StatusWaitAlignment,
	StatusWaitDecode,
	StatusWaitPhaseAdjust,
	StatusWaitTimestampInit,
}
