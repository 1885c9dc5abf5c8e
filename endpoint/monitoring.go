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

package endpoint

import (
	"encoding/json"
	"fmt"
	"io"
)

// MonitoringPort is the endpoint monitoring socket port
const MonitoringPort = 2959

// Status is whole structure that peer returns for monitoring
type Status struct {
	Ready        bool       `json:"ready"`
	Status       StatusCode `json:"status"`
	Timestamp    uint64     `json:"timestamp"`
	LossOfSignal bool       `json:"los"`
}

// Request is what client sends to the monitoring socket.
// Empty request just asks for Status.
type Request struct {
	Reset bool `json:"reset,omitempty"`
}

// MonitoringJSON returns a flat json representation of status
func (s *Status) MonitoringJSON(prefix string) ([]byte, error) {
	if prefix != "" {
		prefix = fmt.Sprintf("%s.", prefix)
	}

	output := map[string]any{
		fmt.Sprintf("%sready", prefix):          bool2int(s.Ready),
		fmt.Sprintf("%sstatus", prefix):         int64(s.Status),
		fmt.Sprintf("%stimestamp", prefix):      s.Timestamp,
		fmt.Sprintf("%sloss_of_signal", prefix): bool2int(s.LossOfSignal),
	}
	return json.Marshal(output)
}

func bool2int(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func roundTrip(conn io.ReadWriter, req *Request) (*Status, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	if _, err = conn.Write(b); err != nil {
		return nil, fmt.Errorf("writing to endpoint conn: %w", err)
	}
	buf := make([]byte, 1000)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("reading from endpoint conn: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("read 0 bytes from endpoint")
	}
	var status Status
	if err := json.Unmarshal(buf[:n], &status); err != nil {
		return nil, fmt.Errorf("unmarshalling JSON: %w", err)
	}
	return &status, nil
}

// ReadStatus talks to peer via monitoring port connection and reads reported Status
func ReadStatus(conn io.ReadWriter) (*Status, error) {
	return roundTrip(conn, &Request{})
}

// RequestReset asks peer to soft-reset and returns Status as seen before the reset is applied
func RequestReset(conn io.ReadWriter) (*Status, error) {
	return roundTrip(conn, &Request{Reset: true})
}
