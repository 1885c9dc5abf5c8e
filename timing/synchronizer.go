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

package timing

import "fmt"

// Synchronizer registers the selected upstream timestamp into the master domain.
//
// With a single stage this is a plain register sampling the peer value once per
// master tick. That is only safe while the master clock and the peer clock are
// frequency locked; nothing here detects a value sampled across a switch.
// Extra stages delay the value by one master tick each.
type Synchronizer struct {
	stages []Timestamp
	// index of the oldest stage, i.e. the output
	head int
}

// NewSynchronizer returns a synchronizer with given number of register stages
func NewSynchronizer(stages int) (*Synchronizer, error) {
	if stages < 1 {
		return nil, fmt.Errorf("synchronizer needs at least 1 stage, got %d", stages)
	}
	return &Synchronizer{stages: make([]Timestamp, stages)}, nil
}

// Stages returns number of register stages
func (s *Synchronizer) Stages() int {
	return len(s.stages)
}

// Tick registers the value of the selected source and returns the synchronized output
func (s *Synchronizer) Tick(source Source, local Timestamp, endpoint *EndpointSource) Timestamp {
	var in Timestamp
	if source == SourceEndpoint {
		in = endpoint.Timestamp()
	} else {
		in = local
	}
	// the oldest stage is replaced by the newest value, output moves to the next oldest
	s.stages[s.head] = in
	s.head = (s.head + 1) % len(s.stages)
	return s.Value()
}

// Value returns the synchronized value, stable between ticks
func (s *Synchronizer) Value() Timestamp {
	return s.stages[s.head]
}
