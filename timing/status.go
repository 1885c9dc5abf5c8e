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

import (
	"errors"
	"fmt"
)

// Conditions reported through status. None of them stop the core.
var (
	// ErrUnlocked means a synthesizer has not converged
	ErrUnlocked = errors.New("clock not locked")
	// ErrPeerNotReady means endpoint is selected but has no valid timestamp
	ErrPeerNotReady = errors.New("endpoint peer not ready")
	// ErrSwitching means a source switch is in progress
	ErrSwitching = errors.New("source switch in progress")
	// ErrLossOfSignal means upstream link reports loss of signal.
	// It never causes a switch on its own.
	ErrLossOfSignal = errors.New("upstream loss of signal")
	// ErrUnsafeCrossing is a torn or stale sample on a switch racing a master tick.
	// It is never detected and never returned, consumers rely on Provisional instead.
	ErrUnsafeCrossing = errors.New("unsafe clock domain crossing")
)

// Status is an aggregate core status, produced once per master tick
type Status struct {
	Tick      uint64    `json:"tick"`
	Timestamp Timestamp `json:"timestamp"`
	// Provisional is set for as many ticks after a selection change as it takes
	// the new value to pass through the synchronizer
	Provisional bool `json:"provisional"`

	State    State  `json:"state"`
	Selected Source `json:"selected"`
	Source   Source `json:"source"`
	Target   Source `json:"target"`

	Master    LockStatus `json:"master"`
	Dependent LockStatus `json:"dependent"`
	Endpoint  LockStatus `json:"endpoint"`

	LossOfSignal bool `json:"loss_of_signal"`
	Ready        bool `json:"ready"`
}

// MasterLocked is master_clock_locked
func (s *Status) MasterLocked() bool {
	return s.Master.Locked
}

// DependentLocked is dependent_clock_locked
func (s *Status) DependentLocked() bool {
	return s.Dependent.Locked
}

// aggregateReady is true only when stable on a locked source and,
// for endpoint, the peer is ready
func aggregateReady(s *Status) bool {
	if s.State != StateStable {
		return false
	}
	if !s.Master.Locked || !s.Dependent.Locked {
		return false
	}
	if s.Source == SourceEndpoint && !s.Endpoint.Locked {
		return false
	}
	return true
}

// Err returns all active conditions joined, nil when healthy
func (s *Status) Err() error {
	var errs []error
	if s.State != StateStable {
		errs = append(errs, fmt.Errorf("%s to %s: %w", s.State, s.Target, ErrSwitching))
	}
	if !s.Master.Locked {
		errs = append(errs, fmt.Errorf("master: %w", ErrUnlocked))
	}
	if !s.Dependent.Locked {
		errs = append(errs, fmt.Errorf("dependent: %w", ErrUnlocked))
	}
	// keyed on the source the dependent clock follows, same as aggregateReady
	if s.Source == SourceEndpoint && !s.Endpoint.Locked {
		errs = append(errs, fmt.Errorf("status 0x%x: %w", s.Endpoint.Code, ErrPeerNotReady))
	}
	if s.LossOfSignal {
		errs = append(errs, ErrLossOfSignal)
	}
	return errors.Join(errs...)
}
