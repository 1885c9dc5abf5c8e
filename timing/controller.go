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
	"fmt"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=controller.go -destination=mock_synthesizer.go -package=timing

// Synthesizer is a clock synthesizer (PLL, MMCM or DPLL).
type Synthesizer interface {
	// RequestRelock resets the synthesizer. Locked must return false
	// from the moment it's called until the lock is reacquired.
	RequestRelock()
	// Locked reports whether synthesizer output is stable
	Locked() bool
}

// State is a clock switch controller state
type State int

// Controller states
const (
	StateStable State = iota
	StateSwitching
	StateRelocking
)

var stateToString = map[State]string{
	StateStable:    "STABLE",
	StateSwitching: "SWITCHING",
	StateRelocking: "RELOCKING",
}

func (s State) String() string {
	str, found := stateToString[s]
	if !found {
		return "UNSUPPORTED VALUE"
	}
	return str
}

// UnmarshalText parses State from a string
func (s *State) UnmarshalText(text []byte) error {
	for k, v := range stateToString {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("state %q not supported", string(text))
}

// MarshalText returns text representation of State
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition describes a single controller state change
type Transition struct {
	From   State
	To     State
	Source Source // source before the transition
	Target Source // source being switched to
}

// Observer is notified about every controller transition.
// It's called from the master domain goroutine.
type Observer func(t Transition)

// Controller sequences master clock source switching.
//
// Stable(s) moves to Switching as soon as the selection differs from s.
// Switching always forces the dependent synthesizer to relock, there is
// no way to change the input clock and keep the lock. Relocking waits for
// the dependent synthesizer for as long as it takes: there is no timeout and
// no fallback to the previous source.
type Controller struct {
	dependent Synthesizer
	observer  Observer

	state  State
	source Source // source the dependent clock is derived from once stable
	target Source
}

// NewController returns controller in Stable(Local) state
func NewController(dependent Synthesizer) *Controller {
	return &Controller{
		dependent: dependent,
		state:     StateStable,
		source:    SourceLocal,
		target:    SourceLocal,
	}
}

// SetObserver registers transition observer
func (c *Controller) SetObserver(o Observer) {
	c.observer = o
}

// State returns current state
func (c *Controller) State() State {
	return c.state
}

// Source returns source of the last stable state
func (c *Controller) Source() Source {
	return c.source
}

// Target returns source being switched to. Equals Source when stable.
func (c *Controller) Target() Source {
	return c.target
}

// DependentLocked reports dependent synthesizer lock
func (c *Controller) DependentLocked() bool {
	return c.dependent.Locked()
}

// Stable is true in Stable state
func (c *Controller) Stable() bool {
	return c.state == StateStable
}

// Reset forces Stable(Local). The dependent synthesizer is relocked
// whenever its input was, or was about to be, anything but the local clock.
func (c *Controller) Reset() {
	if c.source != SourceLocal || c.target != SourceLocal {
		log.Infof("dependent clock input changed by reset in %s(%s)", c.state, c.target)
		c.dependent.RequestRelock()
	}
	if c.state != StateStable || c.source != SourceLocal {
		c.transition(StateStable, SourceLocal)
	}
	c.source = SourceLocal
	c.target = SourceLocal
}

// RequestRelock forces dependent synthesizer relock while staying on the same target
func (c *Controller) RequestRelock() {
	log.Infof("dependent clock relock requested in %s(%s)", c.state, c.target)
	c.dependent.RequestRelock()
	if c.state != StateRelocking {
		c.transition(StateRelocking, c.target)
	}
}

// Step advances the state machine by one master tick for given selection
func (c *Controller) Step(selected Source) {
	switch c.state {
	case StateStable:
		if selected != c.source {
			c.transition(StateSwitching, selected)
		}
	case StateSwitching:
		if selected != c.target {
			c.transition(StateSwitching, selected)
			return
		}
		c.dependent.RequestRelock()
		c.transition(StateRelocking, c.target)
	case StateRelocking:
		if selected != c.target {
			// input clock changed again, current relock is meaningless
			c.transition(StateSwitching, selected)
			return
		}
		if c.dependent.Locked() {
			c.transition(StateStable, c.target)
			c.source = c.target
		}
	}
}

func (c *Controller) transition(to State, target Source) {
	t := Transition{
		From:   c.state,
		To:     to,
		Source: c.source,
		Target: target,
	}
	c.state = to
	c.target = target
	log.Infof("clock switch controller: %s(%s) -> %s(%s)", t.From, t.Source, t.To, t.Target)
	if c.observer != nil {
		c.observer(t)
	}
}
