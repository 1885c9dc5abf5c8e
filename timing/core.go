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
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Core ties together counter, synchronizer and switch controller in the master domain.
//
// Tick must only be called from one goroutine, the master domain. Everything
// else (commands, status reads) is safe to call from any goroutine: commands are
// single-writer scalars sampled once at the beginning of the next tick and the
// status is published as a whole after each tick.
type Core struct {
	counter  Counter
	sync     *Synchronizer
	ctrl     *Controller
	endpoint *EndpointSource
	master   Synthesizer

	// cross-domain inputs
	selected       atomic.Int32
	hardReset      atomic.Bool
	dependentReset atomic.Bool
	lossOfSignal   atomic.Bool

	// master domain only
	tick         uint64
	lastSelected Source
	provisional  int

	status atomic.Pointer[Status]
}

// NewCore creates a core in Stable(Local).
// master and dependent are the master and dependent clock synthesizers,
// stages is the synchronizer depth.
func NewCore(master, dependent Synthesizer, peer Peer, stages int) (*Core, error) {
	s, err := NewSynchronizer(stages)
	if err != nil {
		return nil, err
	}
	c := &Core{
		sync:     s,
		ctrl:     NewController(dependent),
		endpoint: NewEndpointSource(peer),
		master:   master,
	}
	c.status.Store(&Status{
		State:     StateStable,
		Master:    LockStatus{Domain: DomainMaster},
		Dependent: LockStatus{Domain: DomainMaster},
		Endpoint:  LockStatus{Domain: DomainEndpoint},
	})
	return c, nil
}

// SetObserver registers controller transition observer. Not safe to call while ticking.
func (c *Core) SetObserver(o Observer) {
	c.ctrl.SetObserver(o)
}

// Select commands desired clock and timestamp source
func (c *Core) Select(s Source) error {
	if _, found := sourceToString[s]; !found {
		return fmt.Errorf("source %d not supported", s)
	}
	if prev := Source(c.selected.Swap(int32(s))); prev != s {
		log.Infof("source selection changed: %s -> %s", prev, s)
	}
	return nil
}

// Selected returns current source selection
func (c *Core) Selected() Source {
	return Source(c.selected.Load())
}

// HardReset resets local counter and controller on the next master tick
func (c *Core) HardReset() {
	c.hardReset.Store(true)
}

// ResetDependentClock forces dependent synthesizer relock on the next master tick
func (c *Core) ResetDependentClock() {
	c.dependentReset.Store(true)
}

// ResetEndpoint soft-resets the endpoint peer only, controller is not affected
func (c *Core) ResetEndpoint() {
	log.Info("endpoint soft reset")
	c.endpoint.Reset()
}

// SetLossOfSignal sets upstream link health. It is reported, never acted upon.
func (c *Core) SetLossOfSignal(los bool) {
	if prev := c.lossOfSignal.Swap(los); prev != los {
		if los {
			log.Warning("upstream loss of signal")
		} else {
			log.Info("upstream signal restored")
		}
	}
}

// Tick evaluates one master clock cycle:
// counter advance, source mux and register, controller step and status aggregation.
func (c *Core) Tick() Status {
	selected := Source(c.selected.Load())
	reset := c.hardReset.Swap(false)
	relock := c.dependentReset.Swap(false)

	if reset {
		log.Info("hard reset")
		c.ctrl.Reset()
		// power-on default selection
		c.selected.Store(int32(SourceLocal))
		selected = SourceLocal
	}
	c.tick++

	c.counter.Tick(reset)
	ts := c.sync.Tick(selected, c.counter.Value(), c.endpoint)

	if relock {
		c.ctrl.RequestRelock()
	}
	c.ctrl.Step(selected)

	if selected != c.lastSelected {
		c.provisional = c.sync.Stages()
		c.lastSelected = selected
	}

	st := &Status{
		Tick:         c.tick,
		Timestamp:    ts,
		Provisional:  c.provisional > 0,
		State:        c.ctrl.State(),
		Selected:     selected,
		Source:       c.ctrl.Source(),
		Target:       c.ctrl.Target(),
		Master:       LockStatus{Domain: DomainMaster, Locked: c.master.Locked()},
		Dependent:    LockStatus{Domain: DomainMaster, Locked: c.ctrl.DependentLocked()},
		Endpoint:     c.endpoint.LockStatus(),
		LossOfSignal: c.lossOfSignal.Load(),
	}
	st.Ready = aggregateReady(st)
	if c.provisional > 0 {
		c.provisional--
	}
	c.status.Store(st)
	log.Debugf("tick %d: ts=%d state=%s(%s) ready=%v", st.Tick, st.Timestamp, st.State, st.Target, st.Ready)
	return *st
}

// Status returns status published by the last tick
func (c *Core) Status() Status {
	return *c.status.Load()
}

// Timestamp is the synchronized timestamp of the last tick
func (c *Core) Timestamp() Timestamp {
	return c.status.Load().Timestamp
}

// Ready is aggregate_ready of the last tick
func (c *Core) Ready() bool {
	return c.status.Load().Ready
}

// Counter returns local counter value. Master domain only.
func (c *Core) Counter() Timestamp {
	return c.counter.Value()
}
