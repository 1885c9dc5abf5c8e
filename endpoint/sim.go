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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// SimConfig configures the simulated peer
type SimConfig struct {
	ConvergeTicks    int    `yaml:"converge_ticks"`    // peer ticks until ready
	Increment        uint64 `yaml:"increment"`         // timestamp increment per peer tick
	InitialTimestamp uint64 `yaml:"initial_timestamp"` // timestamp once ready
}

// DefaultSimConfig returns default simulated peer config
func DefaultSimConfig() SimConfig {
	return SimConfig{
		ConvergeTicks: 14,
		Increment:     1,
	}
}

// Validate SimConfig is sane
func (c *SimConfig) Validate() error {
	if c.ConvergeTicks <= 0 {
		return fmt.Errorf("converge_ticks must be positive")
	}
	if c.Increment == 0 {
		return fmt.Errorf("increment must be positive")
	}
	return nil
}

// Sim is a simulated timing endpoint.
// Tick runs in the peer clock domain, everything it publishes is readable from
// any goroutine. Commands (reset, error injection) are applied on the next Tick.
type Sim struct {
	cfg SimConfig

	// peer domain only
	progress int

	ready     atomic.Bool
	status    atomic.Uint32
	timestamp atomic.Uint64
	los       atomic.Bool

	resetReq atomic.Bool
	errCode  atomic.Uint32 // injected error, 0 if none
	ticks    atomic.Uint64
}

// NewSim returns peer in reset state
func NewSim(cfg SimConfig) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sim{cfg: cfg}, nil
}

// Ready is true once the peer converged
func (s *Sim) Ready() bool {
	return s.ready.Load()
}

// Status returns peer status code
func (s *Sim) Status() uint8 {
	return uint8(s.status.Load())
}

// Timestamp returns peer timestamp. Undefined while not ready.
func (s *Sim) Timestamp() uint64 {
	return s.timestamp.Load()
}

// LossOfSignal reports upstream link loss of signal
func (s *Sim) LossOfSignal() bool {
	return s.los.Load()
}

// Ticks returns number of peer domain ticks
func (s *Sim) Ticks() uint64 {
	return s.ticks.Load()
}

// Reset requests peer soft reset
func (s *Sim) Reset() {
	s.resetReq.Store(true)
}

// SetLossOfSignal simulates loss of the upstream link.
// Peer drops readiness and waits for signal again.
func (s *Sim) SetLossOfSignal(los bool) {
	s.los.Store(los)
}

// InjectError forces an error status until the next reset
func (s *Sim) InjectError(code StatusCode) error {
	if !code.IsError() {
		return fmt.Errorf("%s (0x%x) is not an error code", code, uint8(code))
	}
	s.errCode.Store(uint32(code))
	return nil
}

// Snapshot returns current peer status
func (s *Sim) Snapshot() Status {
	return Status{
		Ready:        s.Ready(),
		Status:       StatusCode(s.Status()),
		Timestamp:    s.Timestamp(),
		LossOfSignal: s.LossOfSignal(),
	}
}

func (s *Sim) setStatus(code StatusCode) {
	if prev := StatusCode(s.status.Swap(uint32(code))); prev != code {
		log.Debugf("endpoint status %s -> %s", prev, code)
	}
}

func (s *Sim) setReady(ready bool) {
	if prev := s.ready.Swap(ready); prev != ready {
		if ready {
			log.Infof("endpoint ready, timestamp %d", s.timestamp.Load())
		} else {
			log.Warningf("endpoint not ready, status %s", StatusCode(s.status.Load()))
		}
	}
}

// Tick advances the peer by one peer clock cycle
func (s *Sim) Tick() {
	s.ticks.Add(1)
	if s.resetReq.Swap(false) {
		s.progress = 0
		s.errCode.Store(0)
		s.timestamp.Store(0)
		s.setStatus(StatusReset)
		s.setReady(false)
		return
	}
	if code := StatusCode(s.errCode.Load()); code != 0 {
		s.setStatus(code)
		s.setReady(false)
		return
	}
	if s.los.Load() {
		s.progress = 0
		s.setStatus(StatusWaitSignal)
		s.setReady(false)
		return
	}
	if s.ready.Load() {
		s.timestamp.Add(s.cfg.Increment)
		return
	}
	s.progress++
	if s.progress >= s.cfg.ConvergeTicks {
		s.timestamp.Store(s.cfg.InitialTimestamp)
		s.setStatus(StatusReady)
		s.setReady(true)
		return
	}
	stage := (s.progress - 1) * len(waitStages) / s.cfg.ConvergeTicks
	s.setStatus(waitStages[stage])
}

// Run ticks the peer at the given interval until context is done
func (s *Sim) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}
