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
Package pll simulates clock synthesizers (PLL/MMCM) for the timing core.

A simulated synthesizer disciplines its output phase to the reference with a PI
servo. It reports lock once the servo is locked and the phase offset stayed
within the convergence threshold for a number of consecutive steps.
*/
package pll

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/daqclock/servo"
)

// Config of a simulated synthesizer
type Config struct {
	Name              string        `yaml:"name"`
	Period            time.Duration `yaml:"period"`             // simulated time between two steps
	FreqError         float64       `yaml:"freq_error"`         // free running frequency error against reference, ppb
	PhaseError        int64         `yaml:"phase_error"`        // phase error right after reset, ns
	ConvergeThreshold int64         `yaml:"converge_threshold"` // max phase offset considered converged, ns
	LockCount         int           `yaml:"lock_count"`         // consecutive converged steps to declare lock
}

// DefaultConfig returns config of a synthesizer locking in a dozen steps
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		Period:            time.Second,
		FreqError:         2000,
		PhaseError:        10000,
		ConvergeThreshold: 100,
		LockCount:         3,
	}
}

// Validate Config is sane
func (c *Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("pll %q: period must be positive", c.Name)
	}
	if c.ConvergeThreshold <= 0 {
		return fmt.Errorf("pll %q: converge_threshold must be positive", c.Name)
	}
	if c.LockCount <= 0 {
		return fmt.Errorf("pll %q: lock_count must be positive", c.Name)
	}
	return nil
}

// Sim is a simulated synthesizer.
// Step must be called from a single goroutine, the rest is safe for concurrent use.
type Sim struct {
	cfg   Config
	servo *servo.PiServo

	offset     float64 // ns
	correction float64 // ppb
	localTS    uint64  // ns
	converged  int

	locked    atomic.Bool
	resetReq  atomic.Bool
	hold      atomic.Bool
	relocks   atomic.Int64
	lockSteps atomic.Int64 // steps it took to reacquire the last lock
	steps     int64
}

// NewSim returns an unlocked synthesizer which starts locking on the first Step
func NewSim(cfg Config) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pi := servo.NewPiServo(servo.DefaultServoConfig(), servo.DefaultPiServoCfg(), 0)
	pi.SyncInterval(cfg.Period.Seconds())
	s := &Sim{
		cfg:   cfg,
		servo: pi,
	}
	s.resetReq.Store(true)
	return s, nil
}

// Name of the synthesizer
func (s *Sim) Name() string {
	return s.cfg.Name
}

// RequestRelock resets the synthesizer. Lock is dropped immediately.
func (s *Sim) RequestRelock() {
	s.locked.Store(false)
	s.resetReq.Store(true)
	s.relocks.Add(1)
}

// Locked reports synthesizer lock
func (s *Sim) Locked() bool {
	return s.locked.Load()
}

// Hold keeps the synthesizer from locking, as if the reference clock was missing.
// Releasing the hold restarts locking from scratch.
func (s *Sim) Hold(hold bool) {
	if prev := s.hold.Swap(hold); prev != hold {
		s.locked.Store(false)
		s.resetReq.Store(true)
	}
}

// Relocks returns number of relock requests
func (s *Sim) Relocks() int64 {
	return s.relocks.Load()
}

// LockSteps returns how many steps the last lock acquisition took
func (s *Sim) LockSteps() int64 {
	return s.lockSteps.Load()
}

// Offset returns current simulated phase offset in ns
func (s *Sim) Offset() float64 {
	return s.offset
}

func (s *Sim) reset() {
	s.servo.Reset()
	s.offset = float64(s.cfg.PhaseError)
	s.correction = 0
	s.converged = 0
	s.steps = 0
}

// Step advances the simulation by one period
func (s *Sim) Step() {
	if s.resetReq.Swap(false) {
		s.reset()
	}
	if s.hold.Load() {
		return
	}
	s.steps++
	s.localTS += uint64(s.cfg.Period)
	s.offset += (s.cfg.FreqError - s.correction) * s.cfg.Period.Seconds()

	ppb, state := s.servo.Sample(int64(s.offset), s.localTS)
	s.correction = ppb

	if state == servo.StateLocked && math.Abs(s.offset) <= float64(s.cfg.ConvergeThreshold) {
		s.converged++
	} else {
		s.converged = 0
	}

	locked := s.converged >= s.cfg.LockCount
	if prev := s.locked.Swap(locked); prev != locked {
		if locked {
			s.lockSteps.Store(s.steps)
			log.Infof("%s: locked after %d steps, offset %.1fns, correction %.1fppb", s.cfg.Name, s.steps, s.offset, ppb)
		} else {
			log.Warningf("%s: lost lock, offset %.1fns", s.cfg.Name, s.offset)
		}
	}
	log.Debugf("%s: offset %.1fns, correction %.1fppb, servo %s", s.cfg.Name, s.offset, ppb, state)
}
