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

package servo

import (
	"math"

	log "github.com/sirupsen/logrus"
)

const (
	kpScale = 0.7
	kiScale = 0.3

	maxKpNormMax = 1.0
	maxKiNormMax = 2.0

	freqEstMargin = 0.001
)

// PiServoCfg is an integral servo config
type PiServoCfg struct {
	PiKpScale    float64
	PiKpExponent float64
	PiKpNormMax  float64
	PiKiScale    float64
	PiKiExponent float64
	PiKiNormMax  float64
}

// PiServo is a proportional-integral servo.
// Input is the phase offset of the synthesizer output against its reference in ns,
// output is the frequency correction in ppb.
type PiServo struct {
	Servo
	offset   [2]int64
	local    [2]uint64
	drift    float64
	initFreq float64
	kp       float64
	ki       float64
	lastFreq float64
	count    int
	cfg      *PiServoCfg
}

// SetMaxFreq is to adjust frequency range supported by the synthesizer
func (s *PiServo) SetMaxFreq(freq float64) {
	s.maxFreq = freq
}

// LastFreq returns last calculated frequency correction
func (s *PiServo) LastFreq() float64 {
	return s.lastFreq
}

// Reset drops collected samples so the servo starts over, as after a new reference is applied
func (s *PiServo) Reset() {
	s.count = 0
	s.drift = s.initFreq
	s.lastFreq = s.initFreq
	s.offset = [2]int64{}
	s.local = [2]uint64{}
}

func (s *PiServo) clamp(ppb float64) float64 {
	if ppb < -s.maxFreq {
		return -s.maxFreq
	}
	if ppb > s.maxFreq {
		return s.maxFreq
	}
	return ppb
}

// Sample function to calculate frequency based on the offset.
// localTs is the local time of the measurement in ns.
func (s *PiServo) Sample(offset int64, localTs uint64) (float64, State) {
	var kiTerm, freqEstInterval, localDiff float64
	state := StateInit
	ppb := s.lastFreq
	sOffset := offset
	if sOffset < 0 {
		sOffset = -sOffset
	}

	switch s.count {
	case 0:
		s.offset[0] = offset
		s.local[0] = localTs
		s.count = 1
	case 1:
		s.offset[1] = offset
		s.local[1] = localTs

		if s.local[0] >= s.local[1] {
			s.count = 0
			break
		}

		localDiff = float64(s.local[1]-s.local[0]) / math.Pow10(9)
		localDiff += localDiff * freqEstMargin
		freqEstInterval = 0.016 / s.ki
		if freqEstInterval > 1000.0 {
			freqEstInterval = 1000.0
		}
		if localDiff < freqEstInterval {
			log.Warningf("servo Sample is called too often, not enough time passed since first sample")
			break
		}

		// adjust drift by the measured frequency offset
		s.drift += (math.Pow10(9) - s.drift) * float64(s.offset[1]-s.offset[0]) /
			float64(s.local[1]-s.local[0])
		s.drift = s.clamp(s.drift)

		if (s.FirstUpdate && s.FirstStepThreshold > 0 &&
			s.FirstStepThreshold < sOffset) ||
			(s.StepThreshold > 0 && s.StepThreshold < sOffset) {
			state = StateJump
		} else {
			state = StateLocked
		}
		ppb = s.drift
		s.count = 2
	case 2:
		// offset over the step threshold restarts drift estimation
		if s.StepThreshold != 0 && s.StepThreshold < sOffset {
			s.count = 0
			state = StateInit
			break
		}
		state = StateLocked
		kiTerm = s.ki * float64(offset)
		ppb = s.kp*float64(offset) + s.drift + kiTerm
		if ppb < -s.maxFreq || ppb > s.maxFreq {
			ppb = s.clamp(ppb)
		} else {
			s.drift += kiTerm
		}
	}
	s.lastFreq = ppb
	return ppb, state
}

// SyncInterval informs the servo about the sampling interval in seconds
func (s *PiServo) SyncInterval(interval float64) {
	s.kp = s.cfg.PiKpScale * math.Pow(interval, s.cfg.PiKpExponent)
	if s.kp > s.cfg.PiKpNormMax/interval {
		s.kp = s.cfg.PiKpNormMax / interval
	}

	s.ki = s.cfg.PiKiScale * math.Pow(interval, s.cfg.PiKiExponent)
	if s.ki > s.cfg.PiKiNormMax/interval {
		s.ki = s.cfg.PiKiNormMax / interval
	}
}

// NewPiServo to create servo structure
func NewPiServo(s Servo, cfg *PiServoCfg, freq float64) *PiServo {
	pi := &PiServo{
		Servo:    s,
		cfg:      cfg,
		initFreq: freq,
	}
	pi.Reset()
	return pi
}

// DefaultPiServoCfg to create default pi servo config
func DefaultPiServoCfg() *PiServoCfg {
	return &PiServoCfg{
		PiKpScale:    kpScale,
		PiKpExponent: 0.0,
		PiKpNormMax:  maxKpNormMax,
		PiKiScale:    kiScale,
		PiKiExponent: 0.0,
		PiKiNormMax:  maxKiNormMax,
	}
}
