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
Package daemon runs the timing core: it drives the master clock domain tick,
the endpoint peer domain, window quality evaluation and exposes counters and
a control API over HTTP.
*/
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/daqclock/endpoint"
	"github.com/facebook/daqclock/pll"
	"github.com/facebook/daqclock/quality"
	"github.com/facebook/daqclock/timing"
)

// peer is the endpoint as the daemon sees it
type peer interface {
	timing.Peer
	LossOfSignal() bool
	Snapshot() endpoint.Status
}

// Daemon owns the core and everything around it
type Daemon struct {
	cfg   *Config
	stats StatsServer
	l     Logger

	core      *timing.Core
	master    *pll.Sim
	dependent *pll.Sim
	peer      peer
	sim       *endpoint.Sim    // set in sim mode
	remote    *endpoint.Remote // set in remote mode

	window *quality.RingBuffer
	math   atomic.Pointer[quality.Math]
	report atomic.Pointer[quality.Report]

	sysstats *SysStats // nil when process stats are disabled

	// master domain only
	pending   []timing.Transition
	lastReady bool
}

// New creates new daemon from evaluated config
func New(cfg *Config, stats StatsServer, l Logger) (*Daemon, error) {
	master, err := pll.NewSim(cfg.Master)
	if err != nil {
		return nil, fmt.Errorf("creating master synthesizer: %w", err)
	}
	dependent, err := pll.NewSim(cfg.Dependent)
	if err != nil {
		return nil, fmt.Errorf("creating dependent synthesizer: %w", err)
	}
	s := &Daemon{
		cfg:       cfg,
		stats:     stats,
		l:         l,
		master:    master,
		dependent: dependent,
		window:    quality.NewRingBuffer(cfg.RingSize),
	}
	switch cfg.Endpoint.Mode {
	case EndpointModeSim:
		s.sim, err = endpoint.NewSim(cfg.Endpoint.Sim)
		if err != nil {
			return nil, fmt.Errorf("creating endpoint simulator: %w", err)
		}
		s.peer = s.sim
	case EndpointModeRemote:
		s.remote = endpoint.NewRemote(cfg.Endpoint.Address, cfg.Endpoint.PollTimeout)
		s.peer = s.remote
	default:
		return nil, fmt.Errorf("endpoint mode %q not supported", cfg.Endpoint.Mode)
	}
	s.core, err = timing.NewCore(master, dependent, s.peer, cfg.Stages)
	if err != nil {
		return nil, fmt.Errorf("creating core: %w", err)
	}
	s.core.SetObserver(func(t timing.Transition) {
		s.pending = append(s.pending, t)
	})
	if err := s.core.Select(cfg.Source); err != nil {
		return nil, err
	}
	m := cfg.Quality
	s.math.Store(&m)

	if cfg.SysStatsInterval > 0 {
		if s.sysstats, err = NewSysStats(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Core returns the timing core
func (s *Daemon) Core() *timing.Core {
	return s.core
}

// Endpoint returns current peer status
func (s *Daemon) Endpoint() endpoint.Status {
	return s.peer.Snapshot()
}

// Quality returns the last quality report, nil if not evaluated yet
func (s *Daemon) Quality() *quality.Report {
	return s.report.Load()
}

// Reload applies source selection and quality expressions from a re-read config
func (s *Daemon) Reload(cfg *Config) error {
	if err := cfg.Quality.Prepare(); err != nil {
		return err
	}
	if err := s.core.Select(cfg.Source); err != nil {
		return err
	}
	m := cfg.Quality
	s.math.Store(&m)
	s.stats.Inc(EventReload)
	return nil
}

// tick runs one master clock cycle
func (s *Daemon) tick() timing.Status {
	s.master.Step()
	s.dependent.Step()
	s.core.SetLossOfSignal(s.peer.LossOfSignal())

	st := s.core.Tick()

	for _, t := range s.pending {
		s.stats.Inc(EventTransition)
		sample := &LogSample{
			Tick:      st.Tick,
			From:      t.From,
			To:        t.To,
			Source:    t.Source,
			Target:    t.Target,
			Timestamp: st.Timestamp,
			Ready:     st.Ready,
		}
		if err := s.l.Log(sample); err != nil {
			log.Errorf("failed to log transition: %v", err)
			s.stats.Inc(EventLogError)
		}
	}
	s.pending = s.pending[:0]

	if s.lastReady && !st.Ready {
		log.Warningf("timestamp not ready: %v", st.Err())
		s.stats.Inc(EventReadyLost)
	}
	s.lastReady = st.Ready

	s.window.Write(quality.NewDataPoint(&st))
	s.stats.PublishStatus(&st)
	s.stats.PublishRelocks(s.master.Relocks(), s.dependent.Relocks())
	return st
}

// evaluateQuality runs quality expressions over the window
func (s *Daemon) evaluateQuality() (*quality.Report, error) {
	points := s.window.Read(s.cfg.RingSize)
	r, err := s.math.Load().Evaluate(points)
	if err != nil {
		return nil, err
	}
	if prev := s.report.Swap(r); prev == nil || prev.Class != r.Class {
		log.Infof("clock class %s, availability %.2f%% over %d ticks", r.Class, r.Availability*100, r.Samples)
	}
	s.stats.PublishQuality(r)
	if s.remote != nil {
		s.stats.PublishPollErrors(s.remote.Errors())
	}
	return r, nil
}

func (s *Daemon) runMaster(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.MasterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Daemon) runPeer(ctx context.Context) error {
	if s.remote != nil {
		return s.remote.Run(ctx, s.cfg.Endpoint.Interval)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.sim.Run(ctx, s.cfg.Endpoint.Interval)
	})
	if s.cfg.Endpoint.ServePort != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Endpoint.ServePort))
		if err != nil {
			return fmt.Errorf("listening for endpoint monitoring: %w", err)
		}
		eg.Go(func() error {
			return endpoint.NewServer(s.sim).Serve(ctx, ln)
		})
	}
	return eg.Wait()
}

func (s *Daemon) runQuality(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.QualityInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.evaluateQuality(); err != nil {
				if errors.Is(err, quality.ErrNotEnoughData) {
					log.Warning(err)
					continue
				}
				log.Errorf("evaluating quality: %v", err)
				s.stats.Inc(EventQualityError)
			}
		}
	}
}

func (s *Daemon) runSysStats(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SysStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.stats.PublishProcess(s.sysstats.Collect())
		}
	}
}

// Run a daemon until context is cancelled
func (s *Daemon) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.runPeer(ctx) })
	eg.Go(func() error { return s.runMaster(ctx) })
	eg.Go(func() error { return s.runQuality(ctx) })
	if s.sysstats != nil {
		eg.Go(func() error { return s.runSysStats(ctx) })
	}
	if s.cfg.ControlPort != 0 {
		eg.Go(func() error { return s.runControl(ctx) })
	}
	return eg.Wait()
}
