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

package daemon

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/daqclock/endpoint"
	"github.com/facebook/daqclock/pll"
	"github.com/facebook/daqclock/quality"
	"github.com/facebook/daqclock/timing"
)

// Endpoint peer modes
const (
	EndpointModeSim    = "sim"
	EndpointModeRemote = "remote"
)

// EndpointConfig describes how to reach the timing endpoint peer
type EndpointConfig struct {
	Mode        string             `yaml:"mode"`         // sim or remote
	Address     string             `yaml:"address"`      // host:port of remote peer monitoring socket
	Interval    time.Duration      `yaml:"interval"`     // peer domain tick (sim) or poll (remote) interval
	PollTimeout time.Duration      `yaml:"poll_timeout"` // remote peer connect and read timeout
	ServePort   int                `yaml:"serve_port"`   // serve simulated peer on this port, 0 disables
	Sim         endpoint.SimConfig `yaml:"sim"`
}

// Config represents configuration we expect to read from file
type Config struct {
	Source           timing.Source  `yaml:"source"`            // initial source selection
	MasterInterval   time.Duration  `yaml:"master_interval"`   // master clock tick
	Stages           int            `yaml:"stages"`            // synchronizer depth
	ControlPort      int            `yaml:"control_port"`      // control API port, 0 disables
	RingSize         int            `yaml:"ring_size"`         // quality window, in master ticks
	QualityInterval  time.Duration  `yaml:"quality_interval"`  // how often quality is evaluated
	SysStatsInterval time.Duration  `yaml:"sysstats_interval"` // 0 disables process stats
	Quality          quality.Math   `yaml:"quality"`
	Master           pll.Config     `yaml:"master"`
	Dependent        pll.Config     `yaml:"dependent"`
	Endpoint         EndpointConfig `yaml:"endpoint"`
}

// DefaultConfig returns config of a daemon with simulated peer and synthesizers
func DefaultConfig() *Config {
	return &Config{
		Source:           timing.SourceLocal,
		MasterInterval:   10 * time.Millisecond,
		Stages:           1,
		ControlPort:      2958,
		RingSize:         1000,
		QualityInterval:  time.Second,
		SysStatsInterval: time.Minute,
		Quality:          quality.DefaultMath(),
		Master:           pll.DefaultConfig("master"),
		Dependent:        pll.DefaultConfig("dependent"),
		Endpoint: EndpointConfig{
			Mode:        EndpointModeSim,
			Address:     fmt.Sprintf("localhost:%d", endpoint.MonitoringPort),
			Interval:    10 * time.Millisecond,
			PollTimeout: 100 * time.Millisecond,
			Sim:         endpoint.DefaultSimConfig(),
		},
	}
}

// EvalAndValidate makes sure config is valid and evaluates expressions for further use.
func (c *Config) EvalAndValidate() error {
	if _, err := c.Source.MarshalText(); err != nil {
		return fmt.Errorf("bad config: %w", err)
	}
	if c.MasterInterval <= 0 || c.MasterInterval > time.Minute {
		return fmt.Errorf("bad config: 'master_interval' must be between 0 and 1 minute")
	}
	if c.Stages <= 0 {
		return fmt.Errorf("bad config: 'stages' must be >0")
	}
	if c.RingSize <= 0 {
		return fmt.Errorf("bad config: 'ring_size' must be >0")
	}
	if c.QualityInterval <= 0 {
		return fmt.Errorf("bad config: 'quality_interval' must be positive")
	}
	if c.SysStatsInterval < 0 {
		return fmt.Errorf("bad config: 'sysstats_interval' must not be negative")
	}
	if err := c.Master.Validate(); err != nil {
		return fmt.Errorf("bad config: %w", err)
	}
	if err := c.Dependent.Validate(); err != nil {
		return fmt.Errorf("bad config: %w", err)
	}
	if c.Endpoint.Interval <= 0 {
		return fmt.Errorf("bad config: 'endpoint.interval' must be positive")
	}
	switch c.Endpoint.Mode {
	case EndpointModeSim:
		if err := c.Endpoint.Sim.Validate(); err != nil {
			return fmt.Errorf("bad config: %w", err)
		}
	case EndpointModeRemote:
		if c.Endpoint.Address == "" {
			return fmt.Errorf("bad config: 'endpoint.address' must be specified")
		}
		if c.Endpoint.PollTimeout <= 0 {
			return fmt.Errorf("bad config: 'endpoint.poll_timeout' must be positive")
		}
	default:
		return fmt.Errorf("bad config: 'endpoint.mode' %q not supported", c.Endpoint.Mode)
	}
	return c.Quality.Prepare()
}

// ReadConfig reads config and unmarshals it from yaml into Config.
// Values missing from the file are taken from DefaultConfig.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	err = yaml.UnmarshalStrict(data, c)
	return c, err
}
