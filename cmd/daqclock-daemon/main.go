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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/daqclock/daemon"
	"github.com/facebook/daqclock/quality"
	"github.com/facebook/daqclock/timing"
)

// handleSighup watches for SIGHUP and reloads the config
func handleSighup(ctx context.Context, cfgPath string, d *daemon.Daemon) {
	sigchan := make(chan os.Signal, 10)
	signal.Notify(sigchan, unix.SIGHUP)
	defer signal.Stop(sigchan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigchan:
			if cfgPath == "" {
				log.Warning("SIGHUP received, but no config file to reload")
				continue
			}
			log.Info("SIGHUP received, reloading config")
			cfg, err := daemon.ReadConfig(cfgPath)
			if err != nil {
				log.Errorf("Failed to reload config: %v. Moving on", err)
				continue
			}
			if err := d.Reload(cfg); err != nil {
				log.Errorf("Failed to apply config: %v. Moving on", err)
			}
		}
	}
}

func main() {
	var (
		cfg            = daemon.DefaultConfig()
		err            error
		cfgPath        string
		source         string
		csvLog         bool
		csvPath        string
		verbose        bool
		monitoringPort int
		promPort       int
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "daqclock daemon\n")
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\nFlags:\n", quality.MathHelp)
		flag.PrintDefaults()
	}

	flag.StringVar(&source, "source", timing.SourceLocal.String(), "Initial clock and timestamp source: local or endpoint")
	flag.DurationVar(&cfg.MasterInterval, "i", cfg.MasterInterval, "Master clock tick interval")
	flag.IntVar(&cfg.Stages, "stages", cfg.Stages, "Number of synchronizer stages")
	flag.IntVar(&cfg.ControlPort, "controlport", cfg.ControlPort, "Port to run control API on. 0 disables it")
	flag.IntVar(&monitoringPort, "monitoringport", 21040, "Port to run JSON monitoring server on")
	flag.IntVar(&promPort, "promport", 0, "Port to run prometheus exporter on. 0 disables it")
	flag.IntVar(&cfg.RingSize, "buffer", cfg.RingSize, "Size of quality window in master ticks")
	flag.StringVar(&cfg.Quality.Availability, "availability", cfg.Quality.Availability, "Math expression for availability")
	flag.StringVar(&cfg.Quality.Class, "class", cfg.Quality.Class, "Math expression for clock class")
	flag.DurationVar(&cfg.QualityInterval, "I", cfg.QualityInterval, "Interval at which quality is evaluated")
	flag.DurationVar(&cfg.SysStatsInterval, "sysstats", cfg.SysStatsInterval, "Interval at which process stats are collected. 0 disables it")
	flag.StringVar(&cfg.Endpoint.Mode, "endpoint", cfg.Endpoint.Mode, "Endpoint peer mode: sim or remote")
	flag.StringVar(&cfg.Endpoint.Address, "endpointaddress", cfg.Endpoint.Address, "Remote endpoint monitoring address")
	flag.DurationVar(&cfg.Endpoint.Interval, "endpointinterval", cfg.Endpoint.Interval, "Endpoint peer tick or poll interval")
	flag.IntVar(&cfg.Endpoint.ServePort, "endpointserve", cfg.Endpoint.ServePort, "Serve simulated endpoint monitoring on this port. 0 disables it")

	flag.StringVar(&cfgPath, "cfg", "", "Path to config")
	flag.BoolVar(&csvLog, "csvlog", true, "Log controller transitions as CSV to log")
	flag.StringVar(&csvPath, "csvpath", "", "write CSV log into this file")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")

	flag.Parse()

	log.SetReportCaller(true)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if csvPath != "" && !csvLog {
		log.Fatalf("'csvpath' flag requires 'csvlog' flag")
	}
	if cfg.Source, err = timing.ParseSource(source); err != nil {
		log.Fatal(err)
	}
	if cfgPath != "" {
		log.Warningf("using config from %s, flag values are ignored", cfgPath)
		cfg, err = daemon.ReadConfig(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.EvalAndValidate(); err != nil {
		log.Fatal(err)
	}
	log.Debugf("Config: %+v", *cfg)

	// set up transition logging
	w := log.StandardLogger().Writer()
	defer w.Close()
	var l daemon.Logger = daemon.NewDummyLogger(w)
	if csvLog {
		csvW := io.Writer(w)
		if csvPath != "" {
			f, err := os.Create(csvPath)
			if err != nil {
				log.Fatal(err)
			}
			defer f.Close()
			// write both to stderr and file
			csvW = io.MultiWriter(w, f)
		}
		l = daemon.NewCSVLogger(csvW)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
	defer cancel()

	stats := daemon.NewJSONStats()
	go func() {
		if err := stats.Start(ctx, monitoringPort); err != nil {
			log.Fatalf("Failed to start json stats server: %v", err)
		}
	}()
	if promPort != 0 {
		exporter := daemon.NewPrometheusExporter(stats.Stats, 10*time.Second)
		go exporter.Start(promPort)
	}
	s, err := daemon.New(cfg, stats, l)
	if err != nil {
		log.Fatal(err)
	}

	go handleSighup(ctx, cfgPath, s)
	go runWatchdog(ctx, s)
	notifyReady()
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	log.Info("Shutting down daqclock-daemon")
}
