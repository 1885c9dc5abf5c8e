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
	"time"

	systemd "github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/daqclock/daemon"
)

// notifyReady tells systemd the daemon is up. Outside of a systemd unit it does nothing.
func notifyReady() bool {
	sent, err := systemd.SdNotify(false, systemd.SdNotifyReady)
	if err != nil {
		log.Warningf("Failed to notify systemd: %v", err)
		return false
	}
	if sent {
		log.Info("Notified systemd we are ready")
	}
	return sent
}

// runWatchdog keeps systemd watchdog happy while the master clock domain is ticking
func runWatchdog(ctx context.Context, d *daemon.Daemon) {
	interval, err := systemd.SdWatchdogEnabled(false)
	if err != nil {
		log.Warningf("Failed to check systemd watchdog: %v", err)
		return
	}
	if interval == 0 {
		return
	}
	log.Infof("systemd watchdog enabled, pinging every %v", interval/2)
	watchdog(ctx, interval/2, func() uint64 { return d.Core().Status().Tick }, func() {
		if _, err := systemd.SdNotify(false, systemd.SdNotifyWatchdog); err != nil {
			log.Warningf("Failed to ping systemd watchdog: %v", err)
		}
	})
}

// watchdog calls ping every interval unless the tick has not moved since the previous check
func watchdog(ctx context.Context, interval time.Duration, tick func() uint64, ping func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := tick()
			if cur == last {
				log.Warningf("master clock domain stalled at tick %d", cur)
				continue
			}
			last = cur
			ping()
		}
	}
}
