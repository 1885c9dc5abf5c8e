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
	"net"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Remote is a peer behind the monitoring socket.
// Poll runs in its own goroutine and plays the peer clock domain,
// failed polls drop readiness.
type Remote struct {
	address string
	timeout time.Duration

	ready     atomic.Bool
	status    atomic.Uint32
	timestamp atomic.Uint64
	los       atomic.Bool
	resetReq  atomic.Bool
	errors    atomic.Int64
}

// NewRemote returns a remote peer for given host:port
func NewRemote(address string, timeout time.Duration) *Remote {
	return &Remote{address: address, timeout: timeout}
}

// Ready is true once the peer converged and the last poll succeeded
func (r *Remote) Ready() bool {
	return r.ready.Load()
}

// Status returns last polled peer status code
func (r *Remote) Status() uint8 {
	return uint8(r.status.Load())
}

// Timestamp returns last polled peer timestamp
func (r *Remote) Timestamp() uint64 {
	return r.timestamp.Load()
}

// LossOfSignal returns last polled loss of signal
func (r *Remote) LossOfSignal() bool {
	return r.los.Load()
}

// Errors returns number of failed polls
func (r *Remote) Errors() int64 {
	return r.errors.Load()
}

// Reset requests peer soft reset with the next poll
func (r *Remote) Reset() {
	r.resetReq.Store(true)
}

// Snapshot returns last polled status
func (r *Remote) Snapshot() Status {
	return Status{
		Ready:        r.Ready(),
		Status:       StatusCode(r.Status()),
		Timestamp:    r.Timestamp(),
		LossOfSignal: r.LossOfSignal(),
	}
}

func (r *Remote) fetch() (*Status, error) {
	conn, err := net.DialTimeout("tcp", r.address, r.timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to endpoint %s: %w", r.address, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(r.timeout)); err != nil {
		return nil, fmt.Errorf("setting connection deadline: %w", err)
	}
	if r.resetReq.Swap(false) {
		if _, err := RequestReset(conn); err != nil {
			// try again next time
			r.resetReq.Store(true)
			return nil, fmt.Errorf("requesting endpoint reset: %w", err)
		}
	}
	return ReadStatus(conn)
}

// Poll reads peer status once and publishes it
func (r *Remote) Poll() error {
	st, err := r.fetch()
	if err != nil {
		r.errors.Add(1)
		if r.ready.Swap(false) {
			log.Warningf("endpoint %s not ready: %v", r.address, err)
		}
		return err
	}
	r.status.Store(uint32(st.Status))
	r.timestamp.Store(st.Timestamp)
	r.los.Store(st.LossOfSignal)
	if prev := r.ready.Swap(st.Ready); prev != st.Ready {
		log.Infof("endpoint %s ready=%v status=%s", r.address, st.Ready, st.Status)
	}
	return nil
}

// Run polls the peer at the given interval until context is done
func (r *Remote) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	poll := func() {
		if err := r.Poll(); err != nil {
			log.Debugf("polling endpoint: %v", err)
		}
	}
	// first run without delay, then at interval
	poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			poll()
		}
	}
}
