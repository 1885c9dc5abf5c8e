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
	"encoding/json"
	"errors"
	"io"
	"net"

	log "github.com/sirupsen/logrus"
)

// Reporter is a peer which can be served over monitoring socket
type Reporter interface {
	Snapshot() Status
	Reset()
}

// Server serves peer status over the monitoring protocol
type Server struct {
	peer Reporter
}

// NewServer returns a new monitoring server
func NewServer(peer Reporter) *Server {
	return &Server{peer: peer}
}

// Serve accepts connections until context is done or listener fails
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	log.Infof("serving endpoint monitoring on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("endpoint monitoring request from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		st := s.peer.Snapshot()
		if req.Reset {
			log.Infof("endpoint soft reset requested by %s", conn.RemoteAddr())
			s.peer.Reset()
		}
		b, err := json.Marshal(st)
		if err != nil {
			log.Errorf("marshalling endpoint status: %v", err)
			return
		}
		if _, err := conn.Write(b); err != nil {
			log.Errorf("failed to reply to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}
