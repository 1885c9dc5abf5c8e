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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/daqclock/endpoint"
	"github.com/facebook/daqclock/quality"
	"github.com/facebook/daqclock/timing"
)

// StatusResponse is what control API returns on /status
type StatusResponse struct {
	Status   timing.Status   `json:"status"`
	Error    string          `json:"error,omitempty"`
	Endpoint endpoint.Status `json:"endpoint"`
	Quality  *quality.Report `json:"quality,omitempty"`
}

// StatusResponse returns current status of the daemon
func (s *Daemon) StatusResponse() *StatusResponse {
	st := s.core.Status()
	r := &StatusResponse{
		Status:   st,
		Endpoint: s.Endpoint(),
		Quality:  s.Quality(),
	}
	if err := st.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

// ControlHandler returns http handler of the control API.
// Commands are accepted immediately and applied on the next master tick.
func (s *Daemon) ControlHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /select", s.handleSelect)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /reset/endpoint", s.handleResetEndpoint)
	mux.HandleFunc("POST /reset/dependent", s.handleResetDependent)
	return mux
}

func (s *Daemon) handleStatus(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.StatusResponse())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

func (s *Daemon) handleSelect(w http.ResponseWriter, r *http.Request) {
	src, err := timing.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.core.Select(src); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.stats.Inc(EventControlSelect)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Daemon) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.core.HardReset()
	s.stats.Inc(EventControlReset)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Daemon) handleResetEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.core.ResetEndpoint()
	s.stats.Inc(EventControlResetEndpoint)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Daemon) handleResetDependent(w http.ResponseWriter, _ *http.Request) {
	s.core.ResetDependentClock()
	s.stats.Inc(EventControlResetDependent)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Daemon) runControl(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.ControlPort),
		Handler:           s.ControlHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutting down control server: %v", err)
		}
	}()
	log.Infof("Starting control api server on %s", srv.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
