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
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// JSONStats serves daemon counters as JSON.
// GET / returns all counters, GET /<group> only those under "<group>.",
// for example /quality or /endpoint.
type JSONStats struct {
	*Stats
}

// NewJSONStats returns a new JSONStats
func NewJSONStats() *JSONStats {
	return &JSONStats{Stats: NewStats()}
}

// Start runs http server until context is done
func (s *JSONStats) Start(ctx context.Context, monitoringport int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRequest)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", monitoringport),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutting down json stats server: %v", err)
		}
	}()
	log.Infof("Starting http json server on %s", srv.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// group returns counters under the given group, all of them if group is empty
func (s *JSONStats) group(name string) map[string]int64 {
	counters := s.Get()
	if name == "" {
		return counters
	}
	prefix := name + "."
	for k := range counters {
		if !strings.HasPrefix(k, prefix) {
			delete(counters, k)
		}
	}
	return counters
}

// handleRequest is a handler used for all http monitoring requests
func (s *JSONStats) handleRequest(w http.ResponseWriter, r *http.Request) {
	counters := s.group(strings.Trim(r.URL.Path, "/"))
	if len(counters) == 0 {
		http.Error(w, "no such counter group", http.StatusNotFound)
		return
	}
	js, err := json.Marshal(counters)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}
