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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/facebook/daqclock/timing"
)

// Reset kinds understood by control API
const (
	ResetHard      = "hard"
	ResetEndpoint  = "endpoint"
	ResetDependent = "dependent"
)

var resetPaths = map[string]string{
	ResetHard:      "/reset",
	ResetEndpoint:  "/reset/endpoint",
	ResetDependent: "/reset/dependent",
}

// Client talks to the daemon control API
type Client struct {
	url  string
	http *http.Client
}

// NewClient returns control API client for given base url, like http://localhost:2958
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		url:  baseURL,
		http: &http.Client{Timeout: timeout},
	}
}

// Status fetches daemon status
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.http.Get(c.url + "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status: %s: %s", resp.Status, b)
	}
	r := &StatusResponse{}
	err = json.Unmarshal(b, r)
	return r, err
}

func (c *Client) post(path string, query url.Values) error {
	u := c.url + path
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", u, query.Encode())
	}
	resp, err := c.http.Post(u, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s: %s", path, resp.Status, b)
	}
	return nil
}

// Select commands clock and timestamp source
func (c *Client) Select(src timing.Source) error {
	return c.post("/select", url.Values{"source": []string{src.String()}})
}

// Reset sends one of the reset commands
func (c *Client) Reset(kind string) error {
	path, found := resetPaths[kind]
	if !found {
		return fmt.Errorf("reset %q not supported", kind)
	}
	return c.post(path, nil)
}
