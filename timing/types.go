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
Package timing implements the clock source selection and timestamp core.

The core runs in the master clock domain. Every master tick it advances the
local free-running counter, registers either the local counter or the endpoint
peer timestamp into the master domain, steps the clock switch controller and
publishes an aggregate status. Values coming from the endpoint peer live in the
peer's own clock domain and are only sampled, never waited on.
*/
package timing

import (
	"fmt"
	"strings"
)

// Domain identifies a clock regime
type Domain int

// Known clock domains
const (
	DomainLocal Domain = iota
	DomainEndpoint
	DomainMaster
)

var domainToString = map[Domain]string{
	DomainLocal:    "local",
	DomainEndpoint: "endpoint",
	DomainMaster:   "master",
}

func (d Domain) String() string {
	s, found := domainToString[d]
	if !found {
		return "UNSUPPORTED VALUE"
	}
	return s
}

// UnmarshalText parses Domain from a string
func (d *Domain) UnmarshalText(text []byte) error {
	for k, v := range domainToString {
		if v == string(text) {
			*d = k
			return nil
		}
	}
	return fmt.Errorf("domain %q not supported", string(text))
}

// MarshalText returns text representation of Domain
func (d Domain) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Source is a selectable clock and timestamp source
type Source int32

// Supported sources
const (
	SourceLocal Source = iota
	SourceEndpoint
)

var sourceToString = map[Source]string{
	SourceLocal:    "local",
	SourceEndpoint: "endpoint",
}

func (s Source) String() string {
	str, found := sourceToString[s]
	if !found {
		return "UNSUPPORTED VALUE"
	}
	return str
}

// Domain returns the clock domain values of this source are produced in
func (s Source) Domain() Domain {
	if s == SourceEndpoint {
		return DomainEndpoint
	}
	return DomainLocal
}

// ParseSource parses source name, case insensitive
func ParseSource(str string) (Source, error) {
	for s, name := range sourceToString {
		if strings.EqualFold(name, str) {
			return s, nil
		}
	}
	return SourceLocal, fmt.Errorf("source %q not supported", str)
}

// UnmarshalText parses Source from a config string
func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText returns text representation of Source
func (s Source) MarshalText() ([]byte, error) {
	if _, found := sourceToString[s]; !found {
		return nil, fmt.Errorf("source %d not supported", s)
	}
	return []byte(s.String()), nil
}

// Timestamp is a 64-bit monotonic counter value
type Timestamp uint64

// StatusCodeMask limits endpoint status codes to 4 bits
const StatusCodeMask = 0x0f

// LockStatus is lock state of a clock domain
type LockStatus struct {
	Domain Domain `json:"domain"`
	Locked bool   `json:"locked"`
	// Code is a 4-bit peer status code. Always 0 for synthesizers.
	Code uint8 `json:"code"`
}

func (l LockStatus) String() string {
	return fmt.Sprintf("%s locked=%v code=0x%x", l.Domain, l.Locked, l.Code)
}
