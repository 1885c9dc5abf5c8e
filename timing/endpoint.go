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

package timing

//go:generate mockgen -source=endpoint.go -destination=mock_peer.go -package=timing

// Peer is the external timing endpoint.
// All values are produced in the peer's own clock domain.
// Implementations must be safe to read from the master domain goroutine
// while the peer updates them from its own.
type Peer interface {
	// Ready is true once peer timing recovery has converged
	Ready() bool
	// Status is a peer internal 4-bit health code
	Status() uint8
	// Timestamp is peer derived time. Undefined while not Ready.
	Timestamp() uint64
	// Reset soft-resets the peer only
	Reset()
}

// EndpointSource is a typed view over the peer boundary.
// It performs no gating: a timestamp sampled while the peer is not ready is
// returned as is and must be treated as untrustworthy by consumers.
type EndpointSource struct {
	peer Peer
}

// NewEndpointSource wraps a peer
func NewEndpointSource(peer Peer) *EndpointSource {
	return &EndpointSource{peer: peer}
}

// Ready reports peer readiness
func (e *EndpointSource) Ready() bool {
	return e.peer.Ready()
}

// Status returns peer status code masked to 4 bits
func (e *EndpointSource) Status() uint8 {
	return e.peer.Status() & StatusCodeMask
}

// Timestamp samples current peer timestamp
func (e *EndpointSource) Timestamp() Timestamp {
	return Timestamp(e.peer.Timestamp())
}

// Reset soft-resets the peer
func (e *EndpointSource) Reset() {
	e.peer.Reset()
}

// LockStatus returns endpoint domain lock status
func (e *EndpointSource) LockStatus() LockStatus {
	return LockStatus{
		Domain: DomainEndpoint,
		Locked: e.Ready(),
		Code:   e.Status(),
	}
}
