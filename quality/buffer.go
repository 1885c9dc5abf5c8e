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

package quality

import (
	"container/ring"
	"sync"
)

// RingBuffer is a fixed size window of data points, safe for concurrent use
type RingBuffer struct {
	sync.Mutex

	size   int
	points *ring.Ring
}

// NewRingBuffer returns empty RingBuffer of given size
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		size:   size,
		points: ring.New(size),
	}
}

// Size returns capacity
func (rb *RingBuffer) Size() int {
	return rb.size
}

// Write a data point, overwriting the oldest one when full
func (rb *RingBuffer) Write(d *DataPoint) {
	rb.Lock()
	defer rb.Unlock()
	rb.points.Value = d
	rb.points = rb.points.Next()
}

// Read returns up to n latest data points, newest first
func (rb *RingBuffer) Read(n int) []*DataPoint {
	rb.Lock()
	defer rb.Unlock()
	result := []*DataPoint{}
	r := rb.points.Prev()
	for j := 0; j < n && j < rb.size; j++ {
		if r.Value == nil {
			break
		}
		result = append(result, r.Value.(*DataPoint))
		r = r.Prev()
	}
	return result
}

// Len returns number of data points stored
func (rb *RingBuffer) Len() int {
	return len(rb.Read(rb.size))
}

// Reset drops all data points
func (rb *RingBuffer) Reset() {
	rb.Lock()
	defer rb.Unlock()
	rb.points = ring.New(rb.size)
}
