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

// Counter is a free-running local timestamp generator.
// It advances one count per master tick regardless of the selected source,
// so switching back to local yields a running value rather than a frozen one.
type Counter struct {
	value Timestamp
}

// Tick advances the counter. Reset takes priority and sets the value to 0.
// Increment wraps at 2^64.
func (c *Counter) Tick(reset bool) {
	if reset {
		c.value = 0
		return
	}
	c.value++
}

// Value returns current counter value
func (c *Counter) Value() Timestamp {
	return c.value
}
