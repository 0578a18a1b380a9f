// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import "sync"

// ActiveSet is the double-buffered active-stream-set scheduling
// primitive spec.md §9 retains verbatim rather than flagging as a code
// smell: writers (stream.Write, frame arrival) stage a stream ID into
// the "inactive" set while the scheduler drains the "active" set; the
// two are swapped once per send cycle, so staging under the mutex never
// contends with the (lock-free, single-goroutine) drain.
type ActiveSet struct {
	mu staged

	active []uint64
}

// staged holds the write-side state behind its own mutex, kept separate
// from active so the scheduler's read of active never takes a lock.
type staged struct {
	sync.Mutex
	inactive []uint64
	seen     map[uint64]bool
}

// NewActiveSet constructs an empty double-buffered set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{mu: staged{seen: make(map[uint64]bool)}}
}

// MarkActive stages id into the inactive set, deduplicating against
// anything already staged this cycle.
func (a *ActiveSet) MarkActive(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mu.seen[id] {
		return
	}
	a.mu.seen[id] = true
	a.mu.inactive = append(a.mu.inactive, id)
}

// Swap promotes the staged set to active for the scheduler to iterate,
// and resets the staging area for the next cycle. Call this once at the
// top of each scheduling tick.
func (a *ActiveSet) Swap() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = a.mu.inactive
	a.mu.inactive = nil
	a.mu.seen = make(map[uint64]bool)
}

// Active returns the current active set for this tick's scheduler pass.
// It must only be called between Swap calls (single-goroutine use).
func (a *ActiveSet) Active() []uint64 { return a.active }
