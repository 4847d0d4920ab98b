// SPDX-License-Identifier: AGPL-3.0-or-later
// Replicore - spatial event replication core for real-time multiplayer servers
// Copyright (C) 2026 The Replicore Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package replicore

import (
	"sync"
	"time"
)

// Clock abstracts the monotonic time source driving per-layer emission
// frequency gating, so tests can advance time deterministically instead
// of sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FrequencyGate decides whether enough time has elapsed to emit again
// for a layer declaring FrequencyHz updates per second.
type FrequencyGate struct {
	clock Clock
	mu    sync.Mutex
	last  map[gateKey]time.Time
}

type gateKey struct {
	object  ObjectID
	channel Channel
}

// NewFrequencyGate creates a gate using clock as its time source. A nil
// clock defaults to SystemClock.
func NewFrequencyGate(clock Clock) *FrequencyGate {
	if clock == nil {
		clock = SystemClock{}
	}
	return &FrequencyGate{clock: clock, last: make(map[gateKey]time.Time)}
}

// Allow reports whether a new emission for (objectID, layer) is due,
// given layer.FrequencyHz, and if so records now as the last emission
// time. A non-positive FrequencyHz always allows (unthrottled).
func (g *FrequencyGate) Allow(objectID ObjectID, layer Layer) bool {
	if layer.FrequencyHz <= 0 {
		return true
	}
	key := gateKey{object: objectID, channel: layer.Channel}
	now := g.clock.Now()
	interval := time.Duration(float64(time.Second) / layer.FrequencyHz)

	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.last[key]
	if ok && now.Sub(last) < interval {
		return false
	}
	g.last[key] = now
	return true
}
