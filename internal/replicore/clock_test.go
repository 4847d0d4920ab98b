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

package replicore_test

import (
	"testing"
	"time"

	"github.com/USA-RedDragon/replicore/internal/replicore"
	"github.com/stretchr/testify/assert"
)

func TestFrequencyGateThrottlesWithinInterval(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	gate := replicore.NewFrequencyGate(clock)
	objID := replicore.NewObjectID()
	layer := replicore.Layer{Channel: 0, FrequencyHz: 10} // 100ms interval

	assert.True(t, gate.Allow(objID, layer), "first emission is always allowed")
	assert.False(t, gate.Allow(objID, layer), "too soon, should be throttled")

	clock.advance(50 * time.Millisecond)
	assert.False(t, gate.Allow(objID, layer), "still within the 100ms interval")

	clock.advance(60 * time.Millisecond)
	assert.True(t, gate.Allow(objID, layer), "110ms elapsed, interval has passed")
}

func TestFrequencyGateUnthrottledWhenFrequencyIsNonPositive(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	gate := replicore.NewFrequencyGate(clock)
	objID := replicore.NewObjectID()
	layer := replicore.Layer{Channel: 0, FrequencyHz: 0}

	assert.True(t, gate.Allow(objID, layer))
	assert.True(t, gate.Allow(objID, layer))
}

func TestFrequencyGateTracksChannelsIndependently(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(0, 0)}
	gate := replicore.NewFrequencyGate(clock)
	objID := replicore.NewObjectID()

	assert.True(t, gate.Allow(objID, replicore.Layer{Channel: 0, FrequencyHz: 10}))
	assert.True(t, gate.Allow(objID, replicore.Layer{Channel: 1, FrequencyHz: 10}), "a different channel has its own gate")
}

func TestSystemClockReturnsRealTime(t *testing.T) {
	t.Parallel()
	before := time.Now()
	got := replicore.SystemClock{}.Now()
	after := time.Now()
	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}
