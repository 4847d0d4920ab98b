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
	"sort"
	"sync"

	"github.com/USA-RedDragon/replicore/internal/geom"
)

// DefaultHysteresisFactor is the default boundary hysteresis fraction.
const DefaultHysteresisFactor = 0.05

// zoneManager owns a single object's replication layers and current
// center, and answers channel-membership queries with boundary
// hysteresis to prevent flapping at the boundary.
type zoneManager struct {
	mu         sync.RWMutex
	center     geom.Vec3
	layers     map[Channel]Layer
	// ascending holds layers sorted by radius ascending. The Instance
	// Manager's subscription recomputation walks this order but tests
	// every layer's membership separately; it does not skip the larger
	// zones once the observer is found inside a smaller one.
	ascending  []Layer
	hysteresis float64
}

func newZoneManager(center geom.Vec3, layers []Layer, hysteresis float64) *zoneManager {
	if hysteresis < 0 {
		hysteresis = 0
	}
	m := make(map[Channel]Layer, len(layers))
	ascending := make([]Layer, len(layers))
	copy(ascending, layers)
	sort.Slice(ascending, func(i, j int) bool { return ascending[i].Radius < ascending[j].Radius })
	for _, l := range layers {
		m[l.Channel] = l
	}
	return &zoneManager{center: center, layers: m, ascending: ascending, hysteresis: hysteresis}
}

// layersAscending returns layers ordered by radius ascending.
func (z *zoneManager) layersAscending() []Layer {
	z.mu.RLock()
	defer z.mu.RUnlock()
	out := make([]Layer, len(z.ascending))
	copy(out, z.ascending)
	return out
}

// recenter updates the object's center in O(number of layers) — the
// layer set itself is untouched, only the reference point moves.
func (z *zoneManager) recenter(p geom.Vec3) {
	z.mu.Lock()
	z.center = p
	z.mu.Unlock()
}

func (z *zoneManager) snapshotCenter() geom.Vec3 {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.center
}

func (z *zoneManager) layerList() []Layer {
	z.mu.RLock()
	defer z.mu.RUnlock()
	out := make([]Layer, 0, len(z.layers))
	for _, l := range z.layers {
		out = append(out, l)
	}
	return out
}

func (z *zoneManager) layer(c Channel) (Layer, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	l, ok := z.layers[c]
	return l, ok
}

func (z *zoneManager) maxRadius() float64 {
	z.mu.RLock()
	defer z.mu.RUnlock()
	var max float64
	for _, l := range z.layers {
		if l.Radius > max {
			max = l.Radius
		}
	}
	return max
}

// containsExact reports whether p is inside channel c's zone with no
// hysteresis applied — the closed ball test
// ("A point p is in the zone iff |p - C| ≤ L.radius").
func (z *zoneManager) containsExact(p geom.Vec3, c Channel) (bool, bool) {
	l, ok := z.layer(c)
	if !ok {
		return false, false
	}
	center := z.snapshotCenter()
	return geom.WithinRadius(p, center, l.Radius), true
}

// containsHysteresis applies the boundary hysteresis described
// §4.2: a point previously inside stays inside out to r*(1+h); a
// point previously outside only enters within r*(1-h).
func (z *zoneManager) containsHysteresis(p geom.Vec3, c Channel, wasInside bool) (bool, bool) {
	l, ok := z.layer(c)
	if !ok {
		return false, false
	}
	center := z.snapshotCenter()
	threshold := l.Radius
	if wasInside {
		threshold = l.Radius * (1 + z.hysteresis)
	} else {
		threshold = l.Radius * (1 - z.hysteresis)
	}
	return geom.WithinRadius(p, center, threshold), true
}

// penetration returns (r-d)/r clamped to [0,1]. The Subscription
// Manager does not use it: Classify works from absolute distance bands.
func (z *zoneManager) penetration(p geom.Vec3, c Channel) float64 {
	l, ok := z.layer(c)
	if !ok {
		return 0
	}
	if l.Radius <= 0 {
		return 0
	}
	center := z.snapshotCenter()
	d := geom.Distance(p, center)
	v := (l.Radius - d) / l.Radius
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
