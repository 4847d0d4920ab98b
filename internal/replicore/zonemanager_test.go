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
	"testing"

	"github.com/USA-RedDragon/replicore/internal/geom"
)

func TestZoneManagerLayersAscending(t *testing.T) {
	t.Parallel()

	layers := []Layer{
		{Channel: 2, Radius: 200},
		{Channel: 0, Radius: 50},
		{Channel: 1, Radius: 100},
	}
	z := newZoneManager(geom.Vec3{}, layers, 0)
	ascending := z.layersAscending()
	if len(ascending) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(ascending))
	}
	for i := 1; i < len(ascending); i++ {
		if ascending[i].Radius < ascending[i-1].Radius {
			t.Fatalf("layers not ascending: %v", ascending)
		}
	}
}

func TestZoneManagerContainsExactClosedBoundary(t *testing.T) {
	t.Parallel()

	z := newZoneManager(geom.Vec3{}, []Layer{{Channel: 0, Radius: 50}}, 0)

	in, ok := z.containsExact(geom.Vec3{X: 50}, 0)
	if !ok || !in {
		t.Fatalf("point exactly on the boundary should count as inside")
	}
	in, ok = z.containsExact(geom.Vec3{X: 50.0001}, 0)
	if !ok || in {
		t.Fatalf("point just past the boundary should count as outside")
	}
	_, ok = z.containsExact(geom.Vec3{}, 3)
	if ok {
		t.Fatalf("channel 3 was never declared")
	}
}

func TestZoneManagerContainsHysteresisWidensAndNarrows(t *testing.T) {
	t.Parallel()

	z := newZoneManager(geom.Vec3{}, []Layer{{Channel: 0, Radius: 100}}, 0.1)

	// Previously inside: stays inside out to 110.
	in, _ := z.containsHysteresis(geom.Vec3{X: 105}, 0, true)
	if !in {
		t.Fatalf("a point previously inside should stay inside within the widened threshold")
	}
	in, _ = z.containsHysteresis(geom.Vec3{X: 115}, 0, true)
	if in {
		t.Fatalf("a point beyond the widened threshold should register as outside")
	}

	// Previously outside: only re-enters within 90.
	in, _ = z.containsHysteresis(geom.Vec3{X: 95}, 0, false)
	if in {
		t.Fatalf("a point previously outside should not re-enter before the narrowed threshold")
	}
	in, _ = z.containsHysteresis(geom.Vec3{X: 85}, 0, false)
	if !in {
		t.Fatalf("a point inside the narrowed threshold should register as entering")
	}
}

func TestZoneManagerPenetrationClampedToUnitRange(t *testing.T) {
	t.Parallel()

	z := newZoneManager(geom.Vec3{}, []Layer{{Channel: 0, Radius: 50}}, 0)

	tests := []struct {
		name string
		pos  geom.Vec3
		want float64
	}{
		{"at center", geom.Vec3{}, 1},
		{"at boundary", geom.Vec3{X: 50}, 0},
		{"well outside clamps to zero", geom.Vec3{X: 500}, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := z.penetration(tt.pos, 0)
			if got != tt.want {
				t.Fatalf("penetration(%v) = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestZoneManagerRecenterMovesCenter(t *testing.T) {
	t.Parallel()

	z := newZoneManager(geom.Vec3{}, []Layer{{Channel: 0, Radius: 10}}, 0)
	z.recenter(geom.Vec3{X: 42})
	if got := z.snapshotCenter(); got != (geom.Vec3{X: 42}) {
		t.Fatalf("snapshotCenter() = %v, want {42 0 0}", got)
	}
}

func TestZoneManagerMaxRadius(t *testing.T) {
	t.Parallel()

	z := newZoneManager(geom.Vec3{}, []Layer{
		{Channel: 0, Radius: 50},
		{Channel: 1, Radius: 300},
		{Channel: 2, Radius: 120},
	}, 0)
	if got := z.maxRadius(); got != 300 {
		t.Fatalf("maxRadius() = %v, want 300", got)
	}
}
