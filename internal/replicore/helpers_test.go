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
	"time"

	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/USA-RedDragon/replicore/internal/replicore"
)

// fakeObject is a minimal replicore.Object used across the package's
// tests: a movable point with a fixed set of declared layers.
type fakeObject struct {
	typeName string
	pos      geom.Vec3
	layers   []replicore.Layer
}

func newFakeObject(typeName string, layers ...replicore.Layer) *fakeObject {
	return &fakeObject{typeName: typeName, layers: layers}
}

func (o *fakeObject) TypeName() string               { return o.typeName }
func (o *fakeObject) Position() geom.Vec3             { return o.pos }
func (o *fakeObject) UpdatePosition(p geom.Vec3)      { o.pos = p }
func (o *fakeObject) Layers() []replicore.Layer       { return o.layers }
func (o *fakeObject) ProjectForLayer(replicore.Layer) ([]byte, error) {
	return []byte(o.typeName), nil
}
func (o *fakeObject) Clone() replicore.Object {
	clone := *o
	return &clone
}

func layerAt(channel replicore.Channel, radius float64) replicore.Layer {
	return replicore.Layer{Channel: channel, Radius: radius, FrequencyHz: 10}
}

// fakeOwner implements movement.Owner for tests that need ownership
// checks without a real session store.
type fakeOwner struct {
	owners map[replicore.ObjectID]replicore.ObserverID
}

func newFakeOwner() *fakeOwner {
	return &fakeOwner{owners: make(map[replicore.ObjectID]replicore.ObserverID)}
}

func (o *fakeOwner) OwnerOf(id replicore.ObjectID) (replicore.ObserverID, bool) {
	owner, ok := o.owners[id]
	return owner, ok
}

func (o *fakeOwner) set(object replicore.ObjectID, observer replicore.ObserverID) {
	o.owners[object] = observer
}

// fakeClock is a Clock whose Now() is driven entirely by test code.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }
