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

import "time"

// Delta is a (observer, channel, entering|exiting) triple produced
// when a position change alters subscription membership.
type Delta struct {
	Observer ObserverID
	Channel  Channel
	Entering bool
}

// ZoneDeltaEvent carries everything the Propagation Layer needs to
// synthesize a zone-enter or zone-exit event for a single delta: the
// object identity/type, the layer that changed membership, and (for
// entries) the live Object so its current projection can be computed.
// This is the hand-off point between the Instance Manager and the
// Propagation Layer. Timestamp is stamped by the Instance Manager at
// the moment the delta is computed, not at delivery time.
type ZoneDeltaEvent struct {
	ObjectID   ObjectID
	ObjectType string
	Channel    Channel
	Layer      Layer
	Observer   ObserverID
	Entering   bool
	Object     Object
	Timestamp  time.Time
}

// ZoneDeltaSink receives zone-entry/zone-exit notifications as the
// Instance Manager computes them. The Propagation Layer implements
// this to bridge spatial deltas into event-bus emissions and
// transport deliveries.
type ZoneDeltaSink interface {
	OnZoneDelta(ev ZoneDeltaEvent)
}

// ZoneDeltaSinkFunc adapts a plain function to ZoneDeltaSink.
type ZoneDeltaSinkFunc func(ev ZoneDeltaEvent)

func (f ZoneDeltaSinkFunc) OnZoneDelta(ev ZoneDeltaEvent) { f(ev) }
