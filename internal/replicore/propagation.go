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
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Sender is the capability the Propagation Layer needs from a
// transport implementation: deliver an encoded payload to one observer.
// Broadcast and connection lifecycle are out of scope here; a full
// transport adapter (internal/transport) implements a superset of this.
type Sender interface {
	SendToObserver(ctx context.Context, observer ObserverID, channel Channel, payload []byte) error
}

// PropagationLayer bridges the Instance Manager's zone deltas and the
// Event Bus's handler dispatch to a transport Sender. It implements
// ZoneDeltaSink so an InstanceManager can be constructed with it
// directly as the notification target.
type PropagationLayer struct {
	bus    *EventBus
	sender Sender
	clock  Clock

	// instances and subscriptions are wired in after construction with
	// SetInstances/SetSubscriptions: the Instance Manager is itself
	// constructed with this layer as its delta sink, so neither can
	// depend on the other at construction time.
	instances     *InstanceManager
	subscriptions *SubscriptionManager
}

// NewPropagationLayer creates a layer that publishes to bus and, when
// sender is non-nil, also forwards encoded projections over the wire.
// sender may be nil for event-only configurations (tests, or a process
// that only wants in-process handler fan-out with no network egress).
func NewPropagationLayer(bus *EventBus, sender Sender) *PropagationLayer {
	return &PropagationLayer{bus: bus, sender: sender, clock: SystemClock{}}
}

// SetSender installs the transport sender after construction, letting
// a deployment finish building its transport adapter before the core
// is wired to it.
func (p *PropagationLayer) SetSender(sender Sender) {
	p.sender = sender
}

// SetInstances wires the Instance Manager this layer queries for
// subscriber enumeration and position lookups, once it exists.
func (p *PropagationLayer) SetInstances(instances *InstanceManager) {
	p.instances = instances
}

// SetSubscriptions wires the Subscription Manager this layer consults
// to order client deliveries by priority.
func (p *PropagationLayer) SetSubscriptions(subscriptions *SubscriptionManager) {
	p.subscriptions = subscriptions
}

// OnZoneDelta implements ZoneDeltaSink. Every delta becomes a
// gorc_instance event on the bus and, when the object type is known, a
// gorc (type-scoped) event; entries additionally, if a Sender is
// configured, project and deliver the object's current state for the
// entered channel.
func (p *PropagationLayer) OnZoneDelta(ev ZoneDeltaEvent) {
	ctx := context.Background()
	instanceTag := GorcInstanceTag(ev.ObjectID, ev.Channel, ev.Entering)
	p.bus.Publish(ctx, instanceTag, ev)

	if ev.ObjectType != "" {
		typeTag := GorcTypeTag(ev.ObjectType, ev.Channel, ev.Entering)
		p.bus.Publish(ctx, typeTag, ev)
	}

	if !ev.Entering || p.sender == nil || ev.Object == nil {
		return
	}
	p.deliverEntry(ctx, ev)
}

func (p *PropagationLayer) deliverEntry(ctx context.Context, ev ZoneDeltaEvent) {
	payload, err := ev.Object.ProjectForLayer(ev.Layer)
	if err != nil {
		slog.Error("projection failed on zone entry",
			"object_id", ev.ObjectID.String(), "channel", ev.Channel,
			"error", fmt.Errorf("%w: %v", ErrSerialization, err))
		return
	}
	if err := p.sender.SendToObserver(ctx, ev.Observer, ev.Channel, payload); err != nil {
		slog.Error("delivery failed on zone entry",
			"object_id", ev.ObjectID.String(), "observer_id", ev.Observer.String(),
			"channel", ev.Channel, "error", fmt.Errorf("%w: %v", ErrTransport, err))
	}
}

// EmitInstance publishes a named, out-of-band instance event — the
// periodic per-layer-frequency tick a caller drives, or any other
// gameplay event that isn't itself a zone-enter/zone-exit transition.
// dest controls whether the event reaches the bus (a type-scoped
// handler keyed by eventName), the transport (every observer currently
// subscribed to objectID on this channel, ordered by priority), both,
// or neither.
func (p *PropagationLayer) EmitInstance(ctx context.Context, obj Object, objectID ObjectID, eventName string, layer Layer, dest Destination) error {
	if dest.includesServer() {
		p.bus.Publish(ctx, GorcTypeNamedTag(obj.TypeName(), layer.Channel, eventName), ZoneDeltaEvent{
			ObjectID: objectID, ObjectType: obj.TypeName(), Channel: layer.Channel,
			Layer: layer, Object: obj, Timestamp: p.clock.Now(),
		})
	}
	if !dest.includesClient() {
		return nil
	}
	if p.sender == nil {
		return fmt.Errorf("%w: no transport sender configured", ErrTransport)
	}
	if p.instances == nil {
		return fmt.Errorf("%w: no instance manager configured", ErrTransport)
	}

	subscribers, _ := p.instances.Subscribers(objectID, layer.Channel)
	if len(subscribers) == 0 {
		return nil
	}
	payload, err := obj.ProjectForLayer(layer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	var firstErr error
	for _, observer := range p.orderByPriority(objectID, layer.Channel, subscribers) {
		if err := p.sender.SendToObserver(ctx, observer, layer.Channel, payload); err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrTransport, err)
			slog.Error("delivery failed on instance emission",
				"object_id", objectID.String(), "observer_id", observer.String(),
				"channel", layer.Channel, "error", wrapped)
			if firstErr == nil {
				firstErr = wrapped
			}
		}
	}
	return firstErr
}

// orderByPriority sorts observers subscribed to objectID's channel by
// the Subscription Manager's priority ranking, highest first, so a
// bandwidth-constrained transport drops the lowest-priority deliveries
// when it has to. Returns the enumeration order unchanged if either the
// Subscription Manager or the Instance Manager is not wired, or if the
// object's position can no longer be looked up. An observer whose own
// position can no longer be looked up is left out of the result.
func (p *PropagationLayer) orderByPriority(objectID ObjectID, channel Channel, observers []ObserverID) []ObserverID {
	if p.subscriptions == nil || p.instances == nil {
		return observers
	}
	center, ok := p.instances.ObjectPosition(objectID)
	if !ok {
		return observers
	}

	inputs := make(map[ObserverID]ClassifyInput, len(observers))
	for _, observer := range observers {
		pos, ok := p.instances.ObserverPosition(observer)
		if !ok {
			continue
		}
		inputs[observer] = ClassifyInput{ObserverPos: pos, ObjectCenter: center}
	}
	ranked := p.subscriptions.Rank(inputs, channel)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Priority > ranked[j].Priority })

	ordered := make([]ObserverID, 0, len(ranked))
	for _, r := range ranked {
		ordered = append(ordered, r.Observer)
	}
	return ordered
}
