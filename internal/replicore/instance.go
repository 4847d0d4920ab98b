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
	"sync"

	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/puzpuzpuz/xsync/v4"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("replicore")

// objectRecord is the Instance Manager's per-object state: the live
// Object, its zone manager, and the subscription set for each of
// its channels. mu serializes register/move for this object: it must
// not be mutated concurrently by RegisterObject and MoveObject on
// the same object, and guards subs.
type objectRecord struct {
	mu      sync.Mutex
	id      ObjectID
	object  Object
	zones   *zoneManager
	subs    [ChannelCount]map[ObserverID]struct{}
}

func newObjectRecord(id ObjectID, obj Object, pos geom.Vec3, hysteresis float64) *objectRecord {
	rec := &objectRecord{id: id, object: obj, zones: newZoneManager(pos, obj.Layers(), hysteresis)}
	for i := range rec.subs {
		rec.subs[i] = make(map[ObserverID]struct{})
	}
	return rec
}

// observerRecord is the Instance Manager's per-observer state: its
// last-known position. The (object, channel) pairs it subscribes to
// are held only in each object's subscription sets, not here.
type observerRecord struct {
	mu  sync.Mutex
	id  ObserverID
	pos geom.Vec3
}

// InstanceManager is the authoritative registry of objects and
// observers, the single mutator of the subscription matrix, and the
// orchestrator of zone-entry/zone-exit deltas.
type InstanceManager struct {
	hysteresis float64

	objects   *xsync.Map[ObjectID, *objectRecord]
	observers *xsync.Map[ObserverID, *observerRecord]

	objectIndex   *SpatialIndex[ObjectID]
	observerIndex *SpatialIndex[ObserverID]

	// maxObjectRadius bounds candidate queries when an observer moves:
	// the largest layer radius declared by any currently registered
	// object. Guarded by radiusMu since it's read/written rarely
	// relative to moves.
	radiusMu        sync.RWMutex
	maxObjectRadius float64

	sink  ZoneDeltaSink
	clock Clock

	// onObjectMoved is an optional Virtualization Manager hook invoked
	// after every successful MoveObject call.
	onObjectMoved func(id ObjectID, newPos geom.Vec3)

	// superZoneLookup is an optional Virtualization Manager hook
	// consulted before an object's own zone membership test: if the
	// object is currently absorbed into a super-zone on the given
	// channel, membership is decided against the super-zone's bounding
	// circle instead of the object's individual layer radius.
	superZoneLookup func(channel Channel, id ObjectID) (centroid geom.Vec3, radius float64, ok bool)
}

// InstanceManagerOption configures an InstanceManager at construction.
type InstanceManagerOption func(*InstanceManager)

// WithHysteresis overrides the default boundary hysteresis factor.
func WithHysteresis(h float64) InstanceManagerOption {
	return func(m *InstanceManager) { m.hysteresis = h }
}

// WithZoneDeltaSink wires the Propagation Layer (or any sink) to
// receive zone-entry/zone-exit notifications as they're computed.
func WithZoneDeltaSink(sink ZoneDeltaSink) InstanceManagerOption {
	return func(m *InstanceManager) { m.sink = sink }
}

// WithObjectMovedHook wires the Virtualization Manager's split-check
// callback.
func WithObjectMovedHook(fn func(id ObjectID, newPos geom.Vec3)) InstanceManagerOption {
	return func(m *InstanceManager) { m.onObjectMoved = fn }
}

// WithClock overrides the clock used to stamp ZoneDeltaEvent.Timestamp.
// Tests wire a fake clock to assert exact timestamps deterministically.
func WithClock(c Clock) InstanceManagerOption {
	return func(m *InstanceManager) { m.clock = c }
}

// WithVirtualizationLookup wires the Virtualization Manager's
// super-zone membership test. When an object is absorbed into a
// super-zone on a given channel, the Instance Manager consults the
// super-zone's bounding circle instead of falling back to the
// object's own per-layer membership check.
func WithVirtualizationLookup(fn func(channel Channel, id ObjectID) (centroid geom.Vec3, radius float64, ok bool)) InstanceManagerOption {
	return func(m *InstanceManager) { m.superZoneLookup = fn }
}

// membership decides whether pos falls within layer's zone for the
// given object, consulting the Virtualization Manager's super-zone
// lookup first: an object absorbed into a super-zone shares its
// observers' membership decisions with every other absorbed member,
// rather than being tested against its own (possibly much smaller)
// declared radius.
func (m *InstanceManager) membership(rec *objectRecord, layer Layer, id ObjectID, pos geom.Vec3, wasInside bool) bool {
	if m.superZoneLookup != nil {
		if centroid, radius, ok := m.superZoneLookup(layer.Channel, id); ok {
			return geom.WithinRadius(pos, centroid, radius)
		}
	}
	inside, _ := rec.zones.containsHysteresis(pos, layer.Channel, wasInside)
	return inside
}

// NewInstanceManager creates an Instance Manager. cellSize and
// rebuildThreshold configure the two backing spatial indices
// for the two backing spatial indices.
func NewInstanceManager(cellSize float64, rebuildThreshold int64, opts ...InstanceManagerOption) *InstanceManager {
	m := &InstanceManager{
		hysteresis:    DefaultHysteresisFactor,
		clock:         SystemClock{},
		objects:       xsync.NewMap[ObjectID, *objectRecord](),
		observers:     xsync.NewMap[ObserverID, *observerRecord](),
		objectIndex:   NewSpatialIndex[ObjectID](cellSize, rebuildThreshold),
		observerIndex: NewSpatialIndex[ObserverID](cellSize, rebuildThreshold),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *InstanceManager) emit(ev ZoneDeltaEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.clock.Now()
	}
	if m.sink != nil {
		m.sink.OnZoneDelta(ev)
	}
}

func (m *InstanceManager) bumpMaxRadius(candidate float64) {
	m.radiusMu.RLock()
	current := m.maxObjectRadius
	m.radiusMu.RUnlock()
	if candidate <= current {
		return
	}
	m.radiusMu.Lock()
	if candidate > m.maxObjectRadius {
		m.maxObjectRadius = candidate
	}
	m.radiusMu.Unlock()
}

func (m *InstanceManager) currentMaxRadius() float64 {
	m.radiusMu.RLock()
	defer m.radiusMu.RUnlock()
	return m.maxObjectRadius
}

// RegisterObject assigns a fresh identifier, seeds the zone manager
// from the object's declared layers, inserts it into the spatial
// index, and emits zone-entry deltas to every currently known observer
// already inside one of the new object's zones — the first-spawn
// coverage contract: a freshly registered object must notify every
// observer already within range before anything else can move.
func (m *InstanceManager) RegisterObject(ctx context.Context, obj Object, pos geom.Vec3) (ObjectID, error) {
	_, span := tracer.Start(ctx, "InstanceManager.RegisterObject")
	defer span.End()

	if err := validateLayers(obj.Layers()); err != nil {
		return ObjectID{}, err
	}

	id := NewObjectID()
	clone := obj.Clone()
	clone.UpdatePosition(pos)
	rec := newObjectRecord(id, clone, pos, m.hysteresis)
	m.objects.Store(id, rec)
	m.objectIndex.Insert(id, pos)
	m.bumpMaxRadius(MaxRadius(clone))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, layer := range rec.zones.layersAscending() {
		candidates := m.observerIndex.QueryRadius(pos, layer.Radius)
		for _, c := range candidates {
			if !m.membership(rec, layer, id, c.Position, false) {
				continue
			}
			if _, already := rec.subs[layer.Channel][c.ID]; already {
				continue
			}
			rec.subs[layer.Channel][c.ID] = struct{}{}
			m.emit(ZoneDeltaEvent{
				ObjectID: id, ObjectType: rec.object.TypeName(), Channel: layer.Channel,
				Layer: layer, Observer: c.ID, Entering: true, Object: rec.object,
			})
		}
	}

	slog.Debug("registered object", "object_id", id.String(), "type", rec.object.TypeName())
	return id, nil
}

// UnregisterObject emits zone-exit events to every currently subscribed
// observer on every channel, then removes all state. Idempotent: a
// missing object is a no-op success.
func (m *InstanceManager) UnregisterObject(ctx context.Context, id ObjectID) error {
	_, span := tracer.Start(ctx, "InstanceManager.UnregisterObject")
	defer span.End()

	rec, ok := m.objects.LoadAndDelete(id)
	if !ok {
		return nil
	}
	m.objectIndex.Remove(id)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, layer := range rec.zones.layersAscending() {
		for observerID := range rec.subs[layer.Channel] {
			m.emit(ZoneDeltaEvent{
				ObjectID: id, ObjectType: rec.object.TypeName(), Channel: layer.Channel,
				Layer: layer, Observer: observerID, Entering: false,
			})
		}
		rec.subs[layer.Channel] = make(map[ObserverID]struct{})
	}
	slog.Debug("unregistered object", "object_id", id.String())
	return nil
}

// MoveObject updates the stored position, re-centers the zone manager,
// notifies the Virtualization Manager, and computes per-observer
// per-channel deltas.
func (m *InstanceManager) MoveObject(ctx context.Context, id ObjectID, newPos geom.Vec3) (old, new geom.Vec3, deltas []Delta, err error) {
	_, span := tracer.Start(ctx, "InstanceManager.MoveObject")
	defer span.End()

	rec, ok := m.objects.Load(id)
	if !ok {
		return geom.Vec3{}, geom.Vec3{}, nil, fmt.Errorf("%w: object %s", ErrNotFound, id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	old = rec.zones.snapshotCenter()
	rec.zones.recenter(newPos)
	rec.object.UpdatePosition(newPos)
	m.objectIndex.Insert(id, newPos)

	if m.onObjectMoved != nil {
		m.onObjectMoved(id, newPos)
	}

	maxR := rec.zones.maxRadius()
	affected := make(map[ObserverID]geom.Vec3)
	for _, l := range rec.zones.layersAscending() {
		for observerID := range rec.subs[l.Channel] {
			if _, ok := affected[observerID]; !ok {
				if obs, ok := m.observers.Load(observerID); ok {
					obs.mu.Lock()
					affected[observerID] = obs.pos
					obs.mu.Unlock()
				}
			}
		}
	}
	for _, c := range m.observerIndex.QueryRadius(newPos, maxR) {
		if _, ok := affected[c.ID]; !ok {
			affected[c.ID] = c.Position
		}
	}

	for _, layer := range rec.zones.layersAscending() {
		for observerID, observerPos := range affected {
			_, wasIn := rec.subs[layer.Channel][observerID]
			isIn := m.membership(rec, layer, id, observerPos, wasIn)
			if !wasIn && isIn {
				rec.subs[layer.Channel][observerID] = struct{}{}
				d := Delta{Observer: observerID, Channel: layer.Channel, Entering: true}
				deltas = append(deltas, d)
				m.emit(ZoneDeltaEvent{ObjectID: id, ObjectType: rec.object.TypeName(), Channel: layer.Channel, Layer: layer, Observer: observerID, Entering: true, Object: rec.object})
			} else if wasIn && !isIn {
				delete(rec.subs[layer.Channel], observerID)
				d := Delta{Observer: observerID, Channel: layer.Channel, Entering: false}
				deltas = append(deltas, d)
				m.emit(ZoneDeltaEvent{ObjectID: id, ObjectType: rec.object.TypeName(), Channel: layer.Channel, Layer: layer, Observer: observerID, Entering: false})
			}
		}
	}

	return old, newPos, deltas, nil
}

// AddObserver inserts the observer and triggers a full subscription
// recomputation against every object, emitting zone-entry deltas for
// every zone it's inside (the symmetric first-spawn obligation from
// mirroring the symmetric first-spawn obligation RegisterObject owes
// existing observers.
func (m *InstanceManager) AddObserver(ctx context.Context, id ObserverID, pos geom.Vec3) error {
	_, span := tracer.Start(ctx, "InstanceManager.AddObserver")
	defer span.End()

	if _, exists := m.observers.Load(id); exists {
		return fmt.Errorf("%w: observer %s", ErrAlreadyExists, id)
	}
	m.observers.Store(id, &observerRecord{id: id, pos: pos})
	m.observerIndex.Insert(id, pos)

	maxR := m.currentMaxRadius()
	candidates := m.objectIndex.QueryRadius(pos, maxR)
	ids := make([]ObjectID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	sortObjectIDs(ids)

	for _, objID := range ids {
		rec, ok := m.objects.Load(objID)
		if !ok {
			continue
		}
		rec.mu.Lock()
		for _, layer := range rec.zones.layersAscending() {
			if !m.membership(rec, layer, objID, pos, false) {
				continue
			}
			if _, already := rec.subs[layer.Channel][id]; already {
				continue
			}
			rec.subs[layer.Channel][id] = struct{}{}
			m.emit(ZoneDeltaEvent{ObjectID: objID, ObjectType: rec.object.TypeName(), Channel: layer.Channel, Layer: layer, Observer: id, Entering: true, Object: rec.object})
		}
		rec.mu.Unlock()
	}
	slog.Debug("added observer", "observer_id", id.String())
	return nil
}

// RemoveObserver removes the observer from the spatial index and
// strikes it from every object's subscription set.
func (m *InstanceManager) RemoveObserver(ctx context.Context, id ObserverID) error {
	_, span := tracer.Start(ctx, "InstanceManager.RemoveObserver")
	defer span.End()

	if _, ok := m.observers.LoadAndDelete(id); !ok {
		return nil
	}
	m.observerIndex.Remove(id)

	m.objects.Range(func(_ ObjectID, rec *objectRecord) bool {
		rec.mu.Lock()
		for c := range rec.subs {
			delete(rec.subs[Channel(c)], id)
		}
		rec.mu.Unlock()
		return true
	})
	return nil
}

// MoveObserver updates the observer's position and, for each object
// within its maximum-radius envelope, recomputes channel membership
// against the previous position, emitting deltas.
func (m *InstanceManager) MoveObserver(ctx context.Context, id ObserverID, newPos geom.Vec3) (entries, exits []Delta, err error) {
	_, span := tracer.Start(ctx, "InstanceManager.MoveObserver")
	defer span.End()

	obs, ok := m.observers.Load(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: observer %s", ErrNotFound, id)
	}

	obs.mu.Lock()
	oldPos := obs.pos
	obs.pos = newPos
	obs.mu.Unlock()
	m.observerIndex.Insert(id, newPos)

	maxR := m.currentMaxRadius()
	candidateSet := make(map[ObjectID]struct{})
	for _, c := range m.objectIndex.QueryRadius(oldPos, maxR) {
		candidateSet[c.ID] = struct{}{}
	}
	for _, c := range m.objectIndex.QueryRadius(newPos, maxR) {
		candidateSet[c.ID] = struct{}{}
	}
	ids := make([]ObjectID, 0, len(candidateSet))
	for objID := range candidateSet {
		ids = append(ids, objID)
	}
	sortObjectIDs(ids)

	for _, objID := range ids {
		rec, ok := m.objects.Load(objID)
		if !ok {
			continue
		}
		rec.mu.Lock()
		for _, layer := range rec.zones.layersAscending() {
			_, subscribed := rec.subs[layer.Channel][id]
			isIn := m.membership(rec, layer, objID, newPos, subscribed)
			switch {
			case !subscribed && isIn:
				rec.subs[layer.Channel][id] = struct{}{}
				entries = append(entries, Delta{Observer: id, Channel: layer.Channel, Entering: true})
				m.emit(ZoneDeltaEvent{ObjectID: objID, ObjectType: rec.object.TypeName(), Channel: layer.Channel, Layer: layer, Observer: id, Entering: true, Object: rec.object})
			case subscribed && !isIn:
				delete(rec.subs[layer.Channel], id)
				exits = append(exits, Delta{Observer: id, Channel: layer.Channel, Entering: false})
				m.emit(ZoneDeltaEvent{ObjectID: objID, ObjectType: rec.object.TypeName(), Channel: layer.Channel, Layer: layer, Observer: id, Entering: false})
			}
		}
		rec.mu.Unlock()
	}

	return entries, exits, nil
}

// ObjectPosition returns an object's current authoritative position.
func (m *InstanceManager) ObjectPosition(id ObjectID) (geom.Vec3, bool) {
	rec, ok := m.objects.Load(id)
	if !ok {
		return geom.Vec3{}, false
	}
	return rec.zones.snapshotCenter(), true
}

// ObserverPosition returns an observer's current position.
func (m *InstanceManager) ObserverPosition(id ObserverID) (geom.Vec3, bool) {
	obs, ok := m.observers.Load(id)
	if !ok {
		return geom.Vec3{}, false
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	return obs.pos, true
}

// ObjectHit is one result from ObjectsWithinRadius.
type ObjectHit struct {
	ObjectID ObjectID
	TypeName string
	Position geom.Vec3
}

// ObjectsWithinRadius returns every currently registered object whose
// position is within r of p, for callers (scan handlers, admin tools)
// that need a population snapshot rather than subscription deltas.
func (m *InstanceManager) ObjectsWithinRadius(p geom.Vec3, r float64) []ObjectHit {
	candidates := m.objectIndex.QueryRadius(p, r)
	out := make([]ObjectHit, 0, len(candidates))
	for _, c := range candidates {
		if !geom.WithinRadius(c.Position, p, r) {
			continue
		}
		rec, ok := m.objects.Load(c.ID)
		if !ok {
			continue
		}
		rec.mu.Lock()
		typeName := rec.object.TypeName()
		rec.mu.Unlock()
		out = append(out, ObjectHit{ObjectID: c.ID, TypeName: typeName, Position: c.Position})
	}
	return out
}

// Subscribers returns a snapshot of the observers currently subscribed
// to (objectID, channel).
func (m *InstanceManager) Subscribers(objectID ObjectID, c Channel) ([]ObserverID, bool) {
	rec, ok := m.objects.Load(objectID)
	if !ok {
		return nil, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]ObserverID, 0, len(rec.subs[c]))
	for observerID := range rec.subs[c] {
		out = append(out, observerID)
	}
	return out, true
}

// object returns the live Object for a given id plus its type name,
// used by the Propagation Layer to resolve server-side emission keys.
func (m *InstanceManager) object(id ObjectID) (Object, string, bool) {
	rec, ok := m.objects.Load(id)
	if !ok {
		return nil, "", false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.object, rec.object.TypeName(), true
}

// sortObjectIDs imposes a total, stable order over object identifiers
// so cross-object lock acquisition (AddObserver, MoveObserver) follows
// a simple deadlock-avoidance rule: always acquire per-object locks
// in identifier order.
func sortObjectIDs(ids []ObjectID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
