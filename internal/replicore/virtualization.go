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
	"log/slog"
	"sync"

	"github.com/USA-RedDragon/replicore/internal/geom"
)

// Default thresholds for the periodic merge/split scan. OverlapThreshold
// gates whether two zones are connected at all; DensityThreshold gates
// whether a connected cluster is eligible to merge. MaxVirtualZoneRadius
// and MaxObjectsPerVirtualZone bound how large a single super-zone is
// allowed to grow before it's forced back apart.
const (
	DefaultOverlapThreshold         = 0.3
	DefaultDensityThreshold         = 0.3
	DefaultMaxVirtualZoneRadius     = 1000.0
	DefaultMaxObjectsPerVirtualZone = 100

	// splitDistanceFactor bounds how far absorbed objects may drift
	// apart, relative to the super-zone's radius at merge time, before
	// it's split: max pairwise distance > splitDistanceFactor * R*.
	splitDistanceFactor = 1.5
)

// absorbedMember is a super-zone's memory of one object it swallowed:
// its own declared radius and the last position observed for it, used
// to re-evaluate the split triggers on every scan without re-querying
// the Instance Manager for objects that have left the population.
type absorbedMember struct {
	radius  float64
	lastPos geom.Vec3
}

// superZone groups objects on one channel whose zones overlap densely
// enough that replicating to their union of observers as one unit beats
// tracking each object's subscriptions independently.
type superZone struct {
	id       int
	channel  Channel
	members  map[ObjectID]absorbedMember
	centroid geom.Vec3
	// radius is R*, the bounding-circle radius computed when the zone
	// was last (re)formed. It is the original radius the split triggers
	// measure drift against, not recomputed on every scan.
	radius float64
}

func (sz *superZone) memberIDs() []ObjectID {
	ids := make([]ObjectID, 0, len(sz.members))
	for id := range sz.members {
		ids = append(ids, id)
	}
	sortObjectIDs(ids)
	return ids
}

// VirtualizationManagerOption configures a VirtualizationManager at
// construction.
type VirtualizationManagerOption func(*VirtualizationManager)

// WithMaxVirtualZoneRadius overrides DefaultMaxVirtualZoneRadius.
func WithMaxVirtualZoneRadius(r float64) VirtualizationManagerOption {
	return func(v *VirtualizationManager) { v.maxVirtualZoneRadius = r }
}

// WithMaxObjectsPerVirtualZone overrides DefaultMaxObjectsPerVirtualZone.
func WithMaxObjectsPerVirtualZone(n int) VirtualizationManagerOption {
	return func(v *VirtualizationManager) { v.maxObjectsPerVirtualZone = n }
}

// VirtualizationManager periodically scans an InstanceManager's object
// population per channel, merging clusters of densely overlapping zones
// into super-zones and splitting super-zones that have dispersed.
type VirtualizationManager struct {
	mu               sync.RWMutex
	overlapThreshold float64
	densityThreshold float64

	maxVirtualZoneRadius     float64
	maxObjectsPerVirtualZone int

	nextID int
	zones  map[Channel]map[int]*superZone
	scans  int64
}

// NewVirtualizationManager creates a manager with the given overlap and
// density thresholds. Zero or negative values fall back to the
// defaults.
func NewVirtualizationManager(overlapThreshold, densityThreshold float64, opts ...VirtualizationManagerOption) *VirtualizationManager {
	if overlapThreshold <= 0 {
		overlapThreshold = DefaultOverlapThreshold
	}
	if densityThreshold <= 0 {
		densityThreshold = DefaultDensityThreshold
	}
	v := &VirtualizationManager{
		overlapThreshold:         overlapThreshold,
		densityThreshold:         densityThreshold,
		maxVirtualZoneRadius:     DefaultMaxVirtualZoneRadius,
		maxObjectsPerVirtualZone: DefaultMaxObjectsPerVirtualZone,
		zones:                    make(map[Channel]map[int]*superZone),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// objectZone is the minimal per-object input the scan needs: its
// position and the layer it declares for the channel under scan.
type objectZone struct {
	id     ObjectID
	center geom.Vec3
	radius float64
}

// overlap returns the pairwise overlap ratio ρ = (r_a + r_b − d) / (r_a
// + r_b), clamped to [0, 1]. Two concentric zones (distance 0) score 1;
// two zones whose combined radii don't reach each other score 0.
func overlap(a, b objectZone) float64 {
	sumR := a.radius + b.radius
	if sumR <= 0 {
		return 0
	}
	d := geom.Distance(a.center, b.center)
	rho := (sumR - d) / sumR
	if rho < 0 {
		return 0
	}
	if rho > 1 {
		return 1
	}
	return rho
}

// clusterDensity is the mean pairwise overlap across every pair in a
// candidate cluster: Σ_{i<j} max(0, ρ_ij) / C(n,2).
func clusterDensity(members []objectZone) float64 {
	n := len(members)
	if n < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += overlap(members[i], members[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// centroidOf computes the unweighted mean center and a radius large
// enough to cover every member's own zone (the bounding circle, R*).
func centroidOf(members []objectZone) (geom.Vec3, float64) {
	var sum geom.Vec3
	for _, m := range members {
		sum = sum.Add(m.center)
	}
	n := float64(len(members))
	centroid := geom.Vec3{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}

	var radius float64
	for _, m := range members {
		d := geom.Distance(centroid, m.center) + m.radius
		if d > radius {
			radius = d
		}
	}
	return centroid, radius
}

// Scan evaluates every connected component of overlapping zones on the
// given channel (connection requires ρ ≥ overlapThreshold) and merges
// components whose density crosses the density threshold, subject to
// the size and radius caps. Existing super-zones whose absorbed
// members have drifted past any split trigger are dissolved back into
// individually tracked objects. Scan returns the identifiers of every
// object liberated by a split this pass, so callers can re-register
// their subscriptions against the restored per-object zones.
func (v *VirtualizationManager) Scan(im *InstanceManager, channel Channel) []ObjectID {
	zones := v.collectObjectZones(im, channel)
	byID := make(map[ObjectID]objectZone, len(zones))
	for _, z := range zones {
		byID[z.id] = z
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.scans++

	var liberated []ObjectID
	survivors := make(map[int]*superZone)
	consumed := make(map[ObjectID]struct{})

	for _, sz := range v.zones[channel] {
		if v.mustSplit(sz, byID) {
			liberated = append(liberated, sz.memberIDs()...)
			continue
		}
		for id, am := range sz.members {
			if z, ok := byID[id]; ok {
				am.lastPos = z.center
				sz.members[id] = am
			}
		}
		survivors[sz.id] = sz
		for id := range sz.members {
			consumed[id] = struct{}{}
		}
	}

	var remaining []objectZone
	for _, z := range zones {
		if _, ok := consumed[z.id]; !ok {
			remaining = append(remaining, z)
		}
	}

	for _, cluster := range connectedComponents(remaining, v.overlapThreshold) {
		if len(cluster) < 2 || len(cluster) > v.maxObjectsPerVirtualZone {
			continue
		}
		members := make([]objectZone, 0, len(cluster))
		for _, id := range cluster {
			members = append(members, byID[id])
		}
		if clusterDensity(members) < v.densityThreshold {
			continue
		}
		centroid, radius := centroidOf(members)
		if radius > v.maxVirtualZoneRadius {
			continue
		}
		v.nextID++
		sz := &superZone{
			id:       v.nextID,
			channel:  channel,
			members:  make(map[ObjectID]absorbedMember, len(members)),
			centroid: centroid,
			radius:   radius,
		}
		for _, m := range members {
			sz.members[m.id] = absorbedMember{radius: m.radius, lastPos: m.center}
		}
		survivors[sz.id] = sz
	}

	if len(survivors) == 0 {
		delete(v.zones, channel)
	} else {
		v.zones[channel] = survivors
	}

	slog.Debug("virtualization scan", "channel", channel, "super_zones", len(survivors), "objects", len(zones), "liberated", len(liberated))
	return liberated
}

// mustSplit evaluates the four split triggers against a super-zone's
// current member positions (falling back to last-known position for a
// member the current population snapshot no longer reports).
func (v *VirtualizationManager) mustSplit(sz *superZone, byID map[ObjectID]objectZone) bool {
	if len(sz.members) > v.maxObjectsPerVirtualZone {
		return true
	}

	positions := make([]geom.Vec3, 0, len(sz.members))
	current := make([]objectZone, 0, len(sz.members))
	for id, am := range sz.members {
		pos := am.lastPos
		radius := am.radius
		if z, ok := byID[id]; ok {
			pos = z.center
			radius = z.radius
		}
		positions = append(positions, pos)
		current = append(current, objectZone{id: id, center: pos, radius: radius})

		// Trigger: this member's own zone no longer fits inside the
		// bounding circle recorded at merge time.
		if geom.Distance(pos, sz.centroid)+radius > sz.radius {
			return true
		}
	}

	var maxPairDist float64
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			if d := geom.Distance(positions[i], positions[j]); d > maxPairDist {
				maxPairDist = d
			}
		}
	}
	if maxPairDist > splitDistanceFactor*sz.radius {
		return true
	}

	// Trigger: the bounding circle recomputed from the members' current
	// zones (fresh centroid, R* = max(|center - C*| + r)) exceeds the cap.
	_, recomputed := centroidOf(current)
	return recomputed > v.maxVirtualZoneRadius
}

// collectObjectZones gathers the (position, radius) of every object
// that declares a layer on the given channel.
func (v *VirtualizationManager) collectObjectZones(im *InstanceManager, channel Channel) []objectZone {
	var out []objectZone
	im.objects.Range(func(id ObjectID, rec *objectRecord) bool {
		rec.mu.Lock()
		layer, ok := rec.zones.layer(channel)
		center := rec.zones.snapshotCenter()
		rec.mu.Unlock()
		if ok {
			out = append(out, objectZone{id: id, center: center, radius: layer.Radius})
		}
		return true
	})
	return out
}

// connectedComponents groups zones transitively: any two zones whose
// pairwise overlap ratio meets overlapThreshold land in the same
// component, which is the candidate set handed to clusterDensity. O(n^2)
// in the scanned population; the scan runs on a coarse periodic
// interval, not the hot movement path.
func connectedComponents(zones []objectZone, overlapThreshold float64) [][]ObjectID {
	n := len(zones)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if overlap(zones[i], zones[j]) >= overlapThreshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]ObjectID)
	for i, z := range zones {
		root := find(i)
		groups[root] = append(groups[root], z.id)
	}
	out := make([][]ObjectID, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}

// SuperZoneFor reports the super-zone, if any, currently covering the
// given object on the given channel. The Instance Manager consults
// this before every per-layer membership test, so an absorbed object's
// observers are decided against the super-zone's merged bounding
// circle instead of the object's own (possibly much smaller) radius.
func (v *VirtualizationManager) SuperZoneFor(channel Channel, id ObjectID) (centroid geom.Vec3, radius float64, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, sz := range v.zones[channel] {
		if _, member := sz.members[id]; member {
			return sz.centroid, sz.radius, true
		}
	}
	return geom.Vec3{}, 0, false
}

// ScanCount reports how many scans have run, for metrics.
func (v *VirtualizationManager) ScanCount() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scans
}

// SuperZoneCount reports the current number of active super-zones
// across all channels, for metrics.
func (v *VirtualizationManager) SuperZoneCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for _, m := range v.zones {
		n += len(m)
	}
	return n
}
