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
	"sync/atomic"

	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/puzpuzpuz/xsync/v4"
)

// cellKey identifies a grid cell. Cell size is chosen ~ the median
// zone radius so that a radius query touches a small, bounded number
// of cells.
type cellKey struct {
	x, y, z int64
}

func cellOf(p geom.Vec3, size float64) cellKey {
	return cellKey{
		x: int64(floorDiv(p.X, size)),
		y: int64(floorDiv(p.Y, size)),
		z: int64(floorDiv(p.Z, size)),
	}
}

func floorDiv(v, size float64) float64 {
	q := v / size
	if q < 0 {
		return q - 1
	}
	return q
}

// SpatialIndex answers "what entities lie within radius R of point P"
// in time sub-linear in the total population. It's
// a uniform grid: each cell holds the set of entities whose position
// currently falls in it. Grid cells are lock-free xsync.Maps, so
// queries never block on writers touching unrelated cells — mirroring
// the concurrent-map discipline the teacher applies to its
// subscription and server-registration tables.
type SpatialIndex[ID comparable] struct {
	cellSize float64

	cells     *xsync.Map[cellKey, *xsync.Map[ID, geom.Vec3]]
	positions *xsync.Map[ID, geom.Vec3]

	mutations        atomic.Int64
	rebuildThreshold int64
	rebuilds         atomic.Int64
}

// NewSpatialIndex creates an index with the given cell size (should
// track the median zone radius in the deployment) and the bulk-rebuild
// mutation threshold (default 5000).
func NewSpatialIndex[ID comparable](cellSize float64, rebuildThreshold int64) *SpatialIndex[ID] {
	if cellSize <= 0 {
		cellSize = 100
	}
	if rebuildThreshold <= 0 {
		rebuildThreshold = 5000
	}
	return &SpatialIndex[ID]{
		cellSize:         cellSize,
		cells:            xsync.NewMap[cellKey, *xsync.Map[ID, geom.Vec3]](),
		positions:        xsync.NewMap[ID, geom.Vec3](),
		rebuildThreshold: rebuildThreshold,
	}
}

func (idx *SpatialIndex[ID]) bucket(key cellKey) *xsync.Map[ID, geom.Vec3] {
	if bucket, ok := idx.cells.Load(key); ok {
		return bucket
	}
	bucket, _ := idx.cells.LoadOrStore(key, xsync.NewMap[ID, geom.Vec3]())
	return bucket
}

// Insert adds or moves an entity to its position's cell.
func (idx *SpatialIndex[ID]) Insert(id ID, pos geom.Vec3) {
	if old, ok := idx.positions.Load(id); ok {
		oldKey := cellOf(old, idx.cellSize)
		newKey := cellOf(pos, idx.cellSize)
		if oldKey == newKey {
			idx.bucket(newKey).Store(id, pos)
			idx.positions.Store(id, pos)
			idx.afterMutation()
			return
		}
		if oldBucket, ok := idx.cells.Load(oldKey); ok {
			oldBucket.Delete(id)
		}
	}
	idx.bucket(cellOf(pos, idx.cellSize)).Store(id, pos)
	idx.positions.Store(id, pos)
	idx.afterMutation()
}

// Update is an alias for Insert: moving an entity already present and
// inserting a new one follow the same code path (amortized-constant
// per move).
func (idx *SpatialIndex[ID]) Update(id ID, pos geom.Vec3) {
	idx.Insert(id, pos)
}

// Remove deletes an entity from the index.
func (idx *SpatialIndex[ID]) Remove(id ID) {
	old, ok := idx.positions.LoadAndDelete(id)
	if !ok {
		return
	}
	key := cellOf(old, idx.cellSize)
	if bucket, ok := idx.cells.Load(key); ok {
		bucket.Delete(id)
	}
	idx.afterMutation()
}

// Result is one hit from a radius query.
type Result[ID comparable] struct {
	ID       ID
	Position geom.Vec3
}

// QueryRadius returns every entity within radius r of p. Results may
// include false positives (entities in a touched cell but outside the
// exact ball); callers filter with exact distance. Never a false
// negative. An empty index returns nil rather than falling back to a
// linear scan.
func (idx *SpatialIndex[ID]) QueryRadius(p geom.Vec3, r float64) []Result[ID] {
	if r < 0 {
		return nil
	}
	minX, maxX := spanCells(p.X, r, idx.cellSize)
	minY, maxY := spanCells(p.Y, r, idx.cellSize)
	minZ, maxZ := spanCells(p.Z, r, idx.cellSize)

	var out []Result[ID]
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				bucket, ok := idx.cells.Load(cellKey{x, y, z})
				if !ok {
					continue
				}
				bucket.Range(func(id ID, pos geom.Vec3) bool {
					out = append(out, Result[ID]{ID: id, Position: pos})
					return true
				})
			}
		}
	}
	return out
}

func spanCells(center, r, cellSize float64) (min, max int64) {
	lo := floorDiv(center-r, cellSize)
	hi := floorDiv(center+r, cellSize)
	return int64(lo), int64(hi)
}

// afterMutation bumps the mutation counter and triggers a bulk rebuild
// once the configured threshold is crossed, amortizing tree/grid
// degradation from accumulated empty buckets.
func (idx *SpatialIndex[ID]) afterMutation() {
	if idx.mutations.Add(1) >= idx.rebuildThreshold {
		idx.Rebuild()
	}
}

// Rebuild compacts the grid by dropping empty cell buckets and resets
// the mutation counter. Safe to call concurrently with queries and
// mutations; it never removes a live entry.
func (idx *SpatialIndex[ID]) Rebuild() {
	idx.mutations.Store(0)
	idx.rebuilds.Add(1)
	var empty []cellKey
	idx.cells.Range(func(key cellKey, bucket *xsync.Map[ID, geom.Vec3]) bool {
		hasEntries := false
		bucket.Range(func(ID, geom.Vec3) bool {
			hasEntries = true
			return false
		})
		if !hasEntries {
			empty = append(empty, key)
		}
		return true
	})
	for _, key := range empty {
		idx.cells.Delete(key)
	}
}

// RebuildCount reports how many bulk rebuilds have run, for metrics.
func (idx *SpatialIndex[ID]) RebuildCount() int64 { return idx.rebuilds.Load() }

// Len returns the number of tracked entities.
func (idx *SpatialIndex[ID]) Len() int {
	n := 0
	idx.positions.Range(func(ID, geom.Vec3) bool { n++; return true })
	return n
}
