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

	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/USA-RedDragon/replicore/internal/replicore"
	"github.com/stretchr/testify/assert"
)

func TestSpatialIndexQueryRadiusFindsInsertedEntities(t *testing.T) {
	t.Parallel()

	idx := replicore.NewSpatialIndex[int](25, 0)
	idx.Insert(1, geom.Vec3{X: 0})
	idx.Insert(2, geom.Vec3{X: 10})
	idx.Insert(3, geom.Vec3{X: 1000})

	results := idx.QueryRadius(geom.Vec3{}, 20)
	found := make(map[int]bool)
	for _, r := range results {
		found[r.ID] = true
	}
	assert.True(t, found[1])
	assert.True(t, found[2])

	// A false positive from a touched cell is acceptable; a false
	// negative (missing a result that should match) is not. Object 3
	// is far enough away that no cell span should touch it.
	assert.False(t, found[3])
}

func TestSpatialIndexUpdateMovesEntity(t *testing.T) {
	t.Parallel()

	idx := replicore.NewSpatialIndex[string](10, 0)
	idx.Insert("a", geom.Vec3{X: 0})
	idx.Update("a", geom.Vec3{X: 500})

	assert.Empty(t, idx.QueryRadius(geom.Vec3{}, 5))
	results := idx.QueryRadius(geom.Vec3{X: 500}, 5)
	assert.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestSpatialIndexRemove(t *testing.T) {
	t.Parallel()

	idx := replicore.NewSpatialIndex[string](10, 0)
	idx.Insert("a", geom.Vec3{X: 0})
	assert.Equal(t, 1, idx.Len())

	idx.Remove("a")
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.QueryRadius(geom.Vec3{}, 100))

	// Removing an absent id is a no-op, not an error.
	idx.Remove("does-not-exist")
}

func TestSpatialIndexQueryRadiusRejectsNegativeRadius(t *testing.T) {
	t.Parallel()

	idx := replicore.NewSpatialIndex[string](10, 0)
	idx.Insert("a", geom.Vec3{})
	assert.Nil(t, idx.QueryRadius(geom.Vec3{}, -1))
}

func TestSpatialIndexRebuildThreshold(t *testing.T) {
	t.Parallel()

	idx := replicore.NewSpatialIndex[int](10, 4)
	assert.Equal(t, int64(0), idx.RebuildCount())

	for i := 0; i < 5; i++ {
		idx.Insert(i, geom.Vec3{X: float64(i)})
	}
	assert.Equal(t, int64(1), idx.RebuildCount(), "the fourth mutation should have crossed the threshold")
}

func TestSpatialIndexRebuildPreservesLiveEntries(t *testing.T) {
	t.Parallel()

	idx := replicore.NewSpatialIndex[int](10, 0)
	idx.Insert(1, geom.Vec3{X: 0})
	idx.Insert(2, geom.Vec3{X: 1000})
	idx.Remove(2)

	idx.Rebuild()

	assert.Equal(t, 1, idx.Len())
	results := idx.QueryRadius(geom.Vec3{X: 0}, 5)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ID)
}
