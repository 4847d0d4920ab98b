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

package scanning_test

import (
	"context"
	"testing"

	"github.com/USA-RedDragon/replicore/internal/examples/scanning"
	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/USA-RedDragon/replicore/internal/replicore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanObject struct {
	typeName string
	pos      geom.Vec3
}

func (o *scanObject) TypeName() string          { return o.typeName }
func (o *scanObject) Position() geom.Vec3       { return o.pos }
func (o *scanObject) UpdatePosition(p geom.Vec3) { o.pos = p }
func (o *scanObject) Layers() []replicore.Layer {
	return []replicore.Layer{{Channel: 3, Radius: 1000, FrequencyHz: 1}}
}
func (o *scanObject) ProjectForLayer(replicore.Layer) ([]byte, error) { return nil, nil }
func (o *scanObject) Clone() replicore.Object {
	clone := *o
	return &clone
}

func TestScanReturnsNearestFirstWithinRadius(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	im := replicore.NewInstanceManager(100, 5000)

	requester := replicore.NewObserverID()
	require.NoError(t, im.AddObserver(ctx, requester, geom.Vec3{}))

	near := &scanObject{typeName: "crate"}
	far := &scanObject{typeName: "tower"}
	tooFar := &scanObject{typeName: "moon"}
	_, err := im.RegisterObject(ctx, near, geom.Vec3{X: 10})
	require.NoError(t, err)
	_, err = im.RegisterObject(ctx, far, geom.Vec3{X: 80})
	require.NoError(t, err)
	_, err = im.RegisterObject(ctx, tooFar, geom.Vec3{X: scanning.ScanRadius + 50})
	require.NoError(t, err)

	h := scanning.NewHandler(im)
	results, err := h.Scan(ctx, requester)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "crate", results[0].TypeName)
	assert.Equal(t, "tower", results[1].TypeName)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestScanUnknownObserverErrors(t *testing.T) {
	t.Parallel()
	im := replicore.NewInstanceManager(100, 5000)
	h := scanning.NewHandler(im)

	_, err := h.Scan(context.Background(), replicore.NewObserverID())
	assert.ErrorIs(t, err, replicore.ErrNotFound)
}
