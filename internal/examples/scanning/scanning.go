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

// Package scanning is a worked example of a short-range scan handler:
// on request, it reports every registered object within ScanRadius of
// the requesting observer, whatever channels those objects declare and
// whether or not the observer is subscribed to them.
package scanning

import (
	"context"
	"fmt"

	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/USA-RedDragon/replicore/internal/replicore"
)

// ScanRadius bounds how far a scan request reaches, independent of
// whatever radius the scanned objects themselves declare for channel 3.
const ScanRadius = 100.0

// Result describes one object found by a scan.
type Result struct {
	ObjectID replicore.ObjectID
	TypeName string
	Distance float64
}

// Handler answers scan requests against a live InstanceManager.
type Handler struct {
	im *replicore.InstanceManager
}

// NewHandler creates a scanning handler over im.
func NewHandler(im *replicore.InstanceManager) *Handler {
	return &Handler{im: im}
}

// Scan reports every object within ScanRadius of the requesting
// observer's current position, sorted nearest-first.
func (h *Handler) Scan(ctx context.Context, requester replicore.ObserverID) ([]Result, error) {
	pos, ok := h.im.ObserverPosition(requester)
	if !ok {
		return nil, fmt.Errorf("%w: observer %s not registered", replicore.ErrNotFound, requester)
	}

	hits := h.im.ObjectsWithinRadius(pos, ScanRadius)
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			ObjectID: hit.ObjectID,
			TypeName: hit.TypeName,
			Distance: geom.Distance(pos, hit.Position),
		})
	}

	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Distance < results[j-1].Distance; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	return results, nil
}
