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

// Package examples statically registers the worked gameplay handlers
// (movement, scanning) against a core instance. Extensibility here is
// static linking, not dynamic plugin loading: a deployment that wants
// these behaviors imports this package and calls Register once at
// startup, the same way the rest of the core is wired together in
// cmd/root.go.
package examples

import (
	"context"

	"github.com/USA-RedDragon/replicore/internal/examples/movement"
	"github.com/USA-RedDragon/replicore/internal/examples/scanning"
	"github.com/USA-RedDragon/replicore/internal/replicore"
)

// Handlers bundles the worked example handlers so callers can wire
// them into a transport layer's request dispatch.
type Handlers struct {
	Movement *movement.Handler
	Scanning *scanning.Handler
}

// Register constructs the example handlers against im and owner,
// returning them for the caller to bind to a transport's request
// router. Registration here means "make available", not "subscribe to
// the event bus" — these handlers are driven by inbound client
// requests, not by zone deltas.
func Register(im *replicore.InstanceManager, owner movement.Owner) *Handlers {
	return &Handlers{
		Movement: movement.NewHandler(im, owner),
		Scanning: scanning.NewHandler(im),
	}
}

// HandleMoveRequest is a convenience passthrough matching the shape a
// transport's request dispatcher would call.
func (h *Handlers) HandleMoveRequest(ctx context.Context, req movement.Request) error {
	return h.Movement.HandleMove(ctx, req)
}

// HandleScanRequest is a convenience passthrough matching the shape a
// transport's request dispatcher would call.
func (h *Handlers) HandleScanRequest(ctx context.Context, requester replicore.ObserverID) ([]scanning.Result, error) {
	return h.Scanning.Scan(ctx, requester)
}
