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

// Package movement is a worked example of a channel-0 movement handler:
// ownership-checked, bounds-validated position updates feeding into the
// core's MoveObject, on a high-frequency, short-radius critical layer.
package movement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/USA-RedDragon/replicore/internal/replicore"
)

// MaxDeltaPerUpdate rejects a single move that teleports further than
// this many units, the anti-cheat bound on an otherwise trusted client
// update.
const MaxDeltaPerUpdate = 100.0

// MaxVelocity rejects a reported velocity magnitude above this bound.
const MaxVelocity = 1000.0

// MaxClockSkew rejects a request whose client timestamp has drifted
// this far from server time.
const MaxClockSkew = 5 * time.Second

// Request is a client-submitted movement update for one owned object.
type Request struct {
	ObjectID        replicore.ObjectID
	RequestedBy     replicore.ObserverID
	NewPosition     geom.Vec3
	Velocity        geom.Vec3
	ClientTimestamp time.Time
}

// Owner resolves which observer owns an object, so a request can be
// rejected if the requester isn't the owner. A real deployment backs
// this with session/auth state; it's injected here to keep this
// package free of any notion of accounts.
type Owner interface {
	OwnerOf(objectID replicore.ObjectID) (replicore.ObserverID, bool)
}

// Handler validates and applies movement requests against an
// InstanceManager.
type Handler struct {
	im    *replicore.InstanceManager
	owner Owner
	now   func() time.Time
}

// NewHandler creates a movement handler for im, authorizing each
// request against owner.
func NewHandler(im *replicore.InstanceManager, owner Owner) *Handler {
	return &Handler{im: im, owner: owner, now: time.Now}
}

// HandleMove validates req and, if it passes ownership, bounds, and
// clock-skew checks, applies it via MoveObject. Validation failures are
// returned as errors wrapping ErrInvalidArgument; they never panic or
// silently drop the request.
func (h *Handler) HandleMove(ctx context.Context, req Request) error {
	owner, ok := h.owner.OwnerOf(req.ObjectID)
	if !ok {
		return fmt.Errorf("%w: object %s has no registered owner", replicore.ErrNotFound, req.ObjectID)
	}
	if owner != req.RequestedBy {
		return fmt.Errorf("%w: observer %s does not own object %s", replicore.ErrInvalidArgument, req.RequestedBy, req.ObjectID)
	}

	current, ok := h.im.ObjectPosition(req.ObjectID)
	if !ok {
		return fmt.Errorf("%w: object %s not registered", replicore.ErrNotFound, req.ObjectID)
	}

	if err := validateMove(current, req, h.now()); err != nil {
		return fmt.Errorf("%w: %v", replicore.ErrInvalidArgument, err)
	}

	_, _, deltas, err := h.im.MoveObject(ctx, req.ObjectID, req.NewPosition)
	if err != nil {
		return err
	}
	slog.Debug("applied movement", "object_id", req.ObjectID.String(), "deltas", len(deltas))
	return nil
}

func validateMove(current geom.Vec3, req Request, serverNow time.Time) error {
	delta := geom.Distance(current, req.NewPosition)
	if delta > MaxDeltaPerUpdate {
		return fmt.Errorf("movement delta %.2f exceeds max %.2f", delta, MaxDeltaPerUpdate)
	}

	speed := geom.Distance(geom.Vec3{}, req.Velocity)
	if speed > MaxVelocity {
		return fmt.Errorf("velocity %.2f exceeds max %.2f", speed, MaxVelocity)
	}

	skew := serverNow.Sub(req.ClientTimestamp)
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return fmt.Errorf("client timestamp skewed by %s", skew)
	}
	return nil
}
