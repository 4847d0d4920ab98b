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

// Package transport defines the delivery-side collaborator the
// replication core calls out to, and ships a couple of concrete
// adapters: an in-process channel adapter for tests and demos, and an
// illustrative WebSocket adapter for a real deployment.
package transport

import (
	"context"

	"github.com/USA-RedDragon/replicore/internal/replicore"
)

// Adapter is the full capability surface a transport implementation
// offers the core: per-observer delivery, broadcast to every connected
// observer, and forced disconnection. The core only ever depends on
// this interface, never a concrete transport.
type Adapter interface {
	replicore.Sender
	Broadcast(ctx context.Context, channel replicore.Channel, payload []byte) error
	Disconnect(ctx context.Context, observer replicore.ObserverID) error
}
