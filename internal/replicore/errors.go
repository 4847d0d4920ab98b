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

import "errors"

// Error kinds callers match with errors.Is against these sentinels;
// wrapping preserves the underlying cause with %w.
var (
	// ErrNotFound is returned when a referenced object or observer is
	// absent. Handled locally by the caller; never surfaced as an event.
	ErrNotFound = errors.New("replicore: not found")

	// ErrInvalidArgument is returned for malformed identifiers or
	// out-of-range configuration, rejected at the API boundary.
	ErrInvalidArgument = errors.New("replicore: invalid argument")

	// ErrAlreadyExists is returned when adding an observer under an
	// identifier already in use. RegisterObject always mints a fresh
	// identifier and never returns it.
	ErrAlreadyExists = errors.New("replicore: already exists")

	// ErrSerialization marks a projection/payload encoding failure.
	// The event is dropped for the affected observer only.
	ErrSerialization = errors.New("replicore: serialization failed")

	// ErrTransport marks a send failure to a specific observer.
	ErrTransport = errors.New("replicore: transport failed")

	// ErrHandler marks an arbitrary failure inside a registered handler.
	ErrHandler = errors.New("replicore: handler failed")
)
