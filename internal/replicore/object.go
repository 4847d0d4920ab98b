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
	"fmt"

	"github.com/USA-RedDragon/replicore/internal/geom"
	"github.com/google/uuid"
)

// ObjectID and ObserverID are stable opaque 128-bit identifiers, per
// They're distinct types so a caller can't accidentally
// hand an observer ID to an object-keyed API and vice versa.
type ObjectID uuid.UUID

// ObserverID identifies a point sampler (conventionally a connected
// player) against every object's zones.
type ObserverID uuid.UUID

func (id ObjectID) String() string   { return uuid.UUID(id).String() }
func (id ObserverID) String() string { return uuid.UUID(id).String() }

// NewObjectID and NewObserverID mint fresh random identifiers.
func NewObjectID() ObjectID     { return ObjectID(uuid.New()) }
func NewObserverID() ObserverID { return ObserverID(uuid.New()) }

// Channel identifies one of an object's replication layers. Spec.md §6
// fixes channel_count = 4, channels numbered {0,1,2,3}.
type Channel uint8

const ChannelCount = 4

// ValidChannel reports whether c is in {0,1,2,3}.
func ValidChannel(c Channel) bool {
	return c < ChannelCount
}

// CompressionHint is advisory metadata carried by a layer; the core
// does not interpret it, it's forwarded to ProjectForLayer as part of
// the Layer for the object's own use.
type CompressionHint string

const (
	CompressionNone CompressionHint = "none"
	CompressionDelta CompressionHint = "delta"
	CompressionQuantized CompressionHint = "quantized"
)

// Layer is the tuple (channel, radius, frequency, properties,
// compression) declared by an object.
type Layer struct {
	Channel     Channel
	Radius      float64
	FrequencyHz float64
	Properties  []string
	Compression CompressionHint
}

// CriticalLayer, DetailedLayer, NormalLayer and MinimalLayer construct
// commonly used layers, grounded on the gorc
// config presets (Critical/Detailed/Normal/Minimal) in the Rust
// original's gorc/config.rs. These are convenience constructors only;
// any Layer value is otherwise valid.
func CriticalLayer(properties ...string) Layer {
	return Layer{Channel: 0, Radius: 50, FrequencyHz: 30, Properties: properties, Compression: CompressionNone}
}

func DetailedLayer(properties ...string) Layer {
	return Layer{Channel: 1, Radius: 150, FrequencyHz: 15, Properties: properties, Compression: CompressionDelta}
}

func NormalLayer(properties ...string) Layer {
	return Layer{Channel: 2, Radius: 300, FrequencyHz: 5, Properties: properties, Compression: CompressionDelta}
}

func MinimalLayer(properties ...string) Layer {
	return Layer{Channel: 3, Radius: 1000, FrequencyHz: 1, Properties: properties, Compression: CompressionQuantized}
}

// Destination controls where an emitted instance event is delivered,
// to the transport layer.
type Destination int

const (
	DestinationNone Destination = iota
	DestinationServer
	DestinationClient
	DestinationBoth
)

func (d Destination) includesServer() bool { return d == DestinationServer || d == DestinationBoth }
func (d Destination) includesClient() bool { return d == DestinationClient || d == DestinationBoth }

// Object is the capability interface every replicated entity must
// satisfy. A heterogeneous population of game objects is dispatched
// dynamically over this interface rather than a closed type switch. The
// Instance Manager holds objects by this interface, never by concrete
// type.
type Object interface {
	// TypeName keys type-scoped handlers (gorc events).
	TypeName() string
	// Position returns the object's current authoritative position.
	Position() geom.Vec3
	// UpdatePosition sets a new authoritative position.
	UpdatePosition(geom.Vec3)
	// Layers returns the object's declared replication layers. The
	// returned slice must not be mutated by the caller.
	Layers() []Layer
	// ProjectForLayer produces a deterministic byte payload for the
	// given channel's declared property set.
	ProjectForLayer(layer Layer) ([]byte, error)
	// Clone returns an independent copy, used when the caller needs to
	// hand the instance manager an owned value.
	Clone() Object
}

// MaxRadius returns the largest declared layer radius, used by the
// Instance Manager to bound spatial queries.
func MaxRadius(o Object) float64 {
	var max float64
	for _, l := range o.Layers() {
		if l.Radius > max {
			max = l.Radius
		}
	}
	return max
}

// validateLayers enforces the channel-uniqueness invariant from
// that layer channels are unique within an object.
func validateLayers(layers []Layer) error {
	seen := make(map[Channel]bool, len(layers))
	for _, l := range layers {
		if !ValidChannel(l.Channel) {
			return fmt.Errorf("%w: channel %d out of range", ErrInvalidArgument, l.Channel)
		}
		if l.Radius <= 0 {
			return fmt.Errorf("%w: channel %d radius must be positive", ErrInvalidArgument, l.Channel)
		}
		if seen[l.Channel] {
			return fmt.Errorf("%w: duplicate channel %d", ErrInvalidArgument, l.Channel)
		}
		seen[l.Channel] = true
	}
	return nil
}
