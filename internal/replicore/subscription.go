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

import "github.com/USA-RedDragon/replicore/internal/geom"

// Priority classifies how urgently a subscription's updates should be
// delivered relative to others competing for the same transport
// budget. Distance is the primary signal; relationship and interest
// are independent boosts, and the subscription's final priority is
// whichever of the three ranks highest.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

func maxPriority(a, b, c Priority) Priority {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// Default absolute distance bands, in world units. An observer closer
// than DefaultCriticalDistance to an object's center is Critical;
// progressively further bands step down through High and Normal, with
// anything past DefaultNormalDistance classified Low absent a
// relationship or interest boost.
const (
	DefaultCriticalDistance = 50.0
	DefaultHighDistance     = 150.0
	DefaultNormalDistance   = 300.0
)

// RelationshipHint names a non-spatial reason a subscription deserves
// a priority floor independent of distance: the observer's own
// character is always owned, teammates and guildmates get a smaller
// boost. The zero value carries no boost.
type RelationshipHint string

const (
	RelationshipNone  RelationshipHint = ""
	RelationshipOwned RelationshipHint = "owned"
	RelationshipTeam  RelationshipHint = "team"
	RelationshipGuild RelationshipHint = "guild"
)

// InterestHint lets a caller boost priority when an observer has
// expressed explicit interest in an object's type or identity, separate
// from both distance and relationship (e.g. a quest tracker pinning a
// distant NPC to high priority).
type InterestHint int

const (
	InterestNone InterestHint = iota
	InterestPinned
)

// ClassifyInput bundles the signals the Subscription Manager considers
// when assigning a priority to one (observer, object, channel) triple.
type ClassifyInput struct {
	ObserverPos  geom.Vec3
	ObjectCenter geom.Vec3
	Relationship RelationshipHint
	Interest     InterestHint
}

// SubscriptionManager turns raw zone membership (spatial proximity)
// into a priority ranking the Propagation Layer and a transport adapter
// can use to decide what to send first when bandwidth is constrained.
// It holds no membership state itself — that's the Instance Manager's
// job — it's a pure classification policy over the inputs it's given.
type SubscriptionManager struct {
	criticalDistance float64
	highDistance     float64
	normalDistance   float64

	relationshipPriority map[RelationshipHint]Priority
}

// SubscriptionManagerOption configures a SubscriptionManager at
// construction.
type SubscriptionManagerOption func(*SubscriptionManager)

// WithRelationshipPriority overrides the priority floor assigned to
// each RelationshipHint. Hints absent from the map carry no boost.
func WithRelationshipPriority(m map[RelationshipHint]Priority) SubscriptionManagerOption {
	return func(s *SubscriptionManager) { s.relationshipPriority = m }
}

func defaultRelationshipPriority() map[RelationshipHint]Priority {
	return map[RelationshipHint]Priority{
		RelationshipOwned: PriorityCritical,
		RelationshipTeam:  PriorityHigh,
		RelationshipGuild: PriorityNormal,
	}
}

// NewSubscriptionManager creates a manager with the given absolute
// distance bands, in ascending order. Any band that isn't positive and
// strictly greater than the one before it falls back to the defaults
// (50 / 150 / 300).
func NewSubscriptionManager(criticalDistance, highDistance, normalDistance float64, opts ...SubscriptionManagerOption) *SubscriptionManager {
	if criticalDistance <= 0 || highDistance <= criticalDistance || normalDistance <= highDistance {
		criticalDistance, highDistance, normalDistance = DefaultCriticalDistance, DefaultHighDistance, DefaultNormalDistance
	}
	s := &SubscriptionManager{
		criticalDistance:     criticalDistance,
		highDistance:         highDistance,
		normalDistance:       normalDistance,
		relationshipPriority: defaultRelationshipPriority(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SubscriptionManager) distancePriority(in ClassifyInput) Priority {
	d := geom.Distance(in.ObserverPos, in.ObjectCenter)
	switch {
	case d < s.criticalDistance:
		return PriorityCritical
	case d < s.highDistance:
		return PriorityHigh
	case d < s.normalDistance:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

func (s *SubscriptionManager) relationshipPriorityFor(in ClassifyInput) Priority {
	if in.Relationship == RelationshipNone {
		return PriorityLow
	}
	return s.relationshipPriority[in.Relationship]
}

func (s *SubscriptionManager) interestPriorityFor(in ClassifyInput) Priority {
	if in.Interest == InterestPinned {
		return PriorityHigh
	}
	return PriorityLow
}

// Classify assigns a Priority to one subscription: the highest of its
// distance band, its relationship boost, and its interest boost. None
// of the three short-circuits the others — an owned object that's also
// far away is still Critical, but a merely-targeted object that's also
// deep inside its critical band isn't capped at the relationship's
// floor.
func (s *SubscriptionManager) Classify(in ClassifyInput) Priority {
	return maxPriority(s.distancePriority(in), s.relationshipPriorityFor(in), s.interestPriorityFor(in))
}

// RankedSubscription pairs a delta target with its assigned priority,
// the unit the Propagation Layer sorts before handing batches to a
// transport adapter under load.
type RankedSubscription struct {
	Observer ObserverID
	Channel  Channel
	Priority Priority
}

// Rank classifies a batch of subscriptions in one pass, for callers
// that want a ready-to-sort slice rather than calling Classify per
// item inline.
func (s *SubscriptionManager) Rank(inputs map[ObserverID]ClassifyInput, channel Channel) []RankedSubscription {
	out := make([]RankedSubscription, 0, len(inputs))
	for observerID, in := range inputs {
		out = append(out, RankedSubscription{
			Observer: observerID,
			Channel:  channel,
			Priority: s.Classify(in),
		})
	}
	return out
}
