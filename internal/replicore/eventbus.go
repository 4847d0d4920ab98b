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
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// EventScope classifies the origin of an event tag, mirroring the
// event categories a connection-aware plugin system needs to tell
// apart: built-in engine events, client-originated events, events
// raised by a third-party plugin, and the two gorc-specific tags for
// zone transitions on an object or an object type as a whole.
type EventScope string

const (
	ScopeCore         EventScope = "core"
	ScopeClient       EventScope = "client"
	ScopePlugin       EventScope = "plugin"
	ScopeGorc         EventScope = "gorc"
	ScopeGorcInstance EventScope = "gorc_instance"
)

// EventTag is the structured key handlers register against and
// publishers dispatch on. Name is scope-specific — for ScopeGorcInstance
// it's conventionally "<object_id>:<channel>:<enter|exit>".
type EventTag struct {
	Scope EventScope
	Name  string
}

func (t EventTag) String() string { return string(t.Scope) + ":" + t.Name }

// Handler receives a published event. ctx carries the tracing span for
// the publish call; payload is the event-specific value, typed per tag
// by convention between publisher and subscribers.
type Handler func(ctx context.Context, tag EventTag, payload any)

// EventBus is a concurrent, keyed pub/sub dispatcher. Publish never
// blocks on handler execution: each matching handler runs in its own
// goroutine, so a slow or panicking handler cannot stall the publisher
// or its siblings.
type EventBus struct {
	handlers *xsync.Map[EventTag, *handlerList]

	mu    sync.Mutex
	nextID uint64

	onHandlerError func(tag EventTag, err error)
}

// handlerList holds a small slice of registered handlers under its own
// lock. Most tags have one or two subscribers, so a slice beats a map
// for iteration cost and avoids an allocation-heavy nested map per tag.
type handlerList struct {
	mu  sync.RWMutex
	ids []uint64
	fns []Handler
}

func (h *handlerList) add(id uint64, fn Handler) {
	h.mu.Lock()
	h.ids = append(h.ids, id)
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *handlerList) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.ids {
		if existing == id {
			h.ids = append(h.ids[:i], h.ids[i+1:]...)
			h.fns = append(h.fns[:i], h.fns[i+1:]...)
			return
		}
	}
}

func (h *handlerList) snapshot() []Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Handler, len(h.fns))
	copy(out, h.fns)
	return out
}

func (h *handlerList) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.fns)
}

// NewEventBus creates an empty bus. onHandlerError, if non-nil, is
// called whenever a handler panics or an invoked handler's recovered
// panic is converted to an error; pass nil to only log.
func NewEventBus(onHandlerError func(tag EventTag, err error)) *EventBus {
	return &EventBus{
		handlers:       xsync.NewMap[EventTag, *handlerList](),
		onHandlerError: onHandlerError,
	}
}

// Subscription is an opaque handle for Unsubscribe.
type Subscription struct {
	tag EventTag
	id  uint64
}

// Subscribe registers fn against tag and returns a handle to remove it
// later. Multiple handlers may subscribe to the same tag; all run on
// every publish to that tag.
func (b *EventBus) Subscribe(tag EventTag, fn Handler) Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	list, _ := b.handlers.LoadOrStore(tag, &handlerList{})
	list.add(id, fn)
	return Subscription{tag: tag, id: id}
}

// Unsubscribe removes a previously registered handler. Safe to call
// more than once; the second call is a no-op.
func (b *EventBus) Unsubscribe(sub Subscription) {
	if list, ok := b.handlers.Load(sub.tag); ok {
		list.remove(sub.id)
	}
}

// Publish dispatches payload to every handler currently subscribed to
// tag. Each handler runs in its own goroutine (fire-and-forget); Publish
// returns as soon as the handler list snapshot is taken, not after
// handlers finish. A handler panic is recovered, logged, and reported
// through onHandlerError wrapped in ErrHandler — it never reaches the
// publisher or other handlers.
func (b *EventBus) Publish(ctx context.Context, tag EventTag, payload any) {
	list, ok := b.handlers.Load(tag)
	if !ok {
		return
	}
	handlers := list.snapshot()
	for _, fn := range handlers {
		go b.invoke(ctx, tag, fn, payload)
	}
}

func (b *EventBus) invoke(ctx context.Context, tag EventTag, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrHandler, r)
			slog.Error("event handler panicked", "tag", tag.String(), "error", err)
			if b.onHandlerError != nil {
				b.onHandlerError(tag, err)
			}
		}
	}()
	fn(ctx, tag, payload)
}

// HandlerCount reports how many handlers are registered for tag, for
// metrics and tests.
func (b *EventBus) HandlerCount(tag EventTag) int {
	list, ok := b.handlers.Load(tag)
	if !ok {
		return 0
	}
	return list.len()
}

// GorcInstanceTag builds the conventional event tag for a zone
// transition on a specific object: scope gorc_instance, name
// "<object_id>:<channel>:enter" or "...:exit".
func GorcInstanceTag(id ObjectID, channel Channel, entering bool) EventTag {
	suffix := "exit"
	if entering {
		suffix = "enter"
	}
	return EventTag{Scope: ScopeGorcInstance, Name: fmt.Sprintf("%s:%d:%s", id.String(), channel, suffix)}
}

// GorcTypeTag builds the event tag for a zone transition scoped to an
// object type rather than one instance, letting a type-level handler
// subscribe once instead of per-object.
func GorcTypeTag(typeName string, channel Channel, entering bool) EventTag {
	suffix := "exit"
	if entering {
		suffix = "enter"
	}
	return EventTag{Scope: ScopeGorc, Name: fmt.Sprintf("%s:%d:%s", typeName, channel, suffix)}
}

// GorcTypeNamedTag builds a type-scoped event tag for an arbitrary
// named instance event (a periodic tick, a custom gameplay event) that
// isn't itself a zone-enter or zone-exit transition.
func GorcTypeNamedTag(typeName string, channel Channel, name string) EventTag {
	return EventTag{Scope: ScopeGorc, Name: fmt.Sprintf("%s:%d:%s", typeName, channel, name)}
}
