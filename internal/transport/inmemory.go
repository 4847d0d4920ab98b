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

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/USA-RedDragon/replicore/internal/replicore"
)

// Delivery is one message handed to an in-process observer.
type Delivery struct {
	Channel replicore.Channel
	Payload []byte
}

// InMemory is a channel-based Adapter with no network I/O, used in
// tests and local demos to exercise the full propagation path without
// a real socket. Each connected observer gets a buffered channel of
// Delivery; SendToObserver/Broadcast never block on a slow or absent
// reader past the buffer.
type InMemory struct {
	mu        sync.RWMutex
	observers map[replicore.ObserverID]chan Delivery
	bufSize   int
}

// NewInMemory creates an adapter whose per-observer channels are
// buffered to bufSize deliveries. A non-positive bufSize defaults to 32.
func NewInMemory(bufSize int) *InMemory {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &InMemory{observers: make(map[replicore.ObserverID]chan Delivery), bufSize: bufSize}
}

// Connect registers observer and returns the channel it should read
// deliveries from. Calling Connect again for an already-connected
// observer replaces its channel.
func (m *InMemory) Connect(observer replicore.ObserverID) <-chan Delivery {
	ch := make(chan Delivery, m.bufSize)
	m.mu.Lock()
	m.observers[observer] = ch
	m.mu.Unlock()
	return ch
}

// SendToObserver implements replicore.Sender.
func (m *InMemory) SendToObserver(ctx context.Context, observer replicore.ObserverID, channel replicore.Channel, payload []byte) error {
	m.mu.RLock()
	ch, ok := m.observers[observer]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: observer %s not connected", replicore.ErrTransport, observer)
	}
	select {
	case ch <- Delivery{Channel: channel, Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w: observer %s delivery buffer full", replicore.ErrTransport, observer)
	}
}

// Broadcast implements Adapter, sending payload to every connected
// observer. A single full buffer doesn't abort the rest of the
// broadcast; the first error, if any, is returned after attempting all.
func (m *InMemory) Broadcast(ctx context.Context, channel replicore.Channel, payload []byte) error {
	m.mu.RLock()
	targets := make([]replicore.ObserverID, 0, len(m.observers))
	for id := range m.observers {
		targets = append(targets, id)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, id := range targets {
		if err := m.SendToObserver(ctx, id, channel, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Disconnect implements Adapter, closing and removing the observer's
// channel. A missing observer is a no-op.
func (m *InMemory) Disconnect(ctx context.Context, observer replicore.ObserverID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.observers[observer]
	if !ok {
		return nil
	}
	delete(m.observers, observer)
	close(ch)
	return nil
}

// ConnectedCount reports the number of currently connected observers.
func (m *InMemory) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}
