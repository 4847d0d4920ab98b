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
	"log/slog"
	"net/http"
	"sync"

	"github.com/USA-RedDragon/replicore/internal/replicore"
	"github.com/gorilla/websocket"
)

const wsBufferSize = 1024

// WebSocket is an illustrative Adapter backed by gorilla/websocket. It
// demonstrates how a real transport plugs into the core's Sender
// interface; it is not itself part of the replication core and carries
// no knowledge of zones, channels beyond routing, or subscriptions.
type WebSocket struct {
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[replicore.ObserverID]*wsConn
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// NewWebSocket creates an adapter. checkOrigin, if non-nil, is used as
// the upgrader's CheckOrigin callback; pass nil to accept every origin
// (only appropriate for local development).
func NewWebSocket(checkOrigin func(r *http.Request) bool) *WebSocket {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WebSocket{
		conns: make(map[replicore.ObserverID]*wsConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsBufferSize,
			WriteBufferSize: wsBufferSize,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Accept upgrades an incoming HTTP request to a WebSocket connection
// and registers it under observer. The caller is expected to have
// already authenticated the request and minted the ObserverID.
// Accept blocks, pumping inbound frames until the connection closes or
// ctx is canceled; call it from its own goroutine per connection.
func (w *WebSocket) Accept(ctx context.Context, observer replicore.ObserverID, rw http.ResponseWriter, r *http.Request) error {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return fmt.Errorf("%w: upgrade failed: %v", replicore.ErrTransport, err)
	}
	wc := &wsConn{conn: conn}

	w.mu.Lock()
	w.conns[observer] = wc
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.conns, observer)
		w.mu.Unlock()
		if err := conn.Close(); err != nil {
			slog.Error("failed to close websocket", "observer_id", observer.String(), "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	return nil
}

// SendToObserver implements replicore.Sender.
func (w *WebSocket) SendToObserver(ctx context.Context, observer replicore.ObserverID, channel replicore.Channel, payload []byte) error {
	w.mu.RLock()
	conn, ok := w.conns[observer]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: observer %s not connected", replicore.ErrTransport, observer)
	}
	if err := conn.writeMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", replicore.ErrTransport, err)
	}
	return nil
}

// Broadcast implements Adapter.
func (w *WebSocket) Broadcast(ctx context.Context, channel replicore.Channel, payload []byte) error {
	w.mu.RLock()
	targets := make([]replicore.ObserverID, 0, len(w.conns))
	for id := range w.conns {
		targets = append(targets, id)
	}
	w.mu.RUnlock()

	var firstErr error
	for _, id := range targets {
		if err := w.SendToObserver(ctx, id, channel, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Disconnect implements Adapter, closing the underlying connection if
// still present. A missing observer is a no-op.
func (w *WebSocket) Disconnect(ctx context.Context, observer replicore.ObserverID) error {
	w.mu.Lock()
	conn, ok := w.conns[observer]
	delete(w.conns, observer)
	w.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.conn.Close()
}
