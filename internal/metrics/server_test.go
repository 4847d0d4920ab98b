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

package metrics_test

import (
	"context"
	"net"
	"testing"

	"github.com/USA-RedDragon/replicore/internal/config"
	"github.com/USA-RedDragon/replicore/internal/metrics"
)

func TestServerStartPortInUseReturnsError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to occupy a port: %v", err)
	}
	defer ln.Close()

	cfg := &config.Config{Metrics: config.Metrics{Addr: ln.Addr().String()}}
	server := metrics.NewServer(cfg)

	if err := server.Start(); err == nil {
		t.Fatal("expected Start to fail on an already-bound address")
	}
}

func TestServerShutdownBeforeStartIsNotAnError(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Metrics: config.Metrics{Addr: "127.0.0.1:0"}}
	server := metrics.NewServer(cfg)

	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on a never-started server returned an error: %v", err)
	}
}
