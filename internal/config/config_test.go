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

package config_test

import (
	"testing"

	"github.com/USA-RedDragon/replicore/internal/config"
	"github.com/stretchr/testify/assert"
)

// GetConfig is a process-wide singleton loaded once from the
// environment, so this test only verifies the snapshot it returns is
// non-nil and internally consistent, not any particular env override
// (a later test process, or test in this package, may have already
// triggered the load).
func TestGetConfigReturnsStableSnapshot(t *testing.T) {
	t.Parallel()

	first := config.GetConfig()
	second := config.GetConfig()
	assert.Equal(t, *first, *second)

	assert.Greater(t, first.SpatialIndex.CellSize, 0.0)
	assert.Greater(t, first.SpatialIndex.RebuildThreshold, int64(0))
	assert.Greater(t, first.Virtualization.ScanInterval.Seconds(), 0.0)
	assert.NotEmpty(t, first.Metrics.Addr)

	switch first.LogLevel {
	case config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError:
	default:
		t.Fatalf("unexpected log level %q", first.LogLevel)
	}
}
