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

// Package config loads process configuration from the environment into
// a single immutable snapshot, published behind an atomic singleton so
// every goroutine reads a consistent view without a lock.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel selects the minimum severity the logger emits.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SpatialIndex configures the two grid-backed indices the Instance
// Manager maintains for objects and observers.
type SpatialIndex struct {
	CellSize         float64
	RebuildThreshold int64
}

// Virtualization configures the periodic zone merge/split scan.
type Virtualization struct {
	ScanInterval             time.Duration
	OverlapThreshold         float64
	DensityThreshold         float64
	MaxVirtualZoneRadius     float64
	MaxObjectsPerVirtualZone int
}

// Metrics configures the Prometheus HTTP endpoint.
type Metrics struct {
	Enabled bool
	Addr    string
}

// Config stores the full process configuration, read once at startup
// from the environment.
type Config struct {
	LogLevel       LogLevel
	HysteresisFactor float64
	SpatialIndex   SpatialIndex
	Virtualization Virtualization
	Metrics        Metrics
	OTLPEndpoint   string
	Debug          bool
}

var currentConfig atomic.Value //nolint:gochecknoglobals
var isInit atomic.Bool         //nolint:gochecknoglobals
var loaded atomic.Bool         //nolint:gochecknoglobals

func envFloat(name string, fallback float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envInt64(name string, fallback int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func loadConfig() Config {
	level := LogLevel(strings.ToLower(os.Getenv("REPLICORE_LOG_LEVEL")))
	switch level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		level = LogLevelInfo
	}

	metricsAddr := os.Getenv("REPLICORE_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = "0.0.0.0:9090"
	}

	return Config{
		LogLevel:         level,
		HysteresisFactor: envFloat("REPLICORE_HYSTERESIS", 0.05),
		SpatialIndex: SpatialIndex{
			CellSize:         envFloat("REPLICORE_CELL_SIZE", 100),
			RebuildThreshold: envInt64("REPLICORE_REBUILD_THRESHOLD", 5000),
		},
		Virtualization: Virtualization{
			ScanInterval:             envDuration("REPLICORE_VIRTUALIZATION_INTERVAL", time.Second),
			OverlapThreshold:         envFloat("REPLICORE_OVERLAP_THRESHOLD", 0.3),
			DensityThreshold:         envFloat("REPLICORE_DENSITY_THRESHOLD", 0.3),
			MaxVirtualZoneRadius:     envFloat("REPLICORE_MAX_VIRTUAL_ZONE_RADIUS", 1000),
			MaxObjectsPerVirtualZone: envInt("REPLICORE_MAX_OBJECTS_PER_VIRTUAL_ZONE", 100),
		},
		Metrics: Metrics{
			Enabled: os.Getenv("REPLICORE_METRICS_DISABLED") == "",
			Addr:    metricsAddr,
		},
		OTLPEndpoint: os.Getenv("REPLICORE_OTLP_ENDPOINT"),
		Debug:        os.Getenv("REPLICORE_DEBUG") != "",
	}
}

// GetConfig returns the process-wide configuration, loading it from
// the environment on first call. Every subsequent call returns the
// same immutable snapshot.
func GetConfig() *Config {
	lastInit := isInit.Swap(true)
	if !lastInit {
		currentConfig.Store(loadConfig())
		loaded.Store(true)
	}
	for !loaded.Load() {
		const loadDelay = 10 * time.Millisecond
		time.Sleep(loadDelay)
	}
	cfg, _ := currentConfig.Load().(Config)
	return &cfg
}
