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

// Package metrics exposes the core's runtime behavior as Prometheus
// collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the core publishes.
type Metrics struct {
	ObjectsRegisteredTotal   prometheus.Counter
	ObserversRegisteredTotal prometheus.Counter
	ObjectsGauge             prometheus.Gauge
	ObserversGauge           prometheus.Gauge

	ZoneDeltasTotal *prometheus.CounterVec

	SpatialRebuildsTotal   prometheus.Counter
	SpatialQueryDuration   *prometheus.HistogramVec

	VirtualizationScansTotal prometheus.Counter
	SuperZonesGauge          prometheus.Gauge

	HandlerErrorsTotal *prometheus.CounterVec
	TransportErrorsTotal *prometheus.CounterVec
}

// New creates and registers every collector against the default
// Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		ObjectsRegisteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replicore_objects_registered_total",
			Help: "Total number of objects ever registered.",
		}),
		ObserversRegisteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replicore_observers_registered_total",
			Help: "Total number of observers ever registered.",
		}),
		ObjectsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "replicore_objects",
			Help: "Current number of registered objects.",
		}),
		ObserversGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "replicore_observers",
			Help: "Current number of registered observers.",
		}),
		ZoneDeltasTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replicore_zone_deltas_total",
			Help: "Total number of zone-entry/zone-exit deltas computed.",
		}, []string{"channel", "direction"}),
		SpatialRebuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replicore_spatial_index_rebuilds_total",
			Help: "Total number of bulk spatial index rebuilds triggered.",
		}),
		SpatialQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "replicore_spatial_query_duration_seconds",
			Help:    "Duration of spatial radius queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"index"}),
		VirtualizationScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replicore_virtualization_scans_total",
			Help: "Total number of virtualization scans run.",
		}),
		SuperZonesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "replicore_super_zones",
			Help: "Current number of active super-zones across all channels.",
		}),
		HandlerErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replicore_handler_errors_total",
			Help: "Total number of event handler panics recovered.",
		}, []string{"scope"}),
		TransportErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replicore_transport_errors_total",
			Help: "Total number of transport delivery failures.",
		}, []string{"channel"}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.ObjectsRegisteredTotal,
		m.ObserversRegisteredTotal,
		m.ObjectsGauge,
		m.ObserversGauge,
		m.ZoneDeltasTotal,
		m.SpatialRebuildsTotal,
		m.SpatialQueryDuration,
		m.VirtualizationScansTotal,
		m.SuperZonesGauge,
		m.HandlerErrorsTotal,
		m.TransportErrorsTotal,
	)
}

// RecordZoneDelta increments the zone delta counter for a channel and
// direction ("enter" or "exit").
func (m *Metrics) RecordZoneDelta(channel string, entering bool) {
	direction := "exit"
	if entering {
		direction = "enter"
	}
	m.ZoneDeltasTotal.WithLabelValues(channel, direction).Inc()
}

// RecordHandlerError increments the handler error counter for scope.
func (m *Metrics) RecordHandlerError(scope string) {
	m.HandlerErrorsTotal.WithLabelValues(scope).Inc()
}

// RecordTransportError increments the transport error counter for channel.
func (m *Metrics) RecordTransportError(channel string) {
	m.TransportErrorsTotal.WithLabelValues(channel).Inc()
}
