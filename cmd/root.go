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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/USA-RedDragon/replicore/internal/config"
	"github.com/USA-RedDragon/replicore/internal/logging"
	"github.com/USA-RedDragon/replicore/internal/metrics"
	"github.com/USA-RedDragon/replicore/internal/replicore"
	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownDeadline = 30 * time.Second

// NewCommand builds the root cobra command.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "replicore",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("replicore - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg := config.GetConfig()
	logging.Setup(cfg)

	scheduler, err := setupScheduler()
	if err != nil {
		return err
	}

	m := metrics.New()
	metricsServer := metrics.NewServer(cfg)

	core := newCore(cfg, m)

	registerVirtualizationJobs(scheduler, core, cfg.Virtualization.ScanInterval)
	scheduler.Start()

	var eg errgroup.Group
	if cfg.Metrics.Enabled {
		eg.Go(func() error {
			slog.Info("starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down metrics server", "error", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		slog.Error("failed to shut down scheduler", "error", err)
	}

	if err := eg.Wait(); err != nil {
		slog.Error("background service error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// setupScheduler creates the job scheduler driving periodic
// virtualization scans.
func setupScheduler() (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return scheduler, nil
}

// core bundles the seven components into the single object a
// deployment wires a transport adapter against.
type core struct {
	Instances      *replicore.InstanceManager
	Virtualization *replicore.VirtualizationManager
	Subscriptions  *replicore.SubscriptionManager
	Bus            *replicore.EventBus
	Propagation    *replicore.PropagationLayer
	metrics        *metrics.Metrics
}

func newCore(cfg *config.Config, m *metrics.Metrics) *core {
	bus := replicore.NewEventBus(func(tag replicore.EventTag, err error) {
		m.RecordHandlerError(string(tag.Scope))
	})

	// No transport sender is wired by default; a deployment calls
	// Propagation.SetSender once its transport adapter (e.g.
	// transport.NewWebSocket) is constructed.
	propagation := replicore.NewPropagationLayer(bus, nil)

	virtualization := replicore.NewVirtualizationManager(
		cfg.Virtualization.OverlapThreshold,
		cfg.Virtualization.DensityThreshold,
		replicore.WithMaxVirtualZoneRadius(cfg.Virtualization.MaxVirtualZoneRadius),
		replicore.WithMaxObjectsPerVirtualZone(cfg.Virtualization.MaxObjectsPerVirtualZone),
	)

	instances := replicore.NewInstanceManager(
		cfg.SpatialIndex.CellSize,
		cfg.SpatialIndex.RebuildThreshold,
		replicore.WithHysteresis(cfg.HysteresisFactor),
		replicore.WithZoneDeltaSink(propagation),
		replicore.WithVirtualizationLookup(virtualization.SuperZoneFor),
	)
	subscriptions := replicore.NewSubscriptionManager(0, 0, 0)

	// The Propagation Layer needs the Instance Manager to enumerate
	// subscribers and the Subscription Manager to order delivery by
	// priority; both are wired in after construction since the Instance
	// Manager itself depends on the Propagation Layer as its delta sink.
	propagation.SetInstances(instances)
	propagation.SetSubscriptions(subscriptions)

	return &core{
		Instances:      instances,
		Virtualization: virtualization,
		Subscriptions:  subscriptions,
		Bus:            bus,
		Propagation:    propagation,
		metrics:        m,
	}
}

// registerVirtualizationJobs schedules a periodic scan of every
// channel's zone population, merging and splitting super-zones.
func registerVirtualizationJobs(scheduler gocron.Scheduler, c *core, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	_, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx := context.Background()
			for ch := replicore.Channel(0); ch < replicore.ChannelCount; ch++ {
				liberated := c.Virtualization.Scan(c.Instances, ch)
				for _, objID := range liberated {
					// Force the Instance Manager to re-evaluate this
					// object's per-observer membership now that it's no
					// longer covered by a super-zone's merged feed.
					if pos, ok := c.Instances.ObjectPosition(objID); ok {
						if _, _, _, err := c.Instances.MoveObject(ctx, objID, pos); err != nil {
							slog.Error("failed to re-register liberated object", "object_id", objID.String(), "error", err)
						}
					}
				}
			}
			c.metrics.VirtualizationScansTotal.Inc()
			c.metrics.SuperZonesGauge.Set(float64(c.Virtualization.SuperZoneCount()))
		}),
	)
	if err != nil {
		slog.Error("failed to schedule virtualization scan", "error", err)
	}
}
