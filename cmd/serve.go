// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Z3NTL3/img-shuffle/config"
	"github.com/Z3NTL3/img-shuffle/internal/apiserver"
	"github.com/Z3NTL3/img-shuffle/internal/catalog"
	"github.com/Z3NTL3/img-shuffle/internal/debugging"
	"github.com/Z3NTL3/img-shuffle/internal/healthcheck"
	"github.com/Z3NTL3/img-shuffle/internal/imagesearch"
	"github.com/Z3NTL3/img-shuffle/internal/sampler"
)

const conditionCatalogNonEmpty = "catalog_nonempty"

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the image server",
		RunE: func(_ *cobra.Command, _ []string) error {
			doneCtx, doneFx, err := setupTelemetry(serviceName)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(doneCtx, cfg)
		},
	}

	rootCmd.AddCommand(cmd)
}

// serve runs the producer pool, the image API and the health server until
// ctx is cancelled or one of the listeners fails.
func serve(ctx context.Context, cfg *config.Config) error {
	if err := debugging.RunPprof(ctx, cfg.Profiling); err != nil {
		slog.Warn("Profiling disabled", slog.Any("error", err))
	}

	healthServer := healthcheck.NewServer(cfg.Health)
	healthServer.SetReadyCondition(conditionCatalogNonEmpty, false)

	cat, err := loadCatalog(ctx, cfg.Catalog)
	if err != nil {
		return err
	}
	healthServer.SetReadyCondition(conditionCatalogNonEmpty, cat.Len() > 0)

	queue := sampler.NewQueue(cfg.Sampler.QueueSize)
	if err := sampler.RegisterQueueMetrics(queue); err != nil {
		slog.Warn("Failed to register queue metrics", slog.Any("error", err))
	}
	pool := sampler.NewPool(cfg.Sampler, queue, cat)
	pool.Start(ctx)

	api := apiserver.NewServer(cfg.Server, queue, imagesearch.NewClient(cfg.Search))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthServer.Start(gctx)
	})
	g.Go(func() error {
		return api.Run(gctx, func(net.Addr) {
			healthServer.SetStatus(healthcheck.StatusHealthy)
			healthServer.SetReady(true)
		})
	})

	var result *multierror.Error
	if err := g.Wait(); err != nil {
		healthServer.SetStatus(healthcheck.StatusUnhealthy)
		result = multierror.Append(result, err)
	}

	queue.Close()
	if err := pool.Wait(); err != nil {
		result = multierror.Append(result, fmt.Errorf("producer pool: %w", err))
	}
	slog.Info("Image server stopped")
	return result.ErrorOrNil()
}

// loadCatalog lists the configured source. A listing failure leaves the
// service running on an empty catalog unless cfg.Strict is set.
func loadCatalog(ctx context.Context, cfg catalog.Config) (*catalog.Catalog, error) {
	src, err := catalog.NewSource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog source: %w", err)
	}

	cat, err := catalog.Load(ctx, src)
	if err == nil {
		if cat.Len() == 0 {
			slog.Warn("Catalog is empty, random images will wait for entries", slog.String("source", src.String()))
		}
		return cat, nil
	}

	if cfg.Strict || !errors.Is(err, catalog.ErrCatalog) {
		return nil, err
	}
	slog.Error("Catalog unavailable, continuing with an empty catalog",
		slog.String("source", src.String()),
		slog.Any("error", err))
	return catalog.Empty(src), nil
}
