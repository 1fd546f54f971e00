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

package imagesearch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	stageSearch = "search"
	stageFetch  = "fetch"
)

var upstreamDuration metric.Float64Histogram

func init() {
	meter := otel.Meter("github.com/Z3NTL3/img-shuffle/internal/imagesearch")

	var err error
	upstreamDuration, err = meter.Float64Histogram(
		"imgshuffle.imagesearch.upstream.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of outbound search and image fetch calls"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upstream.duration histogram: %w", err))
	}
}

func recordUpstream(ctx context.Context, stage string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	upstreamDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}
