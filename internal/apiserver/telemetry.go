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

package apiserver

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	imagesServed   metric.Int64Counter
	bytesServed    metric.Int64Counter
	requestsFailed metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/Z3NTL3/img-shuffle/internal/apiserver")

	var err error
	imagesServed, err = meter.Int64Counter(
		"imgshuffle.api.images.served",
		metric.WithDescription("Number of images streamed to clients"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create images.served counter: %w", err))
	}

	bytesServed, err = meter.Int64Counter(
		"imgshuffle.api.bytes.served",
		metric.WithUnit("By"),
		metric.WithDescription("Image bytes written to clients"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create bytes.served counter: %w", err))
	}

	requestsFailed, err = meter.Int64Counter(
		"imgshuffle.api.requests.failed",
		metric.WithDescription("Number of requests answered with an error body"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create requests.failed counter: %w", err))
	}
}

func recordServed(ctx context.Context, route string, n int64) {
	attrs := metric.WithAttributes(attribute.String("route", route))
	imagesServed.Add(ctx, 1, attrs)
	bytesServed.Add(ctx, n, attrs)
}

func recordFailure(ctx context.Context, route string, kind ErrorKind) {
	requestsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("kind", string(kind)),
	))
}
