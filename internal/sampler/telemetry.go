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

package sampler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Z3NTL3/img-shuffle/internal/sampler"

var (
	samplesProduced metric.Int64Counter
	openFailures    metric.Int64Counter
	dequeueWait     metric.Float64Histogram
)

func init() {
	meter := otel.Meter(meterName)

	var err error
	samplesProduced, err = meter.Int64Counter(
		"imgshuffle.sampler.samples.produced",
		metric.WithDescription("Number of samples opened and enqueued by producers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create samples.produced counter: %w", err))
	}

	openFailures, err = meter.Int64Counter(
		"imgshuffle.sampler.open.failures",
		metric.WithDescription("Number of catalog entries producers failed to open"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create open.failures counter: %w", err))
	}

	dequeueWait, err = meter.Float64Histogram(
		"imgshuffle.sampler.dequeue.wait",
		metric.WithUnit("s"),
		metric.WithDescription("Time a request spent waiting for the guard and a sample"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create dequeue.wait histogram: %w", err))
	}
}

// RegisterQueueMetrics exports q's depth and capacity as gauges. Call it
// once for the process queue.
func RegisterQueueMetrics(q *Queue) error {
	meter := otel.Meter(meterName)
	_, err := meter.Int64ObservableGauge(
		"imgshuffle.sampler.queue.depth",
		metric.WithDescription("Number of samples buffered in the queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(q.Len()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue.depth gauge: %w", err)
	}

	_, err = meter.Int64ObservableGauge(
		"imgshuffle.sampler.queue.capacity",
		metric.WithDescription("Configured capacity of the sample queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(q.Cap()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue.capacity gauge: %w", err)
	}
	return nil
}

func recordProduced(ctx context.Context) {
	samplesProduced.Add(ctx, 1)
}

func recordOpenFailure(ctx context.Context) {
	openFailures.Add(ctx, 1)
}

func recordDequeueWait(ctx context.Context, d time.Duration) {
	dequeueWait.Record(ctx, d.Seconds())
}
