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
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Catalog is what a producer draws from.
type Catalog interface {
	Pick(r *rand.Rand) (entry string, ok bool)
	Open(ctx context.Context, entry string) (io.ReadCloser, error)
}

type Config struct {
	Producers int           `mapstructure:"producers"`
	QueueSize int           `mapstructure:"queue_size"`
	IdleWait  time.Duration `mapstructure:"idle_wait"`
}

func DefaultConfig() Config {
	return Config{
		Producers: 20,
		QueueSize: 20,
		IdleWait:  250 * time.Millisecond,
	}
}

// RunProducer keeps q supplied with Samples drawn from cat until q is
// closed. Open failures are counted and retried straight away after a
// scheduler yield; an empty catalog is polled every idleWait.
func RunProducer(ctx context.Context, q *Queue, cat Catalog, idleWait time.Duration) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	for !q.Closed() {
		entry, ok := cat.Pick(rng)
		if !ok {
			select {
			case <-q.Done():
				return
			case <-time.After(idleWait):
			}
			continue
		}

		body, err := cat.Open(ctx, entry)
		if err != nil {
			recordOpenFailure(ctx)
			slog.Debug("Skipping unreadable catalog entry", slog.String("entry", entry), slog.Any("error", err))
			runtime.Gosched()
			continue
		}

		sample := NewSample(entry, body)
		if err := q.Send(sample); err != nil {
			_ = sample.Close()
			if errors.Is(err, ErrQueueClosed) {
				return
			}
			continue
		}
		recordProduced(ctx)
	}
}

// Pool runs a fixed number of producers against one queue. Cancelling the
// context passed to Start closes the queue, which is what stops them.
type Pool struct {
	cfg     Config
	queue   *Queue
	catalog Catalog

	group   errgroup.Group
	running atomic.Int32
}

func NewPool(cfg Config, queue *Queue, cat Catalog) *Pool {
	if cfg.Producers < 1 {
		cfg.Producers = 1
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = DefaultConfig().IdleWait
	}
	return &Pool{cfg: cfg, queue: queue, catalog: cat}
}

func (p *Pool) Start(ctx context.Context) {
	slog.Info("Starting sample producers",
		slog.Int("producers", p.cfg.Producers),
		slog.Int("queueSize", p.queue.Cap()))

	go func() {
		select {
		case <-ctx.Done():
			p.queue.Close()
		case <-p.queue.Done():
		}
	}()

	for range p.cfg.Producers {
		p.running.Add(1)
		p.group.Go(func() error {
			defer p.running.Add(-1)
			RunProducer(ctx, p.queue, p.catalog, p.cfg.IdleWait)
			return nil
		})
	}
}

// Running is the number of producers that have not exited.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Wait blocks until every producer has exited.
func (p *Pool) Wait() error {
	return p.group.Wait()
}
