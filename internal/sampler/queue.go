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
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrQueueClosed is returned by Send and Receive once the queue is closed.
var ErrQueueClosed = errors.New("sample queue closed")

// Queue is a bounded multi-producer queue of Samples with a single guarded
// receiving end. Every Sample that is sent is received by at most one
// caller; there is no fan-out.
type Queue struct {
	samples chan *Sample
	done    chan struct{}

	// guard serialises receivers. Waiters are admitted in FIFO order and
	// the guard is held only while removing the head, never while the
	// caller streams the Sample.
	guard *semaphore.Weighted

	// sendMu lets Close wait out in-flight senders before draining, so no
	// Sample is left buffered with an open handle.
	sendMu    sync.RWMutex
	closeOnce sync.Once
}

// NewQueue returns a queue holding at most capacity Samples. Capacities
// below one are raised to one.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		samples: make(chan *Sample, capacity),
		done:    make(chan struct{}),
		guard:   semaphore.NewWeighted(1),
	}
}

// Send enqueues s, blocking while the queue is full. It returns
// ErrQueueClosed, without taking ownership of s, once the queue is closed.
func (q *Queue) Send(s *Sample) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()

	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.samples <- s:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Receive removes the head Sample, blocking until one is available. It
// returns ErrQueueClosed once the queue is closed, or ctx's error if the
// caller stops waiting first.
func (q *Queue) Receive(ctx context.Context) (*Sample, error) {
	start := time.Now()
	if err := q.guard.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer q.guard.Release(1)

	select {
	case <-q.done:
		return nil, ErrQueueClosed
	default:
	}

	select {
	case s := <-q.samples:
		recordDequeueWait(ctx, time.Since(start))
		return s, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close moves the queue to its terminal state and closes any Samples still
// buffered. Blocked senders and receivers return ErrQueueClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)

		q.sendMu.Lock()
		defer q.sendMu.Unlock()

		drained := 0
		for {
			select {
			case s := <-q.samples:
				_ = s.Close()
				drained++
			default:
				slog.Debug("Sample queue closed", slog.Int("drained", drained))
				return
			}
		}
	})
}

// Done is closed when the queue is closed.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Len is the number of buffered Samples.
func (q *Queue) Len() int {
	return len(q.samples)
}

func (q *Queue) Cap() int {
	return cap(q.samples)
}
