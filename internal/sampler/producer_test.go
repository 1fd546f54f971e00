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
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Z3NTL3/img-shuffle/internal/catalog"
)

type fakeCatalog struct {
	entries  []string
	failOpen map[string]bool
	opens    atomic.Int64
	failures atomic.Int64
}

func (c *fakeCatalog) Pick(r *rand.Rand) (string, bool) {
	if len(c.entries) == 0 {
		return "", false
	}
	return c.entries[r.IntN(len(c.entries))], true
}

func (c *fakeCatalog) Open(_ context.Context, entry string) (io.ReadCloser, error) {
	c.opens.Add(1)
	if c.failOpen[entry] {
		c.failures.Add(1)
		return nil, errors.New("permission denied")
	}
	return io.NopCloser(strings.NewReader(entry)), nil
}

func waitForPool(t *testing.T, p *Pool) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("producers did not exit after the queue closed")
	}
	assert.Zero(t, p.Running())
}

func TestPoolFillsQueueToCapacity(t *testing.T) {
	cat := &fakeCatalog{entries: []string{"a", "b", "c"}}
	q := NewQueue(4)
	pool := NewPool(Config{Producers: 6, QueueSize: 4, IdleWait: time.Millisecond}, q, cat)
	pool.Start(context.Background())

	require.Eventually(t, func() bool { return q.Len() == q.Cap() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 6, pool.Running(), "producers blocked on a full queue must stay alive")

	// Producers are parked on Send; the buffer stays at capacity.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, q.Len())

	q.Close()
	waitForPool(t, pool)
}

func TestPoolStopsWhenContextCancelled(t *testing.T) {
	cat := &fakeCatalog{entries: []string{"a"}}
	q := NewQueue(2)
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(Config{Producers: 3, IdleWait: time.Millisecond}, q, cat)
	pool.Start(ctx)

	require.Eventually(t, func() bool { return q.Len() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	waitForPool(t, pool)
	assert.True(t, q.Closed())
	assert.Zero(t, q.Len(), "buffered samples are released on close")
}

func TestEmptyCatalogIdlesWithoutFailing(t *testing.T) {
	cat := &fakeCatalog{}
	q := NewQueue(2)
	pool := NewPool(Config{Producers: 4, IdleWait: 10 * time.Millisecond}, q, cat)
	pool.Start(context.Background())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 4, pool.Running())
	assert.Zero(t, q.Len())
	assert.Zero(t, cat.opens.Load())

	q.Close()
	waitForPool(t, pool)
}

func TestOpenFailuresAreRetried(t *testing.T) {
	cat := &fakeCatalog{
		entries:  []string{"locked", "ok"},
		failOpen: map[string]bool{"locked": true},
	}
	q := NewQueue(8)
	pool := NewPool(Config{Producers: 2, IdleWait: time.Millisecond}, q, cat)
	pool.Start(context.Background())

	require.Eventually(t, func() bool { return q.Len() == q.Cap() }, time.Second, 5*time.Millisecond)
	assert.Positive(t, cat.failures.Load())

	for range q.Cap() {
		s, err := q.Receive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", s.Entry)
		_ = s.Close()
	}

	q.Close()
	waitForPool(t, pool)
}

func TestAllOpensFailingStillExitsOnClose(t *testing.T) {
	cat := &fakeCatalog{
		entries:  []string{"gone"},
		failOpen: map[string]bool{"gone": true},
	}
	q := NewQueue(1)
	pool := NewPool(Config{Producers: 2}, q, cat)
	pool.Start(context.Background())

	require.Eventually(t, func() bool { return cat.failures.Load() > 10 }, time.Second, time.Millisecond)
	q.Close()
	waitForPool(t, pool)
}

func TestConsumerResolvesWithLiveProducer(t *testing.T) {
	cat := &fakeCatalog{entries: []string{"only"}}
	q := NewQueue(1)
	pool := NewPool(Config{Producers: 1}, q, cat)
	pool.Start(context.Background())
	defer func() {
		q.Close()
		waitForPool(t, pool)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for range 50 {
		s, err := q.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, "only", s.Entry)
		_ = s.Close()
	}
}

func TestSampleBytesMatchSourceFile(t *testing.T) {
	dir := t.TempDir()
	want := make([]byte, 256*1024)
	for i := range want {
		want[i] = byte(i * 7)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.bin"), want, 0o644))

	cat, err := catalog.Load(context.Background(), catalog.NewDirSource(dir))
	require.NoError(t, err)

	q := NewQueue(2)
	pool := NewPool(Config{Producers: 2}, q, cat)
	pool.Start(context.Background())
	defer func() {
		q.Close()
		waitForPool(t, pool)
	}()

	s, err := q.Receive(context.Background())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
