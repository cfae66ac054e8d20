/*
 * Copyright 2024 Glasshouse, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package glasshouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolAcquireRelease(t *testing.T) {
	s := startMockServer(t, nil)
	pool, err := NewPool(s.config(), 1, 2)
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, pool.Size())
	require.Zero(t, pool.Free())

	_, err = conn.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	pool.Release(conn)
	require.Equal(t, 1, pool.Free())

	// The idle connection is reused rather than redialed.
	again, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.Same(t, conn, again)
	pool.Release(again)
}

func TestPoolStartup(t *testing.T) {
	s := startMockServer(t, nil)
	pool, err := NewPool(s.config(), 3, 5)
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	require.NoError(t, pool.Startup(context.Background()))
	require.Equal(t, 3, pool.Size())
	require.Equal(t, 3, pool.Free())
}

func TestPoolDefaultsAndBounds(t *testing.T) {
	s := startMockServer(t, nil)
	pool, err := NewPool(s.config(), 0, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultPoolMinSize, pool.minSize)
	require.Equal(t, DefaultPoolMaxSize, pool.maxSize)
	require.NoError(t, pool.Shutdown(context.Background()))

	_, err = NewPool(s.config(), 5, 2)
	require.Error(t, err)
	_, err = NewPool(s.config(), -1, 2)
	require.Error(t, err)
}

func TestPoolExhaustionBlocks(t *testing.T) {
	s := startMockServer(t, nil)
	pool, err := NewPool(s.config(), 1, 1)
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(conn)
	again, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(again)
}

func TestPoolDiscardsDeadConnections(t *testing.T) {
	s := startMockServer(t, nil)
	pool, err := NewPool(s.config(), 1, 2)
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	pool.Release(conn)
	require.Zero(t, pool.Size())
	require.Zero(t, pool.Free())

	fresh, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, fresh.Connected())
	pool.Release(fresh)
}

func TestPoolConcurrentWorkers(t *testing.T) {
	s := startMockServer(t, nil)
	pool, err := NewPool(s.config(), 1, 4)
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- pool.WithConnection(context.Background(), func(conn *Connection) error {
				_, err := conn.Execute(context.Background(), "SELECT 1", nil)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.LessOrEqual(t, pool.Size(), 4)
	require.Len(t, s.receivedQueries(), 16)
}

func TestPoolShutdown(t *testing.T) {
	s := startMockServer(t, nil)
	pool, err := NewPool(s.config(), 1, 2)
	require.NoError(t, err)
	require.NoError(t, pool.Startup(context.Background()))

	require.NoError(t, pool.Shutdown(context.Background()))
	require.Zero(t, pool.Size())
	_, err = pool.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)
	require.ErrorIs(t, pool.Shutdown(context.Background()), ErrPoolClosed)
}

func TestPoolShutdownWaitsForBusy(t *testing.T) {
	s := startMockServer(t, nil)
	pool, err := NewPool(s.config(), 1, 2)
	require.NoError(t, err)

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- pool.Shutdown(context.Background())
	}()

	select {
	case err := <-done:
		t.Fatalf("shutdown returned before release: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	pool.Release(conn)
	require.NoError(t, <-done)
}
