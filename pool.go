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

	"golang.org/x/sync/semaphore"
)

// Pool default bounds.
const (
	DefaultPoolMinSize = 1
	DefaultPoolMaxSize = 10
)

// Pool is a bounded set of connections. Acquire blocks while all connections
// are in use; waiters are served in arrival order.
type Pool struct {
	cfg     *Config
	opts    []Option
	logger  Logger
	minSize int
	maxSize int

	sem *semaphore.Weighted

	mu     sync.Mutex
	idle   []*Connection
	total  int
	closed bool
}

// NewPool builds a pool over a connection config. Sizes of zero take the
// defaults; minSize connections are opened eagerly by Startup.
func NewPool(cfg *Config, minSize, maxSize int, opts ...Option) (*Pool, error) {
	if minSize < 0 || maxSize < 0 || (maxSize > 0 && minSize > maxSize) {
		return nil, &InterfaceError{Message: "pool: invalid size bounds"}
	}
	if minSize == 0 {
		minSize = DefaultPoolMinSize
	}
	if maxSize == 0 {
		maxSize = DefaultPoolMaxSize
	}
	if minSize > maxSize {
		minSize = maxSize
	}
	c := *cfg
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	full := c.withDefaults()
	return &Pool{
		cfg:     full,
		opts:    opts,
		logger:  full.Logger,
		minSize: minSize,
		maxSize: maxSize,
		sem:     semaphore.NewWeighted(int64(maxSize)),
	}, nil
}

// NewPoolDSN builds a pool from a DSN.
func NewPoolDSN(dsn string, minSize, maxSize int, opts ...Option) (*Pool, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewPool(cfg, minSize, maxSize, opts...)
}

// Startup opens the minimum number of connections eagerly. It is optional;
// Acquire opens connections on demand.
func (p *Pool) Startup(ctx context.Context) error {
	conns := make([]*Connection, 0, p.minSize)
	for len(conns) < p.minSize {
		conn, err := p.Acquire(ctx)
		if err != nil {
			for _, c := range conns {
				p.Release(c)
			}
			return err
		}
		conns = append(conns, conn)
	}
	for _, c := range conns {
		p.Release(c)
	}
	return nil
}

// Acquire returns a connection for exclusive use. The caller must hand it
// back with Release. Acquire blocks while the pool is exhausted, until the
// context is done.
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.total++
	p.mu.Unlock()

	conn, err := NewConnection(p.cfg, p.opts...)
	if err == nil {
		err = conn.Connect(ctx)
	}
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, err
	}
	p.logger.Debugf("pool: opened connection %d/%d", p.Size(), p.maxSize)
	return conn, nil
}

// Release returns a connection to the pool. Dead connections are discarded
// so a later Acquire dials a fresh one.
func (p *Pool) Release(conn *Connection) {
	p.mu.Lock()
	if p.closed || !conn.Connected() {
		p.total--
		p.mu.Unlock()
		conn.Close()
		p.sem.Release(1)
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
	p.sem.Release(1)
}

// WithConnection acquires a connection, runs fn and releases it.
func (p *Pool) WithConnection(ctx context.Context, fn func(*Connection) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// Size is the number of open connections, idle and in use.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Free is the number of idle connections.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Shutdown waits for in-use connections to come back, then closes
// everything. Acquire fails with ErrPoolClosed afterwards.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	p.mu.Unlock()

	// Holding every permit guarantees no connection is in use.
	if err := p.sem.Acquire(ctx, int64(p.maxSize)); err != nil {
		return err
	}
	defer p.sem.Release(int64(p.maxSize))

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.total = 0
	p.mu.Unlock()
	for _, conn := range idle {
		conn.Close()
	}
	p.logger.Debugf("pool: shut down")
	return nil
}
