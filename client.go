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

import "context"

// Client is the high-level entry point: a pool plus one-call helpers for
// the common query shapes. Use a Connection directly for streaming access.
type Client struct {
	pool *Pool
}

// NewClient creates a client with a default-sized pool.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	pool, err := NewPool(cfg, 0, 0, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{pool: pool}, nil
}

// NewClientDSN creates a client from a DSN.
func NewClientDSN(dsn string, opts ...Option) (*Client, error) {
	pool, err := NewPoolDSN(dsn, 0, 0, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{pool: pool}, nil
}

// Pool exposes the underlying pool for manual acquire/release.
func (c *Client) Pool() *Pool { return c.pool }

// Query runs a statement and returns every result row. Params substitute
// {name} placeholders.
func (c *Client) Query(ctx context.Context, query string, params map[string]any) ([][]any, error) {
	var rows [][]any
	err := c.pool.WithConnection(ctx, func(conn *Connection) error {
		cur := conn.Cursor()
		defer cur.Close()
		if err := cur.Execute(ctx, query, params); err != nil {
			return err
		}
		var fetchErr error
		rows, fetchErr = cur.FetchAll(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryRow runs a statement expected to produce at most one row.
func (c *Client) QueryRow(ctx context.Context, query string, params map[string]any) ([]any, error) {
	var row []any
	err := c.pool.WithConnection(ctx, func(conn *Connection) error {
		cur := conn.Cursor()
		defer cur.Close()
		if err := cur.Execute(ctx, query, params); err != nil {
			return err
		}
		var fetchErr error
		row, fetchErr = cur.FetchOne(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Execute runs a statement and discards its result.
func (c *Client) Execute(ctx context.Context, query string, params map[string]any) error {
	return c.pool.WithConnection(ctx, func(conn *Connection) error {
		_, err := conn.Execute(ctx, query, params)
		return err
	})
}

// Insert runs an INSERT statement with a batch of rows.
func (c *Client) Insert(ctx context.Context, query string, rows [][]any) (int64, error) {
	var n int64
	err := c.pool.WithConnection(ctx, func(conn *Connection) error {
		var insertErr error
		n, insertErr = conn.Insert(ctx, query, rows)
		return insertErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Cable creates a background batching inserter over the client's pool.
func (c *Client) Cable(query string) *Cable {
	return c.pool.Cable(query)
}

// Ping checks server liveness through one pooled connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.WithConnection(ctx, func(conn *Connection) error {
		return conn.Ping(ctx)
	})
}

// Close shuts the pool down.
func (c *Client) Close(ctx context.Context) error {
	return c.pool.Shutdown(ctx)
}
