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
	"time"
)

// Cable batches rows in the background and inserts them through the pool.
// Small writes coalesce into full blocks, flushed when enough rows pile up
// or the batch interval elapses.
type Cable struct {
	pool  *Pool
	query string

	sendCh chan *cableSend

	// BatchRows is the row count that triggers an immediate flush.
	BatchRows int
	// BatchInterval is how long rows may wait before a flush.
	BatchInterval time.Duration
}

type cableSend struct {
	rows [][]any

	err  chan error
	done chan struct{}
}

// Cable creates a cable for an INSERT statement of the form
// "INSERT INTO t (a, b) VALUES".
func (p *Pool) Cable(query string) *Cable {
	return &Cable{
		pool:          p,
		query:         query,
		sendCh:        make(chan *cableSend),
		BatchRows:     insertBlockRows,
		BatchInterval: time.Second,
	}
}

// Start launches the background flusher. Adjust BatchRows and BatchInterval
// before calling it.
func (c *Cable) Start(ctx context.Context) {
	go func() {
		ticker := time.Tick(c.BatchInterval)

		var pending []*cableSend
		pendingRows := 0
		stop, tick := false, false
		for {
			if tick || pendingRows >= c.BatchRows {
				batch := pending
				go c.flush(ctx, batch)

				tick = false
				pendingRows = 0
				pending = nil
			}

			if stop {
				break
			}

			select {
			case <-ticker:
				if len(pending) > 0 {
					tick = true
				}
			case send, more := <-c.sendCh:
				if !more {
					stop = true
					if len(pending) > 0 {
						tick = true
					}
					continue
				}

				if len(send.rows) == 0 {
					close(send.err)
					close(send.done)
					continue
				}

				pending = append(pending, send)
				pendingRows += len(send.rows)
			}
		}
	}()
}

func (c *Cable) flush(ctx context.Context, batch []*cableSend) {
	if len(batch) == 0 {
		return
	}
	total := 0
	for _, send := range batch {
		total += len(send.rows)
	}
	rows := make([][]any, 0, total)
	for _, send := range batch {
		rows = append(rows, send.rows...)
	}

	err := c.pool.WithConnection(ctx, func(conn *Connection) error {
		_, insertErr := conn.Insert(ctx, c.query, rows)
		return insertErr
	})
	for _, send := range batch {
		if err != nil {
			send.err <- err
		} else {
			close(send.err)
		}
		close(send.done)
	}
}

// Send queues rows for the next flush. The done channel closes when the rows
// reached the server or failed; the err channel reports the failure.
func (c *Cable) Send(rows [][]any) (<-chan struct{}, <-chan error) {
	send := &cableSend{
		rows: rows,
		err:  make(chan error, 1),
		done: make(chan struct{}, 1),
	}
	c.sendCh <- send
	return send.done, send.err
}

// Close stops accepting rows. Pending rows are flushed on the way out.
func (c *Cable) Close() {
	close(c.sendCh)
}
