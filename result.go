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

	"github.com/glasshouse/glasshouse-go/proto"
)

// QueryInfo accumulates everything the server reported about a query beside
// its data: progress counters, profiling, totals and extremes.
type QueryInfo struct {
	// ID is the client-generated query identifier.
	ID string
	// Progress sums all progress packets received during the query.
	Progress proto.Progress
	// Profile is the final profile info packet, if the server sent one.
	Profile *proto.ProfileInfo
	// Totals and Extremes hold the aggregate blocks produced by queries
	// with WITH TOTALS or the extremes setting.
	Totals   *proto.Block
	Extremes *proto.Block
	// Elapsed is the client-side wall time from sending the query to the
	// end of the stream.
	Elapsed time.Duration
}

// BlockStream iterates over the data blocks of one query:
//
//	stream, err := conn.ExecuteIter(ctx, "SELECT ...", nil)
//	for stream.Next() {
//		block := stream.Block()
//		...
//	}
//	err = stream.Err()
//
// The first block usually carries the result schema with zero rows. A stream
// left unfinished must be closed, otherwise the connection stays busy.
type BlockStream struct {
	conn  *Connection
	ctx   context.Context
	block *proto.Block
	err   error
	done  bool
}

// Next advances to the next data block. It returns false at the end of the
// stream or on error.
func (s *BlockStream) Next() bool {
	if s.done {
		return false
	}
	block, err := s.conn.nextBlock(s.ctx, s)
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if block == nil {
		s.done = true
		return false
	}
	s.block = block
	return true
}

// Block returns the block Next advanced to.
func (s *BlockStream) Block() *proto.Block { return s.block }

// Err returns the error that terminated the stream, if any.
func (s *BlockStream) Err() error { return s.err }

// Info returns the query's accumulated status. Progress fields are partial
// until the stream is exhausted.
func (s *BlockStream) Info() *QueryInfo { return s.conn.LastQueryInfo() }

// Close cancels the query if it is still streaming and drains the remaining
// packets. Closing an exhausted stream is a no-op.
func (s *BlockStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.conn.abortStream(s.ctx, s)
}
