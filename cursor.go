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

	"github.com/glasshouse/glasshouse-go/proto"
)

// ColumnDescription names one column of the current result set.
type ColumnDescription struct {
	Name string
	Type string
}

// Cursor is a stateful query handle in the style of a database cursor: it
// runs one statement at a time and pages through the result rows. Cursors
// are not safe for concurrent use.
type Cursor struct {
	conn      *Connection
	arraysize int

	stream   *BlockStream
	buffer   [][]any
	columns  []ColumnDescription
	rowcount int64
	fetched  int64
	closed   bool
}

// Cursor creates a cursor bound to this connection.
func (c *Connection) Cursor() *Cursor {
	return &Cursor{conn: c, arraysize: 1, rowcount: -1}
}

// DictCursor creates a cursor whose fetch methods return rows keyed by
// column name.
func (c *Connection) DictCursor() *DictCursor {
	return &DictCursor{Cursor: c.Cursor()}
}

func (cur *Cursor) reset() error {
	if cur.stream != nil {
		if err := cur.stream.Close(); err != nil {
			return err
		}
	}
	cur.stream = nil
	cur.buffer = nil
	cur.columns = nil
	cur.rowcount = -1
	cur.fetched = 0
	return nil
}

// Execute runs a statement. Params substitute {name} placeholders in the
// query text. The first result block fixes the cursor description.
func (cur *Cursor) Execute(ctx context.Context, query string, params map[string]any) error {
	if cur.closed {
		return &InterfaceError{Message: "cursor is closed"}
	}
	if err := cur.reset(); err != nil {
		return err
	}
	stream, err := cur.conn.ExecuteIter(ctx, query, params)
	if err != nil {
		return err
	}
	cur.stream = stream
	// The first block carries the result schema, usually with zero rows.
	if stream.Next() {
		cur.describe(stream.Block())
		cur.bufferBlock(stream.Block())
		return nil
	}
	cur.stream = nil
	if err := stream.Err(); err != nil {
		return err
	}
	cur.rowcount = 0
	return nil
}

// ExecuteMany runs an INSERT statement with a batch of rows.
func (cur *Cursor) ExecuteMany(ctx context.Context, query string, rows [][]any) error {
	if cur.closed {
		return &InterfaceError{Message: "cursor is closed"}
	}
	if err := cur.reset(); err != nil {
		return err
	}
	n, err := cur.conn.Insert(ctx, query, rows)
	if err != nil {
		return err
	}
	cur.rowcount = n
	return nil
}

func (cur *Cursor) describe(block *proto.Block) {
	cur.columns = make([]ColumnDescription, len(block.Columns))
	for i, col := range block.Columns {
		cur.columns[i] = ColumnDescription{Name: col.Name, Type: col.Type}
	}
}

func (cur *Cursor) bufferBlock(block *proto.Block) {
	for i := 0; i < block.Rows(); i++ {
		cur.buffer = append(cur.buffer, block.Row(i))
	}
}

// nextRow returns the next result row, or nil when the result set is
// exhausted.
func (cur *Cursor) nextRow(ctx context.Context) ([]any, error) {
	for len(cur.buffer) == 0 {
		if cur.stream == nil {
			return nil, nil
		}
		if !cur.stream.Next() {
			err := cur.stream.Err()
			cur.stream = nil
			if err != nil {
				return nil, err
			}
			cur.rowcount = cur.fetched
			return nil, nil
		}
		cur.bufferBlock(cur.stream.Block())
	}
	row := cur.buffer[0]
	cur.buffer = cur.buffer[1:]
	cur.fetched++
	return row, nil
}

// FetchOne returns the next row, or nil at the end of the result set.
func (cur *Cursor) FetchOne(ctx context.Context) ([]any, error) {
	if cur.closed {
		return nil, &InterfaceError{Message: "cursor is closed"}
	}
	return cur.nextRow(ctx)
}

// FetchMany returns up to n rows. A non-positive n takes the array size.
func (cur *Cursor) FetchMany(ctx context.Context, n int) ([][]any, error) {
	if cur.closed {
		return nil, &InterfaceError{Message: "cursor is closed"}
	}
	if n <= 0 {
		n = cur.arraysize
	}
	var rows [][]any
	for len(rows) < n {
		row, err := cur.nextRow(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchAll returns every remaining row.
func (cur *Cursor) FetchAll(ctx context.Context) ([][]any, error) {
	if cur.closed {
		return nil, &InterfaceError{Message: "cursor is closed"}
	}
	var rows [][]any
	for {
		row, err := cur.nextRow(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// Description lists the columns of the current result set, or nil before
// the first Execute.
func (cur *Cursor) Description() []ColumnDescription { return cur.columns }

// RowCount is the number of rows affected or fetched by the last statement,
// or -1 while a result set is still streaming.
func (cur *Cursor) RowCount() int64 { return cur.rowcount }

// ArraySize is the default row count for FetchMany.
func (cur *Cursor) ArraySize() int { return cur.arraysize }

// SetArraySize overrides the FetchMany default. Non-positive sizes reset
// it to one.
func (cur *Cursor) SetArraySize(n int) {
	if n <= 0 {
		n = 1
	}
	cur.arraysize = n
}

// Info returns the status of the cursor's last query.
func (cur *Cursor) Info() *QueryInfo { return cur.conn.LastQueryInfo() }

// Close abandons any unread rows. The cursor is unusable afterwards; the
// connection stays open.
func (cur *Cursor) Close() error {
	if cur.closed {
		return nil
	}
	cur.closed = true
	if cur.stream != nil {
		stream := cur.stream
		cur.stream = nil
		return stream.Close()
	}
	return nil
}

// DictCursor fetches rows as column-name keyed maps. When a result carries
// duplicate column names, the first occurrence wins.
type DictCursor struct {
	*Cursor
}

func (cur *DictCursor) rowMap(row []any) map[string]any {
	m := make(map[string]any, len(cur.columns))
	for i, col := range cur.columns {
		if _, ok := m[col.Name]; ok {
			continue
		}
		m[col.Name] = row[i]
	}
	return m
}

// FetchOne returns the next row keyed by column name, or nil at the end of
// the result set.
func (cur *DictCursor) FetchOne(ctx context.Context) (map[string]any, error) {
	row, err := cur.Cursor.FetchOne(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	return cur.rowMap(row), nil
}

// FetchMany returns up to n rows keyed by column name.
func (cur *DictCursor) FetchMany(ctx context.Context, n int) ([]map[string]any, error) {
	rows, err := cur.Cursor.FetchMany(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = cur.rowMap(row)
	}
	return out, nil
}

// FetchAll returns every remaining row keyed by column name.
func (cur *DictCursor) FetchAll(ctx context.Context) ([]map[string]any, error) {
	rows, err := cur.Cursor.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = cur.rowMap(row)
	}
	return out, nil
}
