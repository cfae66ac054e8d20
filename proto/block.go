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

package proto

import (
	"fmt"

	"github.com/glasshouse/glasshouse-go/proto/chio"
	"github.com/glasshouse/glasshouse-go/proto/column"
)

// BlockInfo is the per-block preamble, encoded as field-id/value pairs
// terminated by field id zero.
type BlockInfo struct {
	IsOverflows bool
	BucketNum   int32
}

// NewBlockInfo returns the preamble defaults for a client-built block.
func NewBlockInfo() BlockInfo {
	return BlockInfo{BucketNum: -1}
}

func (i *BlockInfo) read(r *chio.Reader) error {
	for {
		field, err := r.ReadUvarint()
		if err != nil {
			return err
		}
		switch field {
		case 0:
			return nil
		case 1:
			if i.IsOverflows, err = r.ReadBool(); err != nil {
				return err
			}
		case 2:
			if i.BucketNum, err = r.ReadInt32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("proto: unknown block info field %d", field)
		}
	}
}

func (i *BlockInfo) write(w *chio.Writer) error {
	if err := w.WriteUvarint(1); err != nil {
		return err
	}
	if err := w.WriteBool(i.IsOverflows); err != nil {
		return err
	}
	if err := w.WriteUvarint(2); err != nil {
		return err
	}
	if err := w.WriteInt32(i.BucketNum); err != nil {
		return err
	}
	return w.WriteUvarint(0)
}

// Column is one named, typed column of a block.
type Column struct {
	Name string
	Type string
	Data []any
}

// Block is the unit of query I/O: an ordered set of equally long named
// columns. The empty block terminates a query's data phase.
type Block struct {
	Info    BlockInfo
	Columns []Column
}

// NewBlock returns an empty block with default preamble.
func NewBlock() *Block {
	return &Block{Info: NewBlockInfo()}
}

// Rows is the number of rows shared by every column.
func (b *Block) Rows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return len(b.Columns[0].Data)
}

// ColumnNames lists column names in block order.
func (b *Block) ColumnNames() []string {
	names := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		names[i] = c.Name
	}
	return names
}

// Row assembles row i across all columns.
func (b *Block) Row(i int) []any {
	row := make([]any, len(b.Columns))
	for j, c := range b.Columns {
		row[j] = c.Data[i]
	}
	return row
}

// AppendRow adds one row of values, one per column in block order.
func (b *Block) AppendRow(values []any) error {
	if len(values) != len(b.Columns) {
		return fmt.Errorf("proto: row has %d values, block has %d columns", len(values), len(b.Columns))
	}
	for i := range b.Columns {
		b.Columns[i].Data = append(b.Columns[i].Data, values[i])
	}
	return nil
}

func (b *Block) check() error {
	rows := b.Rows()
	for _, c := range b.Columns {
		if len(c.Data) != rows {
			return fmt.Errorf("proto: column %s has %d rows, block has %d", c.Name, len(c.Data), rows)
		}
	}
	return nil
}

// ReadBlock decodes a block at the given negotiated revision.
func ReadBlock(r *chio.Reader, revision uint64) (*Block, error) {
	block := NewBlock()
	if revision >= RevisionBlockInfo {
		if err := block.Info.read(r); err != nil {
			return nil, err
		}
	}
	nColumns, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	nRows, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nColumns; i++ {
		col := Column{}
		if col.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if col.Type, err = r.ReadString(); err != nil {
			return nil, err
		}
		if nRows > 0 {
			codec, err := column.New(col.Type)
			if err != nil {
				return nil, err
			}
			if err := codec.ReadStatePrefix(r); err != nil {
				return nil, err
			}
			if col.Data, err = codec.Read(r, int(nRows)); err != nil {
				return nil, err
			}
		}
		block.Columns = append(block.Columns, col)
	}
	return block, nil
}

// WriteBlock encodes a block at the given negotiated revision. The caller
// flushes.
func WriteBlock(w *chio.Writer, block *Block, revision uint64) error {
	if err := block.check(); err != nil {
		return err
	}
	if revision >= RevisionBlockInfo {
		if err := block.Info.write(w); err != nil {
			return err
		}
	}
	rows := block.Rows()
	if err := w.WriteUvarint(uint64(len(block.Columns))); err != nil {
		return err
	}
	if err := w.WriteUvarint(uint64(rows)); err != nil {
		return err
	}
	for _, col := range block.Columns {
		if err := w.WriteString(col.Name); err != nil {
			return err
		}
		if err := w.WriteString(col.Type); err != nil {
			return err
		}
		if rows == 0 {
			continue
		}
		codec, err := column.New(col.Type)
		if err != nil {
			return err
		}
		if err := codec.WriteStatePrefix(w); err != nil {
			return err
		}
		if err := codec.Write(w, col.Data); err != nil {
			return err
		}
	}
	return nil
}
