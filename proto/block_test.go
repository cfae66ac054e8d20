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
	"bytes"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

func writeReadBlock(t *testing.T, block *Block, revision uint64) *Block {
	t.Helper()
	var buf bytes.Buffer
	w := chio.NewWriter(&buf)
	require.NoError(t, WriteBlock(w, block, revision))
	require.NoError(t, w.Flush())

	got, err := ReadBlock(chio.NewReader(bytes.NewReader(buf.Bytes())), revision)
	require.NoError(t, err)
	return got
}

func TestBlockRoundTrip(t *testing.T) {
	faker := gofakeit.New(17)
	block := NewBlock()
	block.Columns = []Column{
		{Name: "id", Type: "UInt64", Data: []any{uint64(1), uint64(2), uint64(3)}},
		{Name: "name", Type: "String", Data: []any{faker.Name(), faker.Name(), faker.Name()}},
		{Name: "score", Type: "Nullable(Float64)", Data: []any{1.5, nil, -2.25}},
	}

	got := writeReadBlock(t, block, ClientRevision)
	require.Equal(t, block.Columns, got.Columns)
	require.Equal(t, block.Info, got.Info)
	require.Equal(t, 3, got.Rows())
	require.Equal(t, []string{"id", "name", "score"}, got.ColumnNames())
	require.Equal(t, []any{uint64(2), block.Columns[1].Data[1], nil}, got.Row(1))
}

func TestEmptyBlockRoundTrip(t *testing.T) {
	got := writeReadBlock(t, NewBlock(), ClientRevision)
	require.Zero(t, got.Rows())
	require.Empty(t, got.Columns)
}

func TestSchemaOnlyBlock(t *testing.T) {
	// A zero-row block still names its columns. No codec data follows.
	block := NewBlock()
	block.Columns = []Column{
		{Name: "ts", Type: "DateTime"},
		{Name: "v", Type: "String"},
	}
	got := writeReadBlock(t, block, ClientRevision)
	require.Zero(t, got.Rows())
	require.Equal(t, []string{"ts", "v"}, got.ColumnNames())
}

func TestBlockPreRevisionBlockInfo(t *testing.T) {
	block := NewBlock()
	block.Columns = []Column{{Name: "n", Type: "UInt8", Data: []any{uint8(7)}}}

	// Old revisions omit the info preamble entirely.
	var buf bytes.Buffer
	w := chio.NewWriter(&buf)
	require.NoError(t, WriteBlock(w, block, RevisionTemporaryTables))
	require.NoError(t, w.Flush())

	withInfo := bytes.Buffer{}
	w = chio.NewWriter(&withInfo)
	require.NoError(t, WriteBlock(w, block, ClientRevision))
	require.NoError(t, w.Flush())
	require.Less(t, buf.Len(), withInfo.Len())

	got, err := ReadBlock(chio.NewReader(bytes.NewReader(buf.Bytes())), RevisionTemporaryTables)
	require.NoError(t, err)
	require.Equal(t, block.Columns, got.Columns)
}

func TestBlockInfoRoundTrip(t *testing.T) {
	block := NewBlock()
	block.Info.IsOverflows = true
	block.Info.BucketNum = 42

	got := writeReadBlock(t, block, ClientRevision)
	require.True(t, got.Info.IsOverflows)
	require.Equal(t, int32(42), got.Info.BucketNum)
}

func TestAppendRow(t *testing.T) {
	block := NewBlock()
	block.Columns = []Column{
		{Name: "a", Type: "UInt8"},
		{Name: "b", Type: "String"},
	}
	require.NoError(t, block.AppendRow([]any{uint8(1), "x"}))
	require.NoError(t, block.AppendRow([]any{uint8(2), "y"}))
	require.Error(t, block.AppendRow([]any{uint8(3)}))
	require.Equal(t, 2, block.Rows())
	require.Equal(t, []any{uint8(2), "y"}, block.Row(1))
}

func TestRaggedBlockRejected(t *testing.T) {
	block := NewBlock()
	block.Columns = []Column{
		{Name: "a", Type: "UInt8", Data: []any{uint8(1), uint8(2)}},
		{Name: "b", Type: "UInt8", Data: []any{uint8(1)}},
	}
	var buf bytes.Buffer
	require.Error(t, WriteBlock(chio.NewWriter(&buf), block, ClientRevision))
}

func TestBlockUnknownColumnType(t *testing.T) {
	block := NewBlock()
	block.Columns = []Column{{Name: "x", Type: "Mystery", Data: []any{1}}}
	var buf bytes.Buffer
	require.Error(t, WriteBlock(chio.NewWriter(&buf), block, ClientRevision))
}
