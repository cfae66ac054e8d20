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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientQuery(t *testing.T) {
	s := startMockServer(t, selectHandler)
	client, err := NewClient(s.config())
	require.NoError(t, err)
	defer client.Close(context.Background())

	require.NoError(t, client.Ping(context.Background()))

	rows, err := client.Query(context.Background(), "SELECT id, name FROM t", nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []any{uint64(1), "alpha"}, rows[0])

	row, err := client.QueryRow(context.Background(), "SELECT id, name FROM t", nil)
	require.NoError(t, err)
	require.Equal(t, []any{uint64(1), "alpha"}, row)
}

func TestClientInsert(t *testing.T) {
	h := &insertHandler{schema: schemaBlock("id", "UInt64", "name", "String")}
	s := startMockServer(t, h.handle)
	client, err := NewClient(s.config())
	require.NoError(t, err)
	defer client.Close(context.Background())

	n, err := client.Insert(context.Background(), "INSERT INTO t (id, name) VALUES", [][]any{
		{uint64(7), "seven"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, [][]any{{uint64(7), "seven"}}, h.received())
}

func TestClientDSN(t *testing.T) {
	_, err := NewClientDSN("clickhouse://localhost/default")
	require.NoError(t, err)
	_, err = NewClientDSN("bogus://nowhere")
	require.Error(t, err)
}
