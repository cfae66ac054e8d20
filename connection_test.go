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
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glasshouse/glasshouse-go/proto"
	"github.com/glasshouse/glasshouse-go/proto/chio"
	"github.com/glasshouse/glasshouse-go/proto/compress"
)

func TestConnectAndPing(t *testing.T) {
	s := startMockServer(t, nil)
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	require.True(t, conn.Connected())
	info := conn.ServerInfo()
	require.Equal(t, "ClickHouse", info.Name)
	require.Equal(t, "mock", info.DisplayName)
	require.Equal(t, "24.3.1", info.Version())
	require.Equal(t, uint64(proto.ClientRevision), info.UsedRevision())

	require.NoError(t, conn.Ping(context.Background()))
}

func TestLazyConnect(t *testing.T) {
	s := startMockServer(t, nil)
	conn, err := NewConnection(s.config())
	require.NoError(t, err)
	defer conn.Close()

	require.False(t, conn.Connected())
	_, err = conn.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	require.True(t, conn.Connected())
}

func TestPingSkipsLeftoverProgress(t *testing.T) {
	// A cancelled query can leave progress packets queued ahead of the pong.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := &serverConn{
			t:        t,
			conn:     conn,
			r:        chio.NewReader(conn),
			w:        chio.NewWriter(conn),
			revision: proto.ClientRevision,
		}
		if !sc.handshake() {
			return
		}
		if _, err := sc.r.ReadUvarint(); err != nil {
			return
		}
		sc.sendProgress(100, 4096)
		sc.writeUvarint(uint64(proto.ServerPong))
		sc.flush()
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	conn, err := Connect(context.Background(), &Config{Host: host, Port: port})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping(context.Background()))
}

func TestExecuteIterStreamsBlocks(t *testing.T) {
	s := startMockServer(t, func(sc *serverConn, q *mockQuery) {
		sc.sendData(schemaBlock("number", "UInt64"))
		sc.sendProgress(2, 16)
		sc.sendData(numberBlock("number", 1, 2))
		sc.sendData(numberBlock("number", 3))
		sc.sendProgress(1, 8)
		sc.sendTotals(numberBlock("number", 6))
		sc.sendEndOfStream()
	})
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	stream, err := conn.ExecuteIter(context.Background(), "SELECT number FROM system.numbers LIMIT 3", nil)
	require.NoError(t, err)

	var values []uint64
	for stream.Next() {
		block := stream.Block()
		require.Equal(t, []string{"number"}, block.ColumnNames())
		for i := 0; i < block.Rows(); i++ {
			values = append(values, block.Row(i)[0].(uint64))
		}
	}
	require.NoError(t, stream.Err())
	require.Equal(t, []uint64{1, 2, 3}, values)

	info := stream.Info()
	require.Equal(t, uint64(3), info.Progress.Rows)
	require.Equal(t, uint64(24), info.Progress.Bytes)
	require.NotNil(t, info.Totals)
	require.Equal(t, []any{uint64(6)}, info.Totals.Row(0))
	require.Positive(t, info.Elapsed)
}

func TestExecuteSubstitutesParams(t *testing.T) {
	s := startMockServer(t, nil)
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	info, err := conn.Execute(context.Background(), "SELECT {n}", map[string]any{"n": 3})
	require.NoError(t, err)
	require.NotEmpty(t, info.ID)
	require.Equal(t, []string{"SELECT 3"}, s.receivedQueries())

	_, err = conn.Execute(context.Background(), "SELECT {missing}", map[string]any{"other": 1})
	require.Error(t, err)
}

func TestServerException(t *testing.T) {
	s := startMockServer(t, func(sc *serverConn, q *mockQuery) {
		if strings.Contains(q.Body, "missing") {
			sc.sendException(60, "DB::Exception", "Table default.missing does not exist")
			return
		}
		sc.sendData(proto.NewBlock())
		sc.sendEndOfStream()
	})
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Execute(context.Background(), "SELECT * FROM missing", nil)
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	require.Equal(t, int32(60), srvErr.Code)
	require.Contains(t, srvErr.Error(), "does not exist")

	// The connection survives a server-side failure.
	require.True(t, conn.Connected())
	_, err = conn.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
}

func TestInsert(t *testing.T) {
	h := &insertHandler{schema: schemaBlock("id", "UInt64", "name", "String")}
	s := startMockServer(t, h.handle)
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	n, err := conn.Insert(context.Background(), "INSERT INTO t (id, name) VALUES", [][]any{
		{uint64(1), "alpha"},
		{uint64(2), "beta"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, [][]any{{uint64(1), "alpha"}, {uint64(2), "beta"}}, h.received())
}

func TestInsertRowMismatch(t *testing.T) {
	h := &insertHandler{schema: schemaBlock("id", "UInt64", "name", "String")}
	s := startMockServer(t, h.handle)
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Insert(context.Background(), "INSERT INTO t (id, name) VALUES", [][]any{
		{uint64(1)},
	})
	var ifaceErr *InterfaceError
	require.ErrorAs(t, err, &ifaceErr)

	// The insert was terminated cleanly and the connection is reusable.
	require.NoError(t, conn.Ping(context.Background()))
}

func TestCompressedQuery(t *testing.T) {
	for _, method := range []compress.Method{compress.LZ4, compress.ZSTD} {
		t.Run(method.String(), func(t *testing.T) {
			s := startMockServer(t, func(sc *serverConn, q *mockQuery) {
				sc.sendData(schemaBlock("number", "UInt64"))
				sc.sendData(numberBlock("number", 7, 8, 9))
				sc.sendEndOfStream()
			})
			s.method = method
			conn, err := Connect(context.Background(), s.config())
			require.NoError(t, err)
			defer conn.Close()

			stream, err := conn.ExecuteIter(context.Background(), "SELECT number FROM system.numbers LIMIT 3", nil)
			require.NoError(t, err)
			var values []uint64
			for stream.Next() {
				for i := 0; i < stream.Block().Rows(); i++ {
					values = append(values, stream.Block().Row(i)[0].(uint64))
				}
			}
			require.NoError(t, stream.Err())
			require.Equal(t, []uint64{7, 8, 9}, values)
		})
	}
}

func TestConnectionBusy(t *testing.T) {
	s := startMockServer(t, nil)
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	stream, err := conn.ExecuteIter(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)

	_, err = conn.ExecuteIter(context.Background(), "SELECT 2", nil)
	require.ErrorIs(t, err, ErrConnectionBusy)
	require.ErrorIs(t, conn.Ping(context.Background()), ErrConnectionBusy)

	require.NoError(t, stream.Close())
	_, err = conn.Execute(context.Background(), "SELECT 2", nil)
	require.NoError(t, err)
}

func TestConnectionClosed(t *testing.T) {
	s := startMockServer(t, nil)
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.ErrorIs(t, conn.Ping(context.Background()), ErrConnectionClosed)
	_, err = conn.Execute(context.Background(), "SELECT 1", nil)
	require.ErrorIs(t, err, ErrConnectionClosed)
	require.NoError(t, conn.Close())
}

func TestUnexpectedPacketDisconnects(t *testing.T) {
	s := startMockServer(t, func(sc *serverConn, q *mockQuery) {
		if strings.Contains(q.Body, "bogus") {
			sc.writeUvarint(99)
			sc.flush()
			return
		}
		sc.sendData(proto.NewBlock())
		sc.sendEndOfStream()
	})
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Execute(context.Background(), "SELECT bogus", nil)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.False(t, conn.Connected())

	// The next operation reconnects.
	_, err = conn.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	require.True(t, conn.Connected())
}

func TestAltHostFallback(t *testing.T) {
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.Addr().String()
	require.NoError(t, dead.Close())

	s := startMockServer(t, nil)
	cfg := s.config()
	alive := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	host, portStr, err := net.SplitHostPort(deadAddr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cfg.Host = host
	cfg.Port = port
	cfg.AltHosts = []string{alive}

	conn, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping(context.Background()))
}

func TestResetState(t *testing.T) {
	s := startMockServer(t, nil)
	conn, err := Connect(context.Background(), s.config())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ExecuteIter(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	require.NoError(t, conn.ResetState(context.Background()))
	require.Empty(t, conn.LastQueryInfo().ID)

	_, err = conn.Execute(context.Background(), "SELECT 2", nil)
	require.NoError(t, err)
}
