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
	"bytes"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/glasshouse/glasshouse-go/proto"
	"github.com/glasshouse/glasshouse-go/proto/chio"
	"github.com/glasshouse/glasshouse-go/proto/compress"
)

// mockServer speaks the server side of the native protocol on a loopback
// listener. Each accepted connection performs the handshake, then dispatches
// queries to the test-provided handler.
type mockServer struct {
	t        *testing.T
	ln       net.Listener
	revision uint64
	method   compress.Method

	// handle serves one query. The default answers with an empty result.
	handle func(sc *serverConn, q *mockQuery)

	mu      sync.Mutex
	queries []string
	wg      sync.WaitGroup
}

// mockQuery is the server-side view of one received Query packet.
type mockQuery struct {
	ID          string
	Body        string
	Settings    map[string]string
	Compression bool
}

func startMockServer(t *testing.T, handle func(sc *serverConn, q *mockQuery)) *mockServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("mock server: listen: %v", err)
	}
	if handle == nil {
		handle = func(sc *serverConn, q *mockQuery) {
			sc.sendData(proto.NewBlock())
			sc.sendEndOfStream()
		}
	}
	s := &mockServer{t: t, ln: ln, revision: proto.ClientRevision, method: compress.None, handle: handle}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *mockServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

// config returns a client config pointed at the listener.
func (s *mockServer) config() *Config {
	host, portStr, _ := net.SplitHostPort(s.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	cfg := &Config{Host: host, Port: port}
	if s.method != compress.None {
		cfg.Compression = s.method.String()
	}
	return cfg
}

// receivedQueries lists the query bodies handled so far.
func (s *mockServer) receivedQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *mockServer) handleConn(conn net.Conn) {
	sc := &serverConn{
		t:        s.t,
		conn:     conn,
		r:        chio.NewReader(conn),
		w:        chio.NewWriter(conn),
		revision: s.revision,
		method:   s.method,
	}
	if !sc.handshake() {
		return
	}
	for {
		code, err := sc.r.ReadUvarint()
		if err != nil {
			return
		}
		switch proto.ClientPacket(code) {
		case proto.ClientPing:
			sc.writeUvarint(uint64(proto.ServerPong))
			sc.flush()
		case proto.ClientCancel:
			sc.cancelled = true
		case proto.ClientQuery:
			q, ok := sc.readQuery()
			if !ok {
				return
			}
			// The empty block terminating external tables.
			if _, ok := sc.readDataPacket(); !ok {
				return
			}
			s.mu.Lock()
			s.queries = append(s.queries, q.Body)
			s.mu.Unlock()
			sc.cancelled = false
			s.handle(sc, q)
		default:
			s.t.Logf("mock server: unexpected client packet %d", code)
			return
		}
		if sc.err != nil {
			return
		}
	}
}

// serverConn is one accepted connection. Write helpers latch the first error
// and turn later calls into no-ops, so handlers read as straight-line scripts.
type serverConn struct {
	t        *testing.T
	conn     net.Conn
	r        *chio.Reader
	w        *chio.Writer
	cr       *chio.Reader
	revision uint64
	method   compress.Method

	compression bool
	cancelled   bool
	err         error
}

func (sc *serverConn) fail(op string, err error) {
	if sc.err == nil {
		sc.err = err
		sc.t.Logf("mock server: %s: %v", op, err)
	}
}

func (sc *serverConn) handshake() bool {
	code, err := sc.r.ReadUvarint()
	if err != nil || proto.ClientPacket(code) != proto.ClientHello {
		return false
	}
	for i := 0; i < 1; i++ { // client name
		if _, err := sc.r.ReadString(); err != nil {
			return false
		}
	}
	for i := 0; i < 3; i++ { // major, minor, revision
		if _, err := sc.r.ReadUvarint(); err != nil {
			return false
		}
	}
	for i := 0; i < 3; i++ { // database, user, password
		if _, err := sc.r.ReadString(); err != nil {
			return false
		}
	}

	sc.writeUvarint(uint64(proto.ServerHello))
	sc.writeString("ClickHouse")
	sc.writeUvarint(24)
	sc.writeUvarint(3)
	sc.writeUvarint(sc.revision)
	if sc.revision >= proto.RevisionServerTimezone {
		sc.writeString("UTC")
	}
	if sc.revision >= proto.RevisionServerDisplayName {
		sc.writeString("mock")
	}
	if sc.revision >= proto.RevisionVersionPatch {
		sc.writeUvarint(1)
	}
	sc.flush()
	return sc.err == nil
}

func (sc *serverConn) readQuery() (*mockQuery, bool) {
	q := &mockQuery{Settings: map[string]string{}}
	var err error
	if q.ID, err = sc.r.ReadString(); err != nil {
		return nil, false
	}
	if sc.revision >= proto.RevisionClientInfo {
		if !sc.skipClientInfo() {
			return nil, false
		}
	}
	for {
		name, err := sc.r.ReadString()
		if err != nil {
			return nil, false
		}
		if name == "" {
			break
		}
		if _, err := sc.r.ReadUvarint(); err != nil { // flags
			return nil, false
		}
		value, err := sc.r.ReadString()
		if err != nil {
			return nil, false
		}
		q.Settings[name] = value
	}
	if sc.revision >= proto.RevisionInterserverSecret {
		if _, err := sc.r.ReadString(); err != nil {
			return nil, false
		}
	}
	if _, err := sc.r.ReadUvarint(); err != nil { // stage
		return nil, false
	}
	compression, err := sc.r.ReadUvarint()
	if err != nil {
		return nil, false
	}
	q.Compression = compression == 1
	sc.compression = q.Compression
	if q.Body, err = sc.r.ReadString(); err != nil {
		return nil, false
	}
	if sc.revision >= proto.RevisionQueryParameters {
		for {
			name, err := sc.r.ReadString()
			if err != nil {
				return nil, false
			}
			if name == "" {
				break
			}
			if _, err := sc.r.ReadUvarint(); err != nil {
				return nil, false
			}
			if _, err := sc.r.ReadString(); err != nil {
				return nil, false
			}
		}
	}
	return q, true
}

func (sc *serverConn) skipClientInfo() bool {
	if _, err := sc.r.ReadByte(); err != nil { // query kind
		return false
	}
	for i := 0; i < 3; i++ { // initial user, initial query id, address
		if _, err := sc.r.ReadString(); err != nil {
			return false
		}
	}
	if sc.revision >= proto.RevisionInitialQueryStartTime {
		if _, err := sc.r.ReadUInt64(); err != nil {
			return false
		}
	}
	if _, err := sc.r.ReadByte(); err != nil { // interface
		return false
	}
	for i := 0; i < 3; i++ { // os user, hostname, client name
		if _, err := sc.r.ReadString(); err != nil {
			return false
		}
	}
	for i := 0; i < 3; i++ { // version major, minor, revision
		if _, err := sc.r.ReadUvarint(); err != nil {
			return false
		}
	}
	if sc.revision >= proto.RevisionQuotaKeyInClientInfo {
		if _, err := sc.r.ReadString(); err != nil {
			return false
		}
	}
	if sc.revision >= proto.RevisionDistributedDepth {
		if _, err := sc.r.ReadUvarint(); err != nil {
			return false
		}
	}
	if sc.revision >= proto.RevisionVersionPatch {
		if _, err := sc.r.ReadUvarint(); err != nil {
			return false
		}
	}
	if sc.revision >= proto.RevisionOpenTelemetry {
		if _, err := sc.r.ReadByte(); err != nil {
			return false
		}
	}
	if sc.revision >= proto.RevisionParallelReplicas {
		for i := 0; i < 3; i++ {
			if _, err := sc.r.ReadUvarint(); err != nil {
				return false
			}
		}
	}
	return true
}

// readBlock consumes one client Data packet body.
func (sc *serverConn) readBlock() (*proto.Block, bool) {
	if sc.revision >= proto.RevisionTemporaryTables {
		if _, err := sc.r.ReadString(); err != nil {
			return nil, false
		}
	}
	r := sc.r
	if sc.compression {
		if sc.cr == nil {
			sc.cr = chio.NewReader(compress.NewReader(sc.r))
		}
		r = sc.cr
	}
	block, err := proto.ReadBlock(r, sc.revision)
	if err != nil {
		sc.fail("read block", err)
		return nil, false
	}
	return block, true
}

// readDataPacket consumes a client Data packet including its leading packet
// code.
func (sc *serverConn) readDataPacket() (*proto.Block, bool) {
	code, err := sc.r.ReadUvarint()
	if err != nil {
		return nil, false
	}
	if proto.ClientPacket(code) == proto.ClientCancel {
		sc.cancelled = true
		return nil, false
	}
	if proto.ClientPacket(code) != proto.ClientData {
		sc.fail("read data", err)
		return nil, false
	}
	return sc.readBlock()
}

func (sc *serverConn) sendData(block *proto.Block) {
	sc.writeUvarint(uint64(proto.ServerData))
	sc.writeBlockBody(block, sc.compression)
	sc.flush()
}

func (sc *serverConn) sendTotals(block *proto.Block) {
	sc.writeUvarint(uint64(proto.ServerTotals))
	sc.writeBlockBody(block, sc.compression)
	sc.flush()
}

func (sc *serverConn) sendLog(block *proto.Block) {
	sc.writeUvarint(uint64(proto.ServerLog))
	sc.writeBlockBody(block, false)
	sc.flush()
}

func (sc *serverConn) writeBlockBody(block *proto.Block, compressed bool) {
	if sc.revision >= proto.RevisionTemporaryTables {
		sc.writeString("")
	}
	if sc.err != nil {
		return
	}
	if compressed {
		var buf bytes.Buffer
		bw := chio.NewWriter(&buf)
		if err := proto.WriteBlock(bw, block, sc.revision); err != nil {
			sc.fail("write block", err)
			return
		}
		if err := bw.Flush(); err != nil {
			sc.fail("write block", err)
			return
		}
		frames, err := compress.EncodeAll(sc.method, buf.Bytes())
		if err != nil {
			sc.fail("write block", err)
			return
		}
		if err := sc.w.WriteBytes(frames); err != nil {
			sc.fail("write block", err)
		}
		return
	}
	if err := proto.WriteBlock(sc.w, block, sc.revision); err != nil {
		sc.fail("write block", err)
	}
}

func (sc *serverConn) sendProgress(rows, totalBytes uint64) {
	sc.writeUvarint(uint64(proto.ServerProgress))
	sc.writeUvarint(rows)
	sc.writeUvarint(totalBytes)
	if sc.revision >= proto.RevisionTotalRowsInProgress {
		sc.writeUvarint(0)
	}
	if sc.revision >= proto.RevisionClientWriteInfo {
		sc.writeUvarint(0)
		sc.writeUvarint(0)
	}
	sc.flush()
}

func (sc *serverConn) sendException(code int32, name, message string) {
	sc.writeUvarint(uint64(proto.ServerException))
	if sc.err == nil {
		if err := sc.w.WriteInt32(code); err != nil {
			sc.fail("write exception", err)
		}
	}
	sc.writeString(name)
	sc.writeString(message)
	sc.writeString("")
	if sc.err == nil {
		if err := sc.w.WriteBool(false); err != nil {
			sc.fail("write exception", err)
		}
	}
	sc.flush()
}

func (sc *serverConn) sendEndOfStream() {
	sc.writeUvarint(uint64(proto.ServerEndOfStream))
	sc.flush()
}

func (sc *serverConn) writeUvarint(v uint64) {
	if sc.err != nil {
		return
	}
	if err := sc.w.WriteUvarint(v); err != nil {
		sc.fail("write", err)
	}
}

func (sc *serverConn) writeString(s string) {
	if sc.err != nil {
		return
	}
	if err := sc.w.WriteString(s); err != nil {
		sc.fail("write", err)
	}
}

func (sc *serverConn) flush() {
	if sc.err != nil {
		return
	}
	if err := sc.w.Flush(); err != nil {
		sc.fail("flush", err)
	}
}

// numberBlock builds a single-column UInt64 block.
func numberBlock(name string, values ...uint64) *proto.Block {
	block := proto.NewBlock()
	data := make([]any, len(values))
	for i, v := range values {
		data[i] = v
	}
	block.Columns = []proto.Column{{Name: name, Type: "UInt64", Data: data}}
	return block
}

// schemaBlock builds a zero-row block naming the given columns.
func schemaBlock(pairs ...string) *proto.Block {
	block := proto.NewBlock()
	for i := 0; i+1 < len(pairs); i += 2 {
		block.Columns = append(block.Columns, proto.Column{Name: pairs[i], Type: pairs[i+1]})
	}
	return block
}

// insertHandler replies with the destination schema and collects the rows the
// client streams back.
type insertHandler struct {
	schema *proto.Block

	mu   sync.Mutex
	rows [][]any
}

func (h *insertHandler) handle(sc *serverConn, q *mockQuery) {
	sc.sendData(h.schema)
	for {
		block, ok := sc.readDataPacket()
		if !ok {
			return
		}
		if block.Rows() == 0 {
			break
		}
		h.mu.Lock()
		for i := 0; i < block.Rows(); i++ {
			h.rows = append(h.rows, block.Row(i))
		}
		h.mu.Unlock()
	}
	sc.sendEndOfStream()
}

func (h *insertHandler) received() [][]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]any(nil), h.rows...)
}
