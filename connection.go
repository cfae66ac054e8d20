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
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glasshouse/glasshouse-go/proto"
	"github.com/glasshouse/glasshouse-go/proto/chio"
	"github.com/glasshouse/glasshouse-go/proto/compress"
)

// insertBlockRows bounds the number of rows sent per data block during an
// insert.
const insertBlockRows = 1 << 16

// Connection is a single native-protocol connection. It runs one query at a
// time; concurrent use is guarded and rejected with ErrConnectionBusy. Use a
// Pool for concurrent workloads.
type Connection struct {
	cfg    *Config
	logger Logger

	method      compress.Method
	compression bool

	mu        sync.Mutex
	conn      net.Conn
	r         *chio.Reader
	w         *chio.Writer
	cr        *chio.Reader
	server    *proto.ServerInfo
	revision  uint64
	connected bool
	closed    bool
	busy      bool
	cur       *BlockStream

	started  time.Time
	lastInfo QueryInfo
}

// NewConnection builds a connection from a config without dialing. The first
// operation connects lazily; call Connect to do it eagerly.
func NewConnection(cfg *Config, opts ...Option) (*Connection, error) {
	c := *cfg
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	full := c.withDefaults()
	method, err := compress.ParseMethod(full.Compression)
	if err != nil {
		return nil, &InterfaceError{Message: "invalid compression", Err: err}
	}
	return &Connection{
		cfg:         full,
		logger:      full.Logger,
		method:      method,
		compression: method != compress.None,
	}, nil
}

// Connect dials the server and performs the handshake.
func Connect(ctx context.Context, cfg *Config, opts ...Option) (*Connection, error) {
	conn, err := NewConnection(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// ConnectDSN dials the endpoint described by a DSN.
func ConnectDSN(ctx context.Context, dsn string, opts ...Option) (*Connection, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, cfg, opts...)
}

// Connect opens the connection if it is not open yet. The primary host is
// tried first, then the alternates in order.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	if c.closed {
		return ErrConnectionClosed
	}
	if c.connected {
		return nil
	}
	var lastErr error
	for _, addr := range c.cfg.addrs() {
		err := c.dialLocked(ctx, addr)
		if err == nil {
			return nil
		}
		lastErr = err
		c.logger.Warnf("connect to %s failed: %v", addr, err)
	}
	return lastErr
}

func (c *Connection) dialLocked(ctx context.Context, addr string) error {
	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectionError{Op: "dial " + addr, Err: err}
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetKeepAlive(true)
	}
	if c.cfg.Secure || c.cfg.TLSConfig != nil {
		tlsConfig := c.cfg.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{InsecureSkipVerify: !c.cfg.Verify}
		} else {
			tlsConfig = tlsConfig.Clone()
		}
		if tlsConfig.ServerName == "" && !tlsConfig.InsecureSkipVerify {
			if host, _, err := net.SplitHostPort(addr); err == nil {
				tlsConfig.ServerName = host
			}
		}
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return &ConnectionError{Op: "tls handshake with " + addr, Err: err}
		}
		conn = tlsConn
	}

	c.conn = conn
	c.r = chio.NewReader(conn)
	c.w = chio.NewWriter(conn)
	c.cr = nil
	if err := c.handshakeLocked(ctx); err != nil {
		conn.Close()
		c.conn, c.r, c.w = nil, nil, nil
		return err
	}
	c.connected = true
	c.logger.Debugf("connected to %s (%s %s, revision %d)",
		addr, c.server.DisplayName, c.server.Version(), c.revision)
	return nil
}

func (c *Connection) handshakeLocked(ctx context.Context) error {
	c.setDeadline(ctx, c.cfg.SendReceiveTimeout)
	if err := proto.WriteHello(c.w, c.cfg.ClientName, c.cfg.Database, c.cfg.User, c.cfg.Password); err != nil {
		return &ConnectionError{Op: "send hello", Err: err}
	}
	if err := c.w.Flush(); err != nil {
		return &ConnectionError{Op: "send hello", Err: err}
	}
	code, err := c.r.ReadUvarint()
	if err != nil {
		return &ConnectionError{Op: "read hello", Err: err}
	}
	switch packet := proto.ServerPacket(code); packet {
	case proto.ServerHello:
		info, err := proto.ReadServerInfo(c.r)
		if err != nil {
			return &ConnectionError{Op: "read hello", Err: err}
		}
		c.server = info
		c.revision = info.UsedRevision()
		return nil
	case proto.ServerException:
		exc, err := proto.ReadException(c.r)
		if err != nil {
			return &ConnectionError{Op: "read hello", Err: err}
		}
		return exc
	default:
		return &ProtocolError{Message: fmt.Sprintf("unexpected packet %s during handshake", packet)}
	}
}

// Close shuts the connection down. Further operations fail with
// ErrConnectionClosed. Close is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.disconnectLocked()
	return nil
}

// Connected reports whether the socket is open and handshaken.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ServerInfo returns the handshake data of the connected server, or nil
// before the first connect.
func (c *Connection) ServerInfo() *proto.ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// LastQueryInfo returns the status of the most recent query.
func (c *Connection) LastQueryInfo() *QueryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.lastInfo
	return &info
}

// ResetState aborts any in-flight query and clears the last query status.
func (c *Connection) ResetState(ctx context.Context) error {
	c.mu.Lock()
	cur := c.cur
	c.mu.Unlock()
	if cur != nil {
		if err := cur.Close(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.lastInfo = QueryInfo{}
	c.mu.Unlock()
	return nil
}

// Ping checks server liveness, connecting first if necessary.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if c.busy {
		return ErrConnectionBusy
	}
	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	c.setDeadline(ctx, c.cfg.SyncRequestTimeout)
	if err := proto.WritePing(c.w); err != nil {
		return c.ioError("send ping", err)
	}
	if err := c.w.Flush(); err != nil {
		return c.ioError("send ping", err)
	}
	for {
		code, err := c.r.ReadUvarint()
		if err != nil {
			return c.ioError("read pong", err)
		}
		switch packet := proto.ServerPacket(code); packet {
		case proto.ServerPong:
			return nil
		case proto.ServerProgress:
			// Leftover progress from a cancelled query. Skip.
			if _, err := proto.ReadProgress(c.r, c.revision); err != nil {
				return c.ioError("read pong", err)
			}
		default:
			c.disconnectLocked()
			return &ProtocolError{Message: fmt.Sprintf("unexpected packet %s in response to ping", packet)}
		}
	}
}

// Execute runs a query to completion, discarding data blocks, and returns
// the accumulated query status. Params substitute {name} placeholders.
func (c *Connection) Execute(ctx context.Context, query string, params map[string]any) (*QueryInfo, error) {
	stream, err := c.ExecuteIter(ctx, query, params)
	if err != nil {
		return nil, err
	}
	for stream.Next() {
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return stream.Info(), nil
}

// ExecuteIter runs a query and returns a stream of its data blocks. Params
// substitute {name} placeholders before the query is sent.
func (c *Connection) ExecuteIter(ctx context.Context, query string, params map[string]any) (*BlockStream, error) {
	if len(params) > 0 {
		var err error
		if query, err = substituteParams(query, params); err != nil {
			return nil, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.startQueryLocked(ctx, query); err != nil {
		return nil, err
	}
	stream := &BlockStream{conn: c, ctx: ctx}
	c.cur = stream
	return stream, nil
}

// Insert runs an INSERT statement and streams rows as data blocks. The query
// names the destination columns ("INSERT INTO t (a, b) VALUES"); the server
// replies with the destination schema, which types the rows.
func (c *Connection) Insert(ctx context.Context, query string, rows [][]any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.startQueryLocked(ctx, query); err != nil {
		return 0, err
	}
	sample, err := c.awaitSampleLocked(ctx)
	if err != nil {
		return 0, err
	}

	block := proto.NewBlock()
	for _, col := range sample.Columns {
		block.Columns = append(block.Columns, proto.Column{Name: col.Name, Type: col.Type})
	}
	for _, row := range rows {
		if err := block.AppendRow(row); err != nil {
			// Terminate the insert before surfacing the bad row.
			abortErr := c.sendDataLocked(ctx, proto.NewBlock())
			if abortErr == nil {
				abortErr = c.drainLocked(ctx)
			}
			if abortErr != nil {
				return 0, abortErr
			}
			return 0, &InterfaceError{Message: "insert row mismatch", Err: err}
		}
		if block.Rows() >= insertBlockRows {
			if err := c.sendDataLocked(ctx, block); err != nil {
				return 0, err
			}
			for i := range block.Columns {
				block.Columns[i].Data = nil
			}
		}
	}
	if block.Rows() > 0 {
		if err := c.sendDataLocked(ctx, block); err != nil {
			return 0, err
		}
	}
	if err := c.sendDataLocked(ctx, proto.NewBlock()); err != nil {
		return 0, err
	}
	if err := c.drainLocked(ctx); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// startQueryLocked sends the query packet followed by the empty block that
// terminates external tables, and marks the connection busy.
func (c *Connection) startQueryLocked(ctx context.Context, query string) error {
	if c.closed {
		return ErrConnectionClosed
	}
	if c.busy {
		return ErrConnectionBusy
	}
	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	queryID := uuid.NewString()
	c.started = time.Now()
	c.lastInfo = QueryInfo{ID: queryID}

	q := &proto.Query{
		ID:          queryID,
		Body:        query,
		Settings:    c.cfg.Settings,
		Compression: c.compression,
	}
	c.setDeadline(ctx, c.cfg.SendReceiveTimeout)
	skipped, err := proto.WriteQuery(c.w, q, c.revision)
	if err != nil {
		return c.ioError("send query", err)
	}
	for _, name := range skipped {
		c.logger.Warnf("setting %s is not supported by server revision %d, skipped", name, c.revision)
	}
	c.busy = true
	if err := c.sendDataLocked(ctx, proto.NewBlock()); err != nil {
		return err
	}
	c.logger.Debugf("query %s started", queryID)
	return nil
}

// sendDataLocked writes one Data packet and flushes. Block contents travel
// compressed when the connection negotiated compression; the packet header
// and table name never do.
func (c *Connection) sendDataLocked(ctx context.Context, block *proto.Block) error {
	c.setDeadline(ctx, c.cfg.SendReceiveTimeout)
	if err := c.w.WriteUvarint(uint64(proto.ClientData)); err != nil {
		return c.ioError("send data", err)
	}
	if c.revision >= proto.RevisionTemporaryTables {
		if err := c.w.WriteString(""); err != nil {
			return c.ioError("send data", err)
		}
	}
	if c.compression {
		var buf bytes.Buffer
		bw := chio.NewWriterSize(&buf, chio.DefaultBufferSize)
		if err := proto.WriteBlock(bw, block, c.revision); err != nil {
			return c.ioError("send data", err)
		}
		if err := bw.Flush(); err != nil {
			return c.ioError("send data", err)
		}
		frames, err := compress.EncodeAll(c.method, buf.Bytes())
		if err != nil {
			return c.ioError("send data", err)
		}
		if err := c.w.WriteBytes(frames); err != nil {
			return c.ioError("send data", err)
		}
	} else {
		if err := proto.WriteBlock(c.w, block, c.revision); err != nil {
			return c.ioError("send data", err)
		}
	}
	if err := c.w.Flush(); err != nil {
		return c.ioError("send data", err)
	}
	return nil
}

// serverPacket is one decoded server packet.
type serverPacket struct {
	kind      proto.ServerPacket
	block     *proto.Block
	exception *proto.ServerError
}

// receivePacketLocked reads and decodes the next server packet, folding
// progress and profile info into the running query status.
func (c *Connection) receivePacketLocked(ctx context.Context) (*serverPacket, error) {
	c.setDeadline(ctx, c.cfg.SendReceiveTimeout)
	code, err := c.r.ReadUvarint()
	if err != nil {
		return nil, c.ioError("read packet", err)
	}
	packet := &serverPacket{kind: proto.ServerPacket(code)}
	switch packet.kind {
	case proto.ServerData, proto.ServerTotals, proto.ServerExtremes:
		if packet.block, err = c.receiveBlockLocked(c.compression); err != nil {
			return nil, err
		}
	case proto.ServerException:
		if packet.exception, err = proto.ReadException(c.r); err != nil {
			return nil, c.ioError("read exception", err)
		}
	case proto.ServerProgress:
		delta, err := proto.ReadProgress(c.r, c.revision)
		if err != nil {
			return nil, c.ioError("read progress", err)
		}
		c.lastInfo.Progress.Increment(delta)
	case proto.ServerProfileInfo:
		if c.lastInfo.Profile, err = proto.ReadProfileInfo(c.r); err != nil {
			return nil, c.ioError("read profile info", err)
		}
	case proto.ServerEndOfStream, proto.ServerPong:
	case proto.ServerLog:
		// Server logs are never compressed.
		block, err := c.receiveBlockLocked(false)
		if err != nil {
			return nil, err
		}
		c.logServerBlock(block)
	case proto.ServerProfileEvents:
		if _, err := c.receiveBlockLocked(false); err != nil {
			return nil, err
		}
	case proto.ServerTableColumns:
		if _, err := c.r.ReadString(); err != nil {
			return nil, c.ioError("read table columns", err)
		}
		if _, err := c.r.ReadString(); err != nil {
			return nil, c.ioError("read table columns", err)
		}
	default:
		c.disconnectLocked()
		return nil, &ProtocolError{Message: fmt.Sprintf("unexpected packet %s", packet.kind)}
	}
	return packet, nil
}

// receiveBlockLocked reads a Data packet body: the table name, then the
// block itself from the plain or decompressing stream.
func (c *Connection) receiveBlockLocked(compressed bool) (*proto.Block, error) {
	if c.revision >= proto.RevisionTemporaryTables {
		if _, err := c.r.ReadString(); err != nil {
			return nil, c.ioError("read block", err)
		}
	}
	r := c.r
	if compressed {
		if c.cr == nil {
			c.cr = chio.NewReader(compress.NewReader(c.r))
		}
		r = c.cr
	}
	block, err := proto.ReadBlock(r, c.revision)
	if err != nil {
		return nil, c.ioError("read block", err)
	}
	return block, nil
}

// nextBlock drives a BlockStream: it returns the next data block, or nil at
// the end of the stream.
func (c *Connection) nextBlock(ctx context.Context, s *BlockStream) (*proto.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != s {
		return nil, &InterfaceError{Message: "stream is no longer active"}
	}
	for {
		packet, err := c.receivePacketLocked(ctx)
		if err != nil {
			c.finishQueryLocked()
			return nil, err
		}
		switch packet.kind {
		case proto.ServerData:
			return packet.block, nil
		case proto.ServerTotals:
			c.lastInfo.Totals = packet.block
		case proto.ServerExtremes:
			c.lastInfo.Extremes = packet.block
		case proto.ServerException:
			c.finishQueryLocked()
			return nil, packet.exception
		case proto.ServerEndOfStream:
			c.finishQueryLocked()
			return nil, nil
		}
	}
}

// abortStream cancels an in-flight query and drains it.
func (c *Connection) abortStream(ctx context.Context, s *BlockStream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != s || !c.busy {
		return nil
	}
	c.setDeadline(ctx, c.cfg.SendReceiveTimeout)
	if err := proto.WriteCancel(c.w); err != nil {
		return c.ioError("send cancel", err)
	}
	if err := c.w.Flush(); err != nil {
		return c.ioError("send cancel", err)
	}
	return c.drainLocked(ctx)
}

// drainLocked consumes packets until the end of the stream.
func (c *Connection) drainLocked(ctx context.Context) error {
	for {
		packet, err := c.receivePacketLocked(ctx)
		if err != nil {
			c.finishQueryLocked()
			return err
		}
		switch packet.kind {
		case proto.ServerException:
			c.finishQueryLocked()
			return packet.exception
		case proto.ServerEndOfStream:
			c.finishQueryLocked()
			return nil
		}
	}
}

// awaitSampleLocked waits for the schema block the server sends in response
// to an insert.
func (c *Connection) awaitSampleLocked(ctx context.Context) (*proto.Block, error) {
	for {
		packet, err := c.receivePacketLocked(ctx)
		if err != nil {
			c.finishQueryLocked()
			return nil, err
		}
		switch packet.kind {
		case proto.ServerData:
			return packet.block, nil
		case proto.ServerException:
			c.finishQueryLocked()
			return nil, packet.exception
		case proto.ServerEndOfStream:
			c.finishQueryLocked()
			return nil, &ProtocolError{Message: "stream ended before insert schema"}
		}
	}
}

func (c *Connection) finishQueryLocked() {
	if c.busy {
		c.lastInfo.Elapsed = time.Since(c.started)
	}
	c.busy = false
	c.cur = nil
}

// logServerBlock forwards server log entries to the configured logger.
func (c *Connection) logServerBlock(block *proto.Block) {
	index := make(map[string]int, len(block.Columns))
	for i, col := range block.Columns {
		index[col.Name] = i
	}
	textIdx, ok := index["text"]
	if !ok {
		return
	}
	sourceIdx, hasSource := index["source"]
	for i := 0; i < block.Rows(); i++ {
		text, _ := block.Columns[textIdx].Data[i].(string)
		if hasSource {
			source, _ := block.Columns[sourceIdx].Data[i].(string)
			c.logger.Infof("server log: [%s] %s", source, text)
		} else {
			c.logger.Infof("server log: %s", text)
		}
	}
}

// setDeadline arms the socket deadline from the operation timeout, tightened
// by the context deadline when that is sooner.
func (c *Connection) setDeadline(ctx context.Context, timeout time.Duration) {
	if c.conn == nil {
		return
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
}

// ioError wraps a socket-level failure. The connection is disconnected and
// may be reconnected by a later operation.
func (c *Connection) ioError(op string, err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		err = fmt.Errorf("%v: %w", err, ErrTimeout)
	}
	c.disconnectLocked()
	return &ConnectionError{Op: op, Err: err}
}

func (c *Connection) disconnectLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.r, c.w, c.cr = nil, nil, nil
	c.connected = false
	c.busy = false
	c.cur = nil
}
