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

package chio

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// Writer writes protocol primitives to an underlying byte stream.
//
// Writes are buffered; the buffer drains to the underlying writer when it
// fills or on an explicit Flush.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer with the default buffer size.
func NewWriter(w io.Writer) *Writer {
	return NewWriterSize(w, DefaultBufferSize)
}

// NewWriterSize creates a Writer with an explicit buffer size.
func NewWriterSize(w io.Writer, size int) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, size)}
}

// Flush drains buffered bytes to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(p []byte) error {
	_, err := w.w.Write(p)
	return err
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) error {
	return w.w.WriteByte(b)
}

// WriteUvarint writes an unsigned LEB128 integer.
func (w *Writer) WriteUvarint(v uint64) error {
	var buf [maxVarintLen]byte
	n := binary.PutUvarint(buf[:], v)
	return w.WriteBytes(buf[:n])
}

// WriteString writes a varint-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	_, err := w.w.WriteString(s)
	return err
}

// WriteStringBytes writes a varint-prefixed byte string.
func (w *Writer) WriteStringBytes(p []byte) error {
	if err := w.WriteUvarint(uint64(len(p))); err != nil {
		return err
	}
	return w.WriteBytes(p)
}

// WriteFixedString writes p padded with zero bytes up to length n.
func (w *Writer) WriteFixedString(p []byte, n int) error {
	if err := w.WriteBytes(p); err != nil {
		return err
	}
	for i := len(p); i < n; i++ {
		if err := w.w.WriteByte(0); err != nil {
			return err
		}
	}
	return nil
}

// WriteBool writes a boolean as a single byte.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

// WriteUInt8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUInt8(v uint8) error {
	return w.WriteByte(v)
}

// WriteUInt16 writes a little-endian unsigned 16-bit integer.
func (w *Writer) WriteUInt16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return w.WriteBytes(buf[:])
}

// WriteUInt32 writes a little-endian unsigned 32-bit integer.
func (w *Writer) WriteUInt32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return w.WriteBytes(buf[:])
}

// WriteUInt64 writes a little-endian unsigned 64-bit integer.
func (w *Writer) WriteUInt64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.WriteBytes(buf[:])
}

// WriteInt8 writes a signed 8-bit integer.
func (w *Writer) WriteInt8(v int8) error {
	return w.WriteByte(byte(v))
}

// WriteInt16 writes a little-endian signed 16-bit integer.
func (w *Writer) WriteInt16(v int16) error {
	return w.WriteUInt16(uint16(v))
}

// WriteInt32 writes a little-endian signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUInt32(uint32(v))
}

// WriteInt64 writes a little-endian signed 64-bit integer.
func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUInt64(uint64(v))
}

// WriteFloat32 writes a little-endian IEEE 754 float.
func (w *Writer) WriteFloat32(v float32) error {
	return w.WriteUInt32(math.Float32bits(v))
}

// WriteFloat64 writes a little-endian IEEE 754 double.
func (w *Writer) WriteFloat64(v float64) error {
	return w.WriteUInt64(math.Float64bits(v))
}
