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

// Package compress implements the per-frame compression codec of the native
// protocol: a CityHash128 checksum, a method byte, two little-endian sizes
// and the compressed body.
package compress

import (
	"encoding/binary"
	"fmt"

	"github.com/go-faster/city"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Method identifies a frame compression method by its wire byte.
type Method byte

const (
	// None frames carry the body uncompressed.
	None Method = 0x02
	// LZ4 frames use LZ4 block compression.
	LZ4 Method = 0x82
	// ZSTD frames use Zstandard compression.
	ZSTD Method = 0x90
)

func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(m))
	}
}

// ParseMethod maps a configuration name to a frame method.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return 0, fmt.Errorf("compress: unknown compression method %q", name)
	}
}

const (
	checksumSize = 16
	// headerSize covers the method byte and the two size fields. The
	// compressed-size field on the wire includes this header.
	headerSize = 1 + 4 + 4
	// maxFrameBody bounds a single frame's uncompressed payload.
	maxFrameBody = 1 << 20
)

// ChecksumError reports a frame whose CityHash128 does not match its body.
// The connection that observed it is no longer usable.
type ChecksumError struct {
	Expected [checksumSize]byte
	Actual   [checksumSize]byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("compress: checksum mismatch (expected %x, got %x)", e.Expected, e.Actual)
}

var zstdEncoder, _ = zstd.NewWriter(nil,
	zstd.WithEncoderLevel(zstd.SpeedDefault),
	zstd.WithEncoderConcurrency(1),
)

var zstdDecoder, _ = zstd.NewReader(nil,
	zstd.WithDecoderConcurrency(1),
)

// checksum computes the content hash over method||sizes||body.
func checksum(frame []byte) [checksumSize]byte {
	var sum [checksumSize]byte
	h := city.CH128(frame)
	binary.LittleEndian.PutUint64(sum[0:8], h.Low)
	binary.LittleEndian.PutUint64(sum[8:16], h.High)
	return sum
}

// EncodeFrame compresses body with the given method and returns the full
// checksummed frame.
func EncodeFrame(method Method, body []byte) ([]byte, error) {
	var compressed []byte
	switch method {
	case None:
		compressed = body
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(body)))
		var c lz4.Compressor
		n, err := c.CompressBlock(body, buf)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		if n == 0 {
			// Incompressible input is stored raw by the block format.
			buf = append(buf[:0], body...)
			n = len(body)
		}
		compressed = buf[:n]
	case ZSTD:
		compressed = zstdEncoder.EncodeAll(body, nil)
	default:
		return nil, fmt.Errorf("compress: unknown compression method 0x%02x", byte(method))
	}

	frame := make([]byte, checksumSize+headerSize+len(compressed))
	frame[checksumSize] = byte(method)
	binary.LittleEndian.PutUint32(frame[checksumSize+1:], uint32(headerSize+len(compressed)))
	binary.LittleEndian.PutUint32(frame[checksumSize+5:], uint32(len(body)))
	copy(frame[checksumSize+headerSize:], compressed)

	sum := checksum(frame[checksumSize:])
	copy(frame[:checksumSize], sum[:])
	return frame, nil
}

// frameReader reads wire primitives of exactly the shapes DecodeFrame needs.
// *chio.Reader satisfies it.
type frameReader interface {
	ReadFull(buf []byte) error
	ReadN(n int) ([]byte, error)
}

// DecodeFrame reads one frame from r, verifies its checksum and returns the
// decompressed body.
func DecodeFrame(r frameReader) ([]byte, error) {
	var sum [checksumSize]byte
	if err := r.ReadFull(sum[:]); err != nil {
		return nil, err
	}
	var header [headerSize]byte
	if err := r.ReadFull(header[:]); err != nil {
		return nil, err
	}

	method := Method(header[0])
	compressedSize := binary.LittleEndian.Uint32(header[1:5])
	uncompressedSize := binary.LittleEndian.Uint32(header[5:9])
	if compressedSize < headerSize {
		return nil, fmt.Errorf("compress: invalid frame size %d", compressedSize)
	}

	frame := make([]byte, compressedSize)
	copy(frame, header[:])
	if err := r.ReadFull(frame[headerSize:]); err != nil {
		return nil, err
	}

	if actual := checksum(frame); actual != sum {
		return nil, &ChecksumError{Expected: sum, Actual: actual}
	}

	compressed := frame[headerSize:]
	switch method {
	case None:
		return compressed, nil
	case LZ4:
		body := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(compressed, body)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		return body[:n], nil
	case ZSTD:
		body, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("compress: zstd: %w", err)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("compress: unknown compression method 0x%02x", byte(method))
	}
}
