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

package column

import (
	"math/big"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// bigIntCodec handles 128-bit and 256-bit integers, stored little-endian
// with two's-complement for signed types. Values surface as *big.Int.
type bigIntCodec struct {
	noPrefix
	spec   string
	size   int
	signed bool
}

func newBigIntCodec(spec string, size int, signed bool) *bigIntCodec {
	return &bigIntCodec{spec: spec, size: size, signed: signed}
}

func (c *bigIntCodec) Type() string { return c.spec }

func (c *bigIntCodec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	buf := make([]byte, c.size)
	for i := 0; i < n; i++ {
		if err := r.ReadFull(buf); err != nil {
			return nil, err
		}
		out[i] = bigIntFromLE(buf, c.signed)
	}
	return out, nil
}

func (c *bigIntCodec) Write(w *chio.Writer, values []any) error {
	buf := make([]byte, c.size)
	for _, v := range values {
		x, ok := toBigInt(v)
		if !ok {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		if !c.signed && x.Sign() < 0 {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		if x.BitLen() > c.size*8-btoi(c.signed) && !(c.signed && isMinTwosComplement(x, c.size)) {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		bigIntToLE(x, buf)
		if err := w.WriteBytes(buf); err != nil {
			return err
		}
	}
	return nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isMinTwosComplement reports whether x is exactly -2^(bits-1), the one
// negative value whose magnitude needs the full width.
func isMinTwosComplement(x *big.Int, size int) bool {
	if x.Sign() >= 0 {
		return false
	}
	min := new(big.Int).Lsh(big.NewInt(1), uint(size*8-1))
	min.Neg(min)
	return x.Cmp(min) == 0
}

func toBigInt(v any) (*big.Int, bool) {
	switch x := v.(type) {
	case *big.Int:
		return x, true
	case big.Int:
		return &x, true
	case int:
		return big.NewInt(int64(x)), true
	case int64:
		return big.NewInt(x), true
	case uint64:
		return new(big.Int).SetUint64(x), true
	default:
		if i, ok := asInt64(v); ok {
			return big.NewInt(i), true
		}
		return nil, false
	}
}

// bigIntFromLE decodes a little-endian two's-complement integer.
func bigIntFromLE(buf []byte, signed bool) *big.Int {
	be := make([]byte, len(buf))
	for i, b := range buf {
		be[len(buf)-1-i] = b
	}
	x := new(big.Int).SetBytes(be)
	if signed && len(be) > 0 && be[0]&0x80 != 0 {
		// Negative: subtract 2^bits.
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(buf)*8))
		x.Sub(x, mod)
	}
	return x
}

// bigIntToLE encodes x into buf as little-endian two's-complement.
func bigIntToLE(x *big.Int, buf []byte) {
	v := x
	if x.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(buf)*8))
		v = new(big.Int).Add(x, mod)
	}
	be := v.Bytes()
	for i := range buf {
		buf[i] = 0
	}
	for i := 0; i < len(be); i++ {
		buf[i] = be[len(be)-1-i]
	}
}
