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
	"encoding/json"
	"math/big"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// jsonCodec sends documents as strings. The server replies with a
// serialization marker and the concrete type it chose for the column; the
// payload is decoded with that type's codec.
type jsonCodec struct{}

func (*jsonCodec) Type() string { return "JSON" }

func (*jsonCodec) ReadStatePrefix(*chio.Reader) error { return nil }

func (*jsonCodec) WriteStatePrefix(w *chio.Writer) error {
	return w.WriteUInt8(1)
}

func (c *jsonCodec) Read(r *chio.Reader, n int) ([]any, error) {
	if _, err := r.ReadUInt8(); err != nil {
		return nil, err
	}
	spec, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	inner, err := New(spec)
	if err != nil {
		return nil, err
	}
	if err := inner.ReadStatePrefix(r); err != nil {
		return nil, err
	}
	return inner.Read(r, n)
}

func (c *jsonCodec) Write(w *chio.Writer, values []any) error {
	texts := make([]any, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case string:
			texts[i] = x
		case []byte:
			texts[i] = x
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return &TypeMismatchError{Column: c.Type(), Value: v}
			}
			texts[i] = b
		}
	}
	return (&stringCodec{}).Write(w, texts)
}

// nothingCodec covers the Nothing type produced by NULL literals: one
// placeholder byte per row, decoded as nil.
type nothingCodec struct{ noPrefix }

func (*nothingCodec) Type() string { return "Nothing" }

func (c *nothingCodec) Read(r *chio.Reader, n int) ([]any, error) {
	if _, err := r.ReadN(n); err != nil {
		return nil, err
	}
	return make([]any, n), nil
}

func (c *nothingCodec) Write(w *chio.Writer, values []any) error {
	return w.WriteBytes(make([]byte, len(values)))
}

// defaultFor yields the filler value written into null slots of a Nullable
// column's inner data.
func defaultFor(c Codec) any {
	switch c := c.(type) {
	case *stringCodec, *fixedStringCodec, *jsonCodec:
		return ""
	case *uint8Codec:
		return uint8(0)
	case *uint16Codec:
		return uint16(0)
	case *uint32Codec:
		return uint32(0)
	case *uint64Codec:
		return uint64(0)
	case *int8Codec:
		return int8(0)
	case *int16Codec:
		return int16(0)
	case *int32Codec:
		return int32(0)
	case *int64Codec, *intervalCodec:
		return int64(0)
	case *float32Codec:
		return float32(0)
	case *float64Codec:
		return float64(0)
	case *boolCodec:
		return false
	case *bigIntCodec:
		return new(big.Int)
	case *decimalCodec:
		return decimal.Decimal{}
	case *dateCodec, *date32Codec, *dateTimeCodec, *dateTime64Codec:
		return time.Unix(0, 0).UTC()
	case *uuidCodec:
		return uuid.UUID{}
	case *ipv4Codec:
		return netip.AddrFrom4([4]byte{})
	case *ipv6Codec:
		return netip.AddrFrom16([16]byte{})
	case *enumCodec:
		return c.defaultLabel()
	case *arrayCodec:
		return []any{}
	case *tupleCodec:
		tuple := make([]any, len(c.elements))
		for i, e := range c.elements {
			tuple[i] = defaultFor(e)
		}
		return tuple
	case *mapCodec:
		return map[any]any{}
	case *nullableCodec, *nothingCodec:
		return nil
	case *lowCardinalityCodec:
		if c.nullable {
			return nil
		}
		return defaultFor(c.base)
	case *renamedCodec:
		return defaultFor(c.Codec)
	default:
		return nil
	}
}
