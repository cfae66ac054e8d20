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

// Package column implements the closed family of column codecs: each server
// type descriptor maps to a codec that reads and writes that column's wire
// representation.
package column

import (
	"fmt"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// Codec reads and writes one column's values in wire order.
//
// A codec instance belongs to a single column of a single block and may
// carry per-column state such as a resolved timezone or an enum mapping.
type Codec interface {
	// Type returns the server-side type descriptor the codec was built from.
	Type() string

	// ReadStatePrefix consumes the per-column state prefix that precedes
	// row data for some types. Most codecs read nothing.
	ReadStatePrefix(r *chio.Reader) error

	// WriteStatePrefix emits the per-column state prefix.
	WriteStatePrefix(w *chio.Writer) error

	// Read decodes n values from the stream.
	Read(r *chio.Reader, n int) ([]any, error)

	// Write encodes the given values to the stream.
	Write(w *chio.Writer, values []any) error
}

// UnknownTypeError reports a descriptor naming a type outside the supported
// family.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("column: unknown column type %q", e.Type)
}

// TypeMismatchError reports a value whose Go type cannot be encoded into
// the column it was given to.
type TypeMismatchError struct {
	Column string
	Value  any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("column: value %v (%T) does not fit column type %s", e.Value, e.Value, e.Column)
}

// noPrefix is embedded by codecs whose columns carry no state prefix.
type noPrefix struct{}

func (noPrefix) ReadStatePrefix(*chio.Reader) error  { return nil }
func (noPrefix) WriteStatePrefix(*chio.Writer) error { return nil }

// New builds the codec for a server type descriptor. Descriptors compose
// recursively; unknown names fail with UnknownTypeError.
func New(spec string) (Codec, error) {
	return newCodec(normalizeSpec(spec))
}

func newCodec(spec string) (Codec, error) {
	switch {
	case spec == "String":
		return &stringCodec{}, nil
	case hasParam(spec, "FixedString"):
		return newFixedString(spec)
	case spec == "UInt8":
		return &uint8Codec{}, nil
	case spec == "UInt16":
		return &uint16Codec{}, nil
	case spec == "UInt32":
		return &uint32Codec{}, nil
	case spec == "UInt64":
		return &uint64Codec{}, nil
	case spec == "Int8":
		return &int8Codec{}, nil
	case spec == "Int16":
		return &int16Codec{}, nil
	case spec == "Int32":
		return &int32Codec{}, nil
	case spec == "Int64":
		return &int64Codec{}, nil
	case spec == "Float32":
		return &float32Codec{}, nil
	case spec == "Float64":
		return &float64Codec{}, nil
	case spec == "Bool":
		return &boolCodec{}, nil
	case spec == "UInt128":
		return newBigIntCodec(spec, 16, false), nil
	case spec == "UInt256":
		return newBigIntCodec(spec, 32, false), nil
	case spec == "Int128":
		return newBigIntCodec(spec, 16, true), nil
	case spec == "Int256":
		return newBigIntCodec(spec, 32, true), nil
	case spec == "Date":
		return &dateCodec{}, nil
	case spec == "Date32":
		return &date32Codec{}, nil
	case spec == "DateTime" || hasParam(spec, "DateTime"):
		return newDateTime(spec)
	case hasParam(spec, "DateTime64"):
		return newDateTime64(spec)
	case hasParam(spec, "Decimal"), hasParam(spec, "Decimal32"),
		hasParam(spec, "Decimal64"), hasParam(spec, "Decimal128"),
		hasParam(spec, "Decimal256"):
		return newDecimal(spec)
	case spec == "UUID":
		return &uuidCodec{}, nil
	case spec == "IPv4":
		return &ipv4Codec{}, nil
	case spec == "IPv6":
		return &ipv6Codec{}, nil
	case hasParam(spec, "Enum8"):
		return newEnum(spec, 8)
	case hasParam(spec, "Enum16"):
		return newEnum(spec, 16)
	case hasParam(spec, "Array"):
		return newArray(spec)
	case hasParam(spec, "Tuple"):
		return newTuple(spec)
	case hasParam(spec, "Nullable"):
		return newNullable(spec)
	case hasParam(spec, "Map"):
		return newMap(spec)
	case hasParam(spec, "LowCardinality"):
		return newLowCardinality(spec)
	case hasParam(spec, "Nested"):
		return newNested(spec)
	case hasParam(spec, "SimpleAggregateFunction"):
		return newSimpleAggregate(spec)
	case spec == "Point":
		return newCodec("Tuple(Float64, Float64)")
	case spec == "Ring":
		return newCodec("Array(Point)")
	case spec == "Polygon":
		return newCodec("Array(Ring)")
	case spec == "MultiPolygon":
		return newCodec("Array(Polygon)")
	case spec == "JSON" || spec == "Object('json')":
		return &jsonCodec{}, nil
	case spec == "Nothing":
		return &nothingCodec{}, nil
	case isInterval(spec):
		return newInterval(spec)
	default:
		return nil, &UnknownTypeError{Type: spec}
	}
}
