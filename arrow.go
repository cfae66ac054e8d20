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
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/glasshouse/glasshouse-go/proto"
)

// arrowType maps a column type descriptor to an Arrow data type. Nullable
// wrappers map to nullable fields over the inner type.
func arrowType(spec string) (arrow.DataType, bool, error) {
	if inner, ok := strings.CutPrefix(spec, "Nullable("); ok && strings.HasSuffix(inner, ")") {
		dt, _, err := arrowType(strings.TrimSuffix(inner, ")"))
		return dt, true, err
	}
	switch {
	case spec == "UInt8":
		return arrow.PrimitiveTypes.Uint8, false, nil
	case spec == "UInt16":
		return arrow.PrimitiveTypes.Uint16, false, nil
	case spec == "UInt32":
		return arrow.PrimitiveTypes.Uint32, false, nil
	case spec == "UInt64":
		return arrow.PrimitiveTypes.Uint64, false, nil
	case spec == "Int8":
		return arrow.PrimitiveTypes.Int8, false, nil
	case spec == "Int16":
		return arrow.PrimitiveTypes.Int16, false, nil
	case spec == "Int32":
		return arrow.PrimitiveTypes.Int32, false, nil
	case spec == "Int64":
		return arrow.PrimitiveTypes.Int64, false, nil
	case spec == "Float32":
		return arrow.PrimitiveTypes.Float32, false, nil
	case spec == "Float64":
		return arrow.PrimitiveTypes.Float64, false, nil
	case spec == "Bool":
		return arrow.FixedWidthTypes.Boolean, false, nil
	case spec == "String", strings.HasPrefix(spec, "FixedString("):
		return arrow.BinaryTypes.String, false, nil
	case spec == "Date", spec == "Date32":
		return arrow.FixedWidthTypes.Date32, false, nil
	case spec == "DateTime", strings.HasPrefix(spec, "DateTime("):
		return arrow.FixedWidthTypes.Timestamp_s, false, nil
	case strings.HasPrefix(spec, "DateTime64"):
		return arrow.FixedWidthTypes.Timestamp_ns, false, nil
	case spec == "UUID":
		return arrow.BinaryTypes.String, false, nil
	default:
		return nil, false, &InterfaceError{Message: fmt.Sprintf("arrow: no mapping for type %s", spec)}
	}
}

// BlockToRecord converts a data block into an Arrow record batch. The caller
// releases the record.
func BlockToRecord(block *proto.Block, mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	fields := make([]arrow.Field, len(block.Columns))
	for i, col := range block.Columns {
		dt, nullable, err := arrowType(col.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: nullable}
	}
	schema := arrow.NewSchema(fields, nil)
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for i, col := range block.Columns {
		fb := builder.Field(i)
		for _, v := range col.Data {
			if v == nil {
				fb.AppendNull()
				continue
			}
			if err := appendArrowValue(fb, v); err != nil {
				return nil, &InterfaceError{Message: fmt.Sprintf("arrow: column %s", col.Name), Err: err}
			}
		}
	}
	return builder.NewRecord(), nil
}

func appendArrowValue(fb array.Builder, v any) error {
	switch b := fb.(type) {
	case *array.Uint8Builder:
		x, ok := v.(uint8)
		if !ok {
			return fmt.Errorf("expected uint8, got %T", v)
		}
		b.Append(x)
	case *array.Uint16Builder:
		x, ok := v.(uint16)
		if !ok {
			return fmt.Errorf("expected uint16, got %T", v)
		}
		b.Append(x)
	case *array.Uint32Builder:
		x, ok := v.(uint32)
		if !ok {
			return fmt.Errorf("expected uint32, got %T", v)
		}
		b.Append(x)
	case *array.Uint64Builder:
		x, ok := v.(uint64)
		if !ok {
			return fmt.Errorf("expected uint64, got %T", v)
		}
		b.Append(x)
	case *array.Int8Builder:
		x, ok := v.(int8)
		if !ok {
			return fmt.Errorf("expected int8, got %T", v)
		}
		b.Append(x)
	case *array.Int16Builder:
		x, ok := v.(int16)
		if !ok {
			return fmt.Errorf("expected int16, got %T", v)
		}
		b.Append(x)
	case *array.Int32Builder:
		x, ok := v.(int32)
		if !ok {
			return fmt.Errorf("expected int32, got %T", v)
		}
		b.Append(x)
	case *array.Int64Builder:
		x, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64, got %T", v)
		}
		b.Append(x)
	case *array.Float32Builder:
		x, ok := v.(float32)
		if !ok {
			return fmt.Errorf("expected float32, got %T", v)
		}
		b.Append(x)
	case *array.Float64Builder:
		x, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected float64, got %T", v)
		}
		b.Append(x)
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		b.Append(x)
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			b.Append(x)
		case fmt.Stringer:
			b.Append(x.String())
		default:
			return fmt.Errorf("expected string, got %T", v)
		}
	case *array.Date32Builder:
		x, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
		b.Append(arrow.Date32FromTime(x))
	case *array.TimestampBuilder:
		x, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
		unit := b.Type().(*arrow.TimestampType).Unit
		if unit == arrow.Nanosecond {
			b.Append(arrow.Timestamp(x.UnixNano()))
		} else {
			b.Append(arrow.Timestamp(x.Unix()))
		}
	default:
		return fmt.Errorf("unsupported builder %T", fb)
	}
	return nil
}

// RecordToRows converts an Arrow record batch into rows suitable for Insert.
func RecordToRows(rec arrow.Record) ([][]any, error) {
	nRows := int(rec.NumRows())
	nCols := int(rec.NumCols())
	rows := make([][]any, nRows)
	for i := range rows {
		rows[i] = make([]any, nCols)
	}
	for j := 0; j < nCols; j++ {
		col := rec.Column(j)
		for i := 0; i < nRows; i++ {
			if col.IsNull(i) {
				continue
			}
			v, err := arrowValue(col, i)
			if err != nil {
				return nil, &InterfaceError{Message: fmt.Sprintf("arrow: column %s", rec.ColumnName(j)), Err: err}
			}
			rows[i][j] = v
		}
	}
	return rows, nil
}

func arrowValue(col arrow.Array, i int) (any, error) {
	switch arr := col.(type) {
	case *array.Uint8:
		return arr.Value(i), nil
	case *array.Uint16:
		return arr.Value(i), nil
	case *array.Uint32:
		return arr.Value(i), nil
	case *array.Uint64:
		return arr.Value(i), nil
	case *array.Int8:
		return arr.Value(i), nil
	case *array.Int16:
		return arr.Value(i), nil
	case *array.Int32:
		return arr.Value(i), nil
	case *array.Int64:
		return arr.Value(i), nil
	case *array.Float32:
		return arr.Value(i), nil
	case *array.Float64:
		return arr.Value(i), nil
	case *array.Boolean:
		return arr.Value(i), nil
	case *array.String:
		return arr.Value(i), nil
	case *array.Date32:
		return arr.Value(i).ToTime(), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(i).ToTime(unit), nil
	default:
		return nil, fmt.Errorf("unsupported array %T", col)
	}
}
