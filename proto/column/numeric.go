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
	"github.com/glasshouse/glasshouse-go/proto/chio"
)

type uint8Codec struct{ noPrefix }

func (*uint8Codec) Type() string { return "UInt8" }

func (c *uint8Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadUInt8()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *uint8Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asUInt64(v)
		if !ok || x > 0xff {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteUInt8(uint8(x)); err != nil {
			return err
		}
	}
	return nil
}

type uint16Codec struct{ noPrefix }

func (*uint16Codec) Type() string { return "UInt16" }

func (c *uint16Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadUInt16()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *uint16Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asUInt64(v)
		if !ok || x > 0xffff {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteUInt16(uint16(x)); err != nil {
			return err
		}
	}
	return nil
}

type uint32Codec struct{ noPrefix }

func (*uint32Codec) Type() string { return "UInt32" }

func (c *uint32Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadUInt32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *uint32Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asUInt64(v)
		if !ok || x > 0xffffffff {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteUInt32(uint32(x)); err != nil {
			return err
		}
	}
	return nil
}

type uint64Codec struct{ noPrefix }

func (*uint64Codec) Type() string { return "UInt64" }

func (c *uint64Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadUInt64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *uint64Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asUInt64(v)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteUInt64(x); err != nil {
			return err
		}
	}
	return nil
}

type int8Codec struct{ noPrefix }

func (*int8Codec) Type() string { return "Int8" }

func (c *int8Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadInt8()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *int8Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asInt64(v)
		if !ok || x < -128 || x > 127 {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteInt8(int8(x)); err != nil {
			return err
		}
	}
	return nil
}

type int16Codec struct{ noPrefix }

func (*int16Codec) Type() string { return "Int16" }

func (c *int16Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadInt16()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *int16Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asInt64(v)
		if !ok || x < -32768 || x > 32767 {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteInt16(int16(x)); err != nil {
			return err
		}
	}
	return nil
}

type int32Codec struct{ noPrefix }

func (*int32Codec) Type() string { return "Int32" }

func (c *int32Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *int32Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asInt64(v)
		if !ok || x < -2147483648 || x > 2147483647 {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteInt32(int32(x)); err != nil {
			return err
		}
	}
	return nil
}

type int64Codec struct{ noPrefix }

func (*int64Codec) Type() string { return "Int64" }

func (c *int64Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *int64Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asInt64(v)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteInt64(x); err != nil {
			return err
		}
	}
	return nil
}

type float32Codec struct{ noPrefix }

func (*float32Codec) Type() string { return "Float32" }

func (c *float32Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadFloat32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *float32Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asFloat64(v)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteFloat32(float32(x)); err != nil {
			return err
		}
	}
	return nil
}

type float64Codec struct{ noPrefix }

func (*float64Codec) Type() string { return "Float64" }

func (c *float64Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadFloat64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *float64Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asFloat64(v)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteFloat64(x); err != nil {
			return err
		}
	}
	return nil
}

type boolCodec struct{ noPrefix }

func (*boolCodec) Type() string { return "Bool" }

func (c *boolCodec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *boolCodec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := v.(bool)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteBool(x); err != nil {
			return err
		}
	}
	return nil
}

// asInt64 widens any signed or unsigned Go integer to int64.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > 1<<63-1 {
			return 0, false
		}
		return int64(x), true
	default:
		return 0, false
	}
}

// asUInt64 widens any non-negative Go integer to uint64.
func asUInt64(v any) (uint64, bool) {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case int8:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case int16:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case int32:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case int64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
