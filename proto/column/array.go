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
	"reflect"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// arrayCodec stores variable-length arrays as cumulative end offsets
// followed by the flattened inner column.
type arrayCodec struct {
	spec  string
	inner Codec
}

func newArray(spec string) (Codec, error) {
	inner, err := newCodec(normalizeSpec(param(spec, "Array")))
	if err != nil {
		return nil, err
	}
	return &arrayCodec{spec: spec, inner: inner}, nil
}

func (c *arrayCodec) Type() string { return c.spec }

func (c *arrayCodec) ReadStatePrefix(r *chio.Reader) error {
	return c.inner.ReadStatePrefix(r)
}

func (c *arrayCodec) WriteStatePrefix(w *chio.Writer) error {
	return c.inner.WriteStatePrefix(w)
}

func (c *arrayCodec) Read(r *chio.Reader, n int) ([]any, error) {
	offsets := make([]uint64, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadUInt64()
		if err != nil {
			return nil, err
		}
		offsets[i] = v
	}
	var total int
	if n > 0 {
		total = int(offsets[n-1])
	}
	flat, err := c.inner.Read(r, total)
	if err != nil {
		return nil, err
	}
	out := make([]any, n)
	var start uint64
	for i := 0; i < n; i++ {
		end := offsets[i]
		out[i] = append([]any(nil), flat[start:end]...)
		start = end
	}
	return out, nil
}

func (c *arrayCodec) Write(w *chio.Writer, values []any) error {
	var flat []any
	var offset uint64
	for _, v := range values {
		items, ok := asSlice(v)
		if !ok {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		offset += uint64(len(items))
		if err := w.WriteUInt64(offset); err != nil {
			return err
		}
		flat = append(flat, items...)
	}
	return c.inner.Write(w, flat)
}

// asSlice views any slice value as []any without copying []any inputs.
func asSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
