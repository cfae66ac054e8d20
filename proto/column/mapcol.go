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
	"fmt"
	"reflect"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// mapCodec stores maps with the Array(Tuple(K, V)) wire shape. Values
// surface as map[any]any; entry order inside a row is not preserved.
type mapCodec struct {
	spec string
	wire Codec
}

func newMap(spec string) (Codec, error) {
	params := splitParams(param(spec, "Map"))
	if len(params) != 2 {
		return nil, fmt.Errorf("column: malformed type %q", spec)
	}
	wire, err := newCodec(fmt.Sprintf("Array(Tuple(%s, %s))", params[0], params[1]))
	if err != nil {
		return nil, err
	}
	return &mapCodec{spec: spec, wire: wire}, nil
}

func (c *mapCodec) Type() string { return c.spec }

func (c *mapCodec) ReadStatePrefix(r *chio.Reader) error {
	return c.wire.ReadStatePrefix(r)
}

func (c *mapCodec) WriteStatePrefix(w *chio.Writer) error {
	return c.wire.WriteStatePrefix(w)
}

func (c *mapCodec) Read(r *chio.Reader, n int) ([]any, error) {
	rows, err := c.wire.Read(r, n)
	if err != nil {
		return nil, err
	}
	out := make([]any, n)
	for i, row := range rows {
		pairs := row.([]any)
		m := make(map[any]any, len(pairs))
		for _, p := range pairs {
			kv := p.([]any)
			m[kv[0]] = kv[1]
		}
		out[i] = m
	}
	return out, nil
}

func (c *mapCodec) Write(w *chio.Writer, values []any) error {
	rows := make([]any, len(values))
	for i, v := range values {
		pairs, ok := asMapPairs(v)
		if !ok {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		rows[i] = pairs
	}
	return c.wire.Write(w, rows)
}

// asMapPairs views any map value as a slice of [key, value] tuples.
func asMapPairs(v any) ([]any, bool) {
	if m, ok := v.(map[any]any); ok {
		pairs := make([]any, 0, len(m))
		for k, val := range m {
			pairs = append(pairs, []any{k, val})
		}
		return pairs, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return nil, false
	}
	pairs := make([]any, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, []any{iter.Key().Interface(), iter.Value().Interface()})
	}
	return pairs, true
}
