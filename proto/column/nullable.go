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

// nullableCodec stores a null mask followed by the fully materialized inner
// column. Null rows still occupy an inner slot with a default value.
type nullableCodec struct {
	spec  string
	inner Codec
}

func newNullable(spec string) (Codec, error) {
	inner, err := newCodec(normalizeSpec(param(spec, "Nullable")))
	if err != nil {
		return nil, err
	}
	return &nullableCodec{spec: spec, inner: inner}, nil
}

func (c *nullableCodec) Type() string { return c.spec }

func (c *nullableCodec) ReadStatePrefix(r *chio.Reader) error {
	return c.inner.ReadStatePrefix(r)
}

func (c *nullableCodec) WriteStatePrefix(w *chio.Writer) error {
	return c.inner.WriteStatePrefix(w)
}

func (c *nullableCodec) Read(r *chio.Reader, n int) ([]any, error) {
	nulls := make([]byte, n)
	if err := r.ReadFull(nulls); err != nil {
		return nil, err
	}
	out, err := c.inner.Read(r, n)
	if err != nil {
		return nil, err
	}
	for i, isNull := range nulls {
		if isNull != 0 {
			out[i] = nil
		}
	}
	return out, nil
}

func (c *nullableCodec) Write(w *chio.Writer, values []any) error {
	nulls := make([]byte, len(values))
	inner := make([]any, len(values))
	defaultValue := c.defaultValue()
	for i, v := range values {
		if v == nil {
			nulls[i] = 1
			inner[i] = defaultValue
		} else {
			inner[i] = v
		}
	}
	if err := w.WriteBytes(nulls); err != nil {
		return err
	}
	return c.inner.Write(w, inner)
}

// defaultValue produces the filler written into null slots of the inner
// column.
func (c *nullableCodec) defaultValue() any {
	return defaultFor(c.inner)
}
