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

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// tupleCodec stores fixed-arity tuples column by column: all first
// elements, then all second elements. Rows surface as []any.
type tupleCodec struct {
	spec     string
	names    []string
	elements []Codec
}

func newTuple(spec string) (Codec, error) {
	params := splitParams(param(spec, "Tuple"))
	if len(params) == 0 {
		return nil, fmt.Errorf("column: malformed type %q", spec)
	}
	c := &tupleCodec{spec: spec}
	for _, p := range params {
		name, typ := splitNameType(p)
		inner, err := newCodec(typ)
		if err != nil {
			return nil, err
		}
		c.names = append(c.names, name)
		c.elements = append(c.elements, inner)
	}
	return c, nil
}

func (c *tupleCodec) Type() string { return c.spec }

func (c *tupleCodec) ReadStatePrefix(r *chio.Reader) error {
	for _, e := range c.elements {
		if err := e.ReadStatePrefix(r); err != nil {
			return err
		}
	}
	return nil
}

func (c *tupleCodec) WriteStatePrefix(w *chio.Writer) error {
	for _, e := range c.elements {
		if err := e.WriteStatePrefix(w); err != nil {
			return err
		}
	}
	return nil
}

func (c *tupleCodec) Read(r *chio.Reader, n int) ([]any, error) {
	columns := make([][]any, len(c.elements))
	for i, e := range c.elements {
		col, err := e.Read(r, n)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}
	out := make([]any, n)
	for row := 0; row < n; row++ {
		tuple := make([]any, len(c.elements))
		for i := range c.elements {
			tuple[i] = columns[i][row]
		}
		out[row] = tuple
	}
	return out, nil
}

func (c *tupleCodec) Write(w *chio.Writer, values []any) error {
	columns := make([][]any, len(c.elements))
	for i := range columns {
		columns[i] = make([]any, len(values))
	}
	for row, v := range values {
		tuple, ok := asSlice(v)
		if !ok || len(tuple) != len(c.elements) {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		for i := range c.elements {
			columns[i][row] = tuple[i]
		}
	}
	for i, e := range c.elements {
		if err := e.Write(w, columns[i]); err != nil {
			return err
		}
	}
	return nil
}
