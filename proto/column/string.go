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
	"strconv"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

type stringCodec struct{ noPrefix }

func (*stringCodec) Type() string { return "String" }

func (c *stringCodec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *stringCodec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		switch x := v.(type) {
		case string:
			if err := w.WriteString(x); err != nil {
				return err
			}
		case []byte:
			if err := w.WriteStringBytes(x); err != nil {
				return err
			}
		default:
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
	}
	return nil
}

// fixedStringCodec stores byte strings zero-padded to a fixed width.
// Values read back keep the padding, matching the server's storage.
type fixedStringCodec struct {
	noPrefix
	spec string
	size int
}

func newFixedString(spec string) (Codec, error) {
	size, err := strconv.Atoi(param(spec, "FixedString"))
	if err != nil || size <= 0 {
		return nil, fmt.Errorf("column: malformed type %q", spec)
	}
	return &fixedStringCodec{spec: spec, size: size}, nil
}

func (c *fixedStringCodec) Type() string { return c.spec }

func (c *fixedStringCodec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		buf, err := r.ReadFixedString(c.size)
		if err != nil {
			return nil, err
		}
		out[i] = string(buf)
	}
	return out, nil
}

func (c *fixedStringCodec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		var b []byte
		switch x := v.(type) {
		case string:
			b = []byte(x)
		case []byte:
			b = x
		default:
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		if len(b) > c.size {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		if err := w.WriteFixedString(b, c.size); err != nil {
			return err
		}
	}
	return nil
}
