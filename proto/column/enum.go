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
	"strings"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// enumCodec maps symbolic names to 8-bit or 16-bit wire values using the
// mapping embedded in the type descriptor. Values surface as the names.
type enumCodec struct {
	noPrefix
	spec    string
	bits    int
	byValue map[int64]string
	byName  map[string]int64
}

func newEnum(spec string, bits int) (Codec, error) {
	name := fmt.Sprintf("Enum%d", bits)
	c := &enumCodec{
		spec:    spec,
		bits:    bits,
		byValue: make(map[int64]string),
		byName:  make(map[string]int64),
	}
	for _, item := range splitParams(param(spec, name)) {
		eq := strings.LastIndex(item, "=")
		if eq < 0 {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		label, err := unquote(item[:eq])
		if err != nil {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		value, err := strconv.ParseInt(strings.TrimSpace(item[eq+1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		c.byValue[value] = label
		c.byName[label] = value
	}
	if len(c.byValue) == 0 {
		return nil, fmt.Errorf("column: malformed type %q", spec)
	}
	return c, nil
}

func (c *enumCodec) Type() string { return c.spec }

func (c *enumCodec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		var value int64
		if c.bits == 8 {
			v, err := r.ReadInt8()
			if err != nil {
				return nil, err
			}
			value = int64(v)
		} else {
			v, err := r.ReadInt16()
			if err != nil {
				return nil, err
			}
			value = int64(v)
		}
		label, ok := c.byValue[value]
		if !ok {
			return nil, fmt.Errorf("column: %s has no member with value %d", c.spec, value)
		}
		out[i] = label
	}
	return out, nil
}

func (c *enumCodec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		value, err := c.lookup(v)
		if err != nil {
			return err
		}
		if c.bits == 8 {
			if err := w.WriteInt8(int8(value)); err != nil {
				return err
			}
		} else {
			if err := w.WriteInt16(int16(value)); err != nil {
				return err
			}
		}
	}
	return nil
}

// defaultLabel picks the member with the smallest value as the null filler.
func (c *enumCodec) defaultLabel() string {
	first := true
	var min int64
	for v := range c.byValue {
		if first || v < min {
			min, first = v, false
		}
	}
	return c.byValue[min]
}

func (c *enumCodec) lookup(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		value, ok := c.byName[x]
		if !ok {
			return 0, fmt.Errorf("column: %s has no member named %q", c.spec, x)
		}
		return value, nil
	default:
		value, ok := asInt64(v)
		if !ok {
			return 0, &TypeMismatchError{Column: c.spec, Value: v}
		}
		if _, known := c.byValue[value]; !known {
			return 0, fmt.Errorf("column: %s has no member with value %d", c.spec, value)
		}
		return value, nil
	}
}
