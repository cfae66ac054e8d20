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

// Dictionary serialization constants. The low byte of the per-block flags
// word selects the index width; the high bits describe dictionary sharing.
const (
	lcVersionSharedWithAdditionalKeys = 1

	lcKeyUInt8  = 0
	lcKeyUInt16 = 1
	lcKeyUInt32 = 2
	lcKeyUInt64 = 3

	lcNeedGlobalDictionary = 1 << 8
	lcHasAdditionalKeys    = 1 << 9
	lcNeedUpdateDictionary = 1 << 10
)

// lowCardinalityCodec stores a per-block dictionary of distinct values plus
// an index column. A nullable inner type reserves dictionary slot zero as
// the null sentinel.
type lowCardinalityCodec struct {
	spec     string
	nullable bool
	base     Codec
}

func newLowCardinality(spec string) (Codec, error) {
	innerSpec := normalizeSpec(param(spec, "LowCardinality"))
	nullable := hasParam(innerSpec, "Nullable")
	if nullable {
		innerSpec = normalizeSpec(param(innerSpec, "Nullable"))
	}
	base, err := newCodec(innerSpec)
	if err != nil {
		return nil, err
	}
	return &lowCardinalityCodec{spec: spec, nullable: nullable, base: base}, nil
}

func (c *lowCardinalityCodec) Type() string { return c.spec }

func (c *lowCardinalityCodec) ReadStatePrefix(r *chio.Reader) error {
	version, err := r.ReadUInt64()
	if err != nil {
		return err
	}
	if version != lcVersionSharedWithAdditionalKeys {
		return fmt.Errorf("column: unsupported LowCardinality version %d", version)
	}
	return nil
}

func (c *lowCardinalityCodec) WriteStatePrefix(w *chio.Writer) error {
	return w.WriteUInt64(lcVersionSharedWithAdditionalKeys)
}

func (c *lowCardinalityCodec) Read(r *chio.Reader, n int) ([]any, error) {
	if n == 0 {
		return nil, nil
	}
	flags, err := r.ReadUInt64()
	if err != nil {
		return nil, err
	}
	if flags&lcNeedGlobalDictionary != 0 {
		return nil, fmt.Errorf("column: %s uses a global dictionary, which is not supported", c.spec)
	}
	if flags&lcHasAdditionalKeys == 0 {
		return nil, fmt.Errorf("column: %s block carries no dictionary", c.spec)
	}
	dictSize, err := r.ReadUInt64()
	if err != nil {
		return nil, err
	}
	dict, err := c.base.Read(r, int(dictSize))
	if err != nil {
		return nil, err
	}
	rows, err := r.ReadUInt64()
	if err != nil {
		return nil, err
	}
	if int(rows) != n {
		return nil, fmt.Errorf("column: %s block has %d rows, want %d", c.spec, rows, n)
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		idx, err := c.readIndex(r, flags&0xf)
		if err != nil {
			return nil, err
		}
		if idx >= dictSize {
			return nil, fmt.Errorf("column: %s index %d out of dictionary range %d", c.spec, idx, dictSize)
		}
		if c.nullable && idx == 0 {
			out[i] = nil
		} else {
			out[i] = dict[idx]
		}
	}
	return out, nil
}

func (c *lowCardinalityCodec) readIndex(r *chio.Reader, width uint64) (uint64, error) {
	switch width {
	case lcKeyUInt8:
		v, err := r.ReadUInt8()
		return uint64(v), err
	case lcKeyUInt16:
		v, err := r.ReadUInt16()
		return uint64(v), err
	case lcKeyUInt32:
		v, err := r.ReadUInt32()
		return uint64(v), err
	case lcKeyUInt64:
		return r.ReadUInt64()
	default:
		return 0, fmt.Errorf("column: %s has invalid index width %d", c.spec, width)
	}
}

func (c *lowCardinalityCodec) Write(w *chio.Writer, values []any) error {
	if len(values) == 0 {
		return nil
	}
	var dict []any
	index := make(map[any]uint64)
	if c.nullable {
		dict = append(dict, defaultFor(c.base))
	}
	indices := make([]uint64, len(values))
	for i, v := range values {
		if v == nil {
			if !c.nullable {
				return &TypeMismatchError{Column: c.spec, Value: v}
			}
			indices[i] = 0
			continue
		}
		idx, seen := lookupDictIndex(index, v)
		if !seen {
			idx = uint64(len(dict))
			dict = append(dict, v)
			storeDictIndex(index, v, idx)
		}
		indices[i] = idx
	}

	width := uint64(lcKeyUInt8)
	switch {
	case len(dict) >= 1<<32:
		width = lcKeyUInt64
	case len(dict) >= 1<<16:
		width = lcKeyUInt32
	case len(dict) >= 1<<8:
		width = lcKeyUInt16
	}

	if err := w.WriteUInt64(lcHasAdditionalKeys | lcNeedUpdateDictionary | width); err != nil {
		return err
	}
	if err := w.WriteUInt64(uint64(len(dict))); err != nil {
		return err
	}
	if err := c.base.Write(w, dict); err != nil {
		return err
	}
	if err := w.WriteUInt64(uint64(len(values))); err != nil {
		return err
	}
	for _, idx := range indices {
		var err error
		switch width {
		case lcKeyUInt8:
			err = w.WriteUInt8(uint8(idx))
		case lcKeyUInt16:
			err = w.WriteUInt16(uint16(idx))
		case lcKeyUInt32:
			err = w.WriteUInt32(uint32(idx))
		default:
			err = w.WriteUInt64(idx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Dictionary keys may be unhashable Go values (slices from composite inner
// types); those fall back to a linear representation keyed by rendering.
func lookupDictIndex(index map[any]uint64, v any) (uint64, bool) {
	k := dictKey(v)
	idx, ok := index[k]
	return idx, ok
}

func storeDictIndex(index map[any]uint64, v any, idx uint64) {
	index[dictKey(v)] = idx
}

func dictKey(v any) any {
	switch v.(type) {
	case []any, []byte, map[any]any:
		return fmt.Sprintf("%#v", v)
	default:
		return v
	}
}
