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
	"github.com/google/uuid"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// uuidCodec stores UUIDs as two little-endian 64-bit halves, high half
// first. Values surface as uuid.UUID.
type uuidCodec struct{ noPrefix }

func (*uuidCodec) Type() string { return "UUID" }

func (c *uuidCodec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	var buf [16]byte
	for i := 0; i < n; i++ {
		if err := r.ReadFull(buf[:]); err != nil {
			return nil, err
		}
		var id uuid.UUID
		for j := 0; j < 8; j++ {
			id[j] = buf[7-j]
			id[8+j] = buf[15-j]
		}
		out[i] = id
	}
	return out, nil
}

func (c *uuidCodec) Write(w *chio.Writer, values []any) error {
	var buf [16]byte
	for _, v := range values {
		id, ok := asUUID(v)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		for j := 0; j < 8; j++ {
			buf[j] = id[7-j]
			buf[8+j] = id[15-j]
		}
		if err := w.WriteBytes(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func asUUID(v any) (uuid.UUID, bool) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, true
	case string:
		id, err := uuid.Parse(x)
		return id, err == nil
	case [16]byte:
		return uuid.UUID(x), true
	default:
		return uuid.UUID{}, false
	}
}
