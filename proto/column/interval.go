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

import "github.com/glasshouse/glasshouse-go/proto/chio"

var intervalSpecs = map[string]bool{
	"IntervalYear":    true,
	"IntervalQuarter": true,
	"IntervalMonth":   true,
	"IntervalWeek":    true,
	"IntervalDay":     true,
	"IntervalHour":    true,
	"IntervalMinute":  true,
	"IntervalSecond":  true,
}

func isInterval(spec string) bool { return intervalSpecs[spec] }

// intervalCodec stores interval counts as signed 64-bit integers; the unit
// lives in the type name only.
type intervalCodec struct {
	noPrefix
	spec string
}

func newInterval(spec string) (Codec, error) {
	return &intervalCodec{spec: spec}, nil
}

func (c *intervalCodec) Type() string { return c.spec }

func (c *intervalCodec) Read(r *chio.Reader, n int) ([]any, error) {
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

func (c *intervalCodec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		x, ok := asInt64(v)
		if !ok {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		if err := w.WriteInt64(x); err != nil {
			return err
		}
	}
	return nil
}
