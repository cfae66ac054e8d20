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
	"sync"
	"time"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

const secondsPerDay = 24 * 60 * 60

// dateCodec stores days since the Unix epoch as an unsigned 16-bit value.
type dateCodec struct{ noPrefix }

func (*dateCodec) Type() string { return "Date" }

func (c *dateCodec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		days, err := r.ReadUInt16()
		if err != nil {
			return nil, err
		}
		out[i] = time.Unix(int64(days)*secondsPerDay, 0).UTC()
	}
	return out, nil
}

func (c *dateCodec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		t, ok := asTime(v)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		days := t.Unix() / secondsPerDay
		if days < 0 || days > 0xffff {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		if err := w.WriteUInt16(uint16(days)); err != nil {
			return err
		}
	}
	return nil
}

// date32Codec stores days since the Unix epoch as a signed 32-bit value,
// covering dates before 1970.
type date32Codec struct{ noPrefix }

func (*date32Codec) Type() string { return "Date32" }

func (c *date32Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		days, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		out[i] = time.Unix(int64(days)*secondsPerDay, 0).UTC()
	}
	return out, nil
}

func (c *date32Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		t, ok := asTime(v)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		days := t.Unix() / secondsPerDay
		if t.Unix() < 0 && t.Unix()%secondsPerDay != 0 {
			days--
		}
		if err := w.WriteInt32(int32(days)); err != nil {
			return err
		}
	}
	return nil
}

// tzHolder resolves a column's timezone on first use, not at parse time.
type tzHolder struct {
	name string
	once sync.Once
	loc  *time.Location
	err  error
}

func (h *tzHolder) location() (*time.Location, error) {
	h.once.Do(func() {
		if h.name == "" {
			h.loc = time.UTC
			return
		}
		h.loc, h.err = time.LoadLocation(h.name)
	})
	return h.loc, h.err
}

// dateTimeCodec stores seconds since the Unix epoch as an unsigned 32-bit
// value, rendered in the column's timezone.
type dateTimeCodec struct {
	noPrefix
	spec string
	tz   tzHolder
}

func newDateTime(spec string) (Codec, error) {
	c := &dateTimeCodec{spec: spec}
	if hasParam(spec, "DateTime") {
		name, err := unquote(param(spec, "DateTime"))
		if err != nil {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		c.tz.name = name
	}
	return c, nil
}

func (c *dateTimeCodec) Type() string { return c.spec }

func (c *dateTimeCodec) Read(r *chio.Reader, n int) ([]any, error) {
	loc, err := c.tz.location()
	if err != nil {
		return nil, fmt.Errorf("column: %s: %w", c.spec, err)
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		secs, err := r.ReadUInt32()
		if err != nil {
			return nil, err
		}
		out[i] = time.Unix(int64(secs), 0).In(loc)
	}
	return out, nil
}

func (c *dateTimeCodec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		t, ok := asTime(v)
		if !ok {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		secs := t.Unix()
		if secs < 0 || secs > 0xffffffff {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		if err := w.WriteUInt32(uint32(secs)); err != nil {
			return err
		}
	}
	return nil
}

// dateTime64Codec stores ticks of 10^-precision seconds since the epoch as
// a signed 64-bit value.
type dateTime64Codec struct {
	noPrefix
	spec      string
	precision int
	scale     int64
	tz        tzHolder
}

func newDateTime64(spec string) (Codec, error) {
	params := splitParams(param(spec, "DateTime64"))
	if len(params) == 0 || len(params) > 2 {
		return nil, fmt.Errorf("column: malformed type %q", spec)
	}
	precision, err := strconv.Atoi(params[0])
	if err != nil || precision < 0 || precision > 9 {
		return nil, fmt.Errorf("column: malformed type %q", spec)
	}
	c := &dateTime64Codec{spec: spec, precision: precision, scale: pow10(precision)}
	if len(params) == 2 {
		name, err := unquote(params[1])
		if err != nil {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		c.tz.name = name
	}
	return c, nil
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func (c *dateTime64Codec) Type() string { return c.spec }

func (c *dateTime64Codec) Read(r *chio.Reader, n int) ([]any, error) {
	loc, err := c.tz.location()
	if err != nil {
		return nil, fmt.Errorf("column: %s: %w", c.spec, err)
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		ticks, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		secs := ticks / c.scale
		frac := ticks % c.scale
		if frac < 0 {
			secs--
			frac += c.scale
		}
		out[i] = time.Unix(secs, frac*(int64(time.Second)/c.scale)).In(loc)
	}
	return out, nil
}

func (c *dateTime64Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		t, ok := asTime(v)
		if !ok {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		ticks := t.Unix()*c.scale + int64(t.Nanosecond())/(int64(time.Second)/c.scale)
		if err := w.WriteInt64(ticks); err != nil {
			return err
		}
	}
	return nil
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		return *x, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
