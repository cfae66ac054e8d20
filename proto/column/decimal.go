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
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// decimalCodec stores fixed-point numbers as scaled integers whose storage
// width grows with the declared precision. Values surface as
// decimal.Decimal.
type decimalCodec struct {
	noPrefix
	spec      string
	precision int
	scale     int
	size      int
}

func newDecimal(spec string) (Codec, error) {
	name := "Decimal"
	switch {
	case hasParam(spec, "Decimal32"):
		name = "Decimal32"
	case hasParam(spec, "Decimal64"):
		name = "Decimal64"
	case hasParam(spec, "Decimal128"):
		name = "Decimal128"
	case hasParam(spec, "Decimal256"):
		name = "Decimal256"
	}

	params := splitParams(param(spec, name))
	c := &decimalCodec{spec: spec}
	var err error
	switch name {
	case "Decimal":
		if len(params) != 2 {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		if c.precision, err = strconv.Atoi(params[0]); err != nil {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		if c.scale, err = strconv.Atoi(params[1]); err != nil {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
	default:
		if len(params) != 1 {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		if c.scale, err = strconv.Atoi(params[0]); err != nil {
			return nil, fmt.Errorf("column: malformed type %q", spec)
		}
		switch name {
		case "Decimal32":
			c.precision = 9
		case "Decimal64":
			c.precision = 18
		case "Decimal128":
			c.precision = 38
		case "Decimal256":
			c.precision = 76
		}
	}

	switch {
	case c.precision <= 0 || c.precision > 76:
		return nil, fmt.Errorf("column: precision of %q out of range", spec)
	case c.scale < 0 || c.scale > c.precision:
		return nil, fmt.Errorf("column: scale of %q out of range", spec)
	case c.precision <= 9:
		c.size = 4
	case c.precision <= 18:
		c.size = 8
	case c.precision <= 38:
		c.size = 16
	default:
		c.size = 32
	}
	return c, nil
}

func (c *decimalCodec) Type() string { return c.spec }

func (c *decimalCodec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	switch c.size {
	case 4:
		for i := 0; i < n; i++ {
			v, err := r.ReadInt32()
			if err != nil {
				return nil, err
			}
			out[i] = decimal.New(int64(v), int32(-c.scale))
		}
	case 8:
		for i := 0; i < n; i++ {
			v, err := r.ReadInt64()
			if err != nil {
				return nil, err
			}
			out[i] = decimal.New(v, int32(-c.scale))
		}
	default:
		buf := make([]byte, c.size)
		for i := 0; i < n; i++ {
			if err := r.ReadFull(buf); err != nil {
				return nil, err
			}
			out[i] = decimal.NewFromBigInt(bigIntFromLE(buf, true), int32(-c.scale))
		}
	}
	return out, nil
}

func (c *decimalCodec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		d, ok := asDecimal(v)
		if !ok {
			return &TypeMismatchError{Column: c.spec, Value: v}
		}
		scaled := d.Shift(int32(c.scale))
		if !scaled.IsInteger() {
			scaled = scaled.Round(0)
		}
		unscaled := scaled.BigInt()
		switch c.size {
		case 4:
			if !unscaled.IsInt64() {
				return &TypeMismatchError{Column: c.spec, Value: v}
			}
			x := unscaled.Int64()
			if x < -2147483648 || x > 2147483647 {
				return &TypeMismatchError{Column: c.spec, Value: v}
			}
			if err := w.WriteInt32(int32(x)); err != nil {
				return err
			}
		case 8:
			if !unscaled.IsInt64() {
				return &TypeMismatchError{Column: c.spec, Value: v}
			}
			if err := w.WriteInt64(unscaled.Int64()); err != nil {
				return err
			}
		default:
			buf := make([]byte, c.size)
			if unscaled.BitLen() > c.size*8-1 && !isMinTwosComplement(unscaled, c.size) {
				return &TypeMismatchError{Column: c.spec, Value: v}
			}
			bigIntToLE(unscaled, buf)
			if err := w.WriteBytes(buf); err != nil {
				return err
			}
		}
	}
	return nil
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		return *x, true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case *big.Int:
		return decimal.NewFromBigInt(x, 0), true
	default:
		return decimal.Decimal{}, false
	}
}
