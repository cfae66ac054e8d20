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

import "fmt"

// renamedCodec reuses another codec's wire format under a different
// descriptor. Nested and SimpleAggregateFunction are pure aliases on the
// wire.
type renamedCodec struct {
	Codec
	spec string
}

func (c *renamedCodec) Type() string { return c.spec }

// newNested maps Nested(fields...) to its wire shape Array(Tuple(fields...)).
func newNested(spec string) (Codec, error) {
	inner, err := newCodec(fmt.Sprintf("Array(Tuple(%s))", param(spec, "Nested")))
	if err != nil {
		return nil, err
	}
	return &renamedCodec{Codec: inner, spec: spec}, nil
}

// newSimpleAggregate drops the aggregate function name: the column stores
// plain values of the underlying type.
func newSimpleAggregate(spec string) (Codec, error) {
	params := splitParams(param(spec, "SimpleAggregateFunction"))
	if len(params) != 2 {
		return nil, fmt.Errorf("column: malformed type %q", spec)
	}
	inner, err := newCodec(params[1])
	if err != nil {
		return nil, err
	}
	return &renamedCodec{Codec: inner, spec: spec}, nil
}
