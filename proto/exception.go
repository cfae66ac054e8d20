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

package proto

import (
	"fmt"
	"strings"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// ServerError is an exception reported by the server, with the original
// error code and message preserved verbatim.
type ServerError struct {
	Code       int32
	Name       string
	Message    string
	StackTrace string
	Nested     *ServerError
}

func (e *ServerError) Error() string {
	msg := strings.TrimPrefix(e.Message, e.Name+": ")
	return fmt.Sprintf("code %d: %s: %s", e.Code, e.Name, msg)
}

// Unwrap exposes the nested exception chain to errors.Is and errors.As.
func (e *ServerError) Unwrap() error {
	if e.Nested == nil {
		return nil
	}
	return e.Nested
}

// ReadException decodes the body of an Exception packet, including the
// chain of nested causes.
func ReadException(r *chio.Reader) (*ServerError, error) {
	top := &ServerError{}
	cur := top
	for {
		var err error
		if cur.Code, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if cur.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if cur.Message, err = r.ReadString(); err != nil {
			return nil, err
		}
		if cur.StackTrace, err = r.ReadString(); err != nil {
			return nil, err
		}
		hasNested, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if !hasNested {
			return top, nil
		}
		cur.Nested = &ServerError{}
		cur = cur.Nested
	}
}
