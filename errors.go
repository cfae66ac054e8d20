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

package glasshouse

import (
	"errors"
	"fmt"

	"github.com/glasshouse/glasshouse-go/proto"
	"github.com/glasshouse/glasshouse-go/proto/compress"
)

// ServerError is an exception reported by the server. The numeric code is
// preserved exactly as received.
type ServerError = proto.ServerError

// ChecksumError reports a compressed frame whose checksum did not match.
type ChecksumError = compress.ChecksumError

// Sentinel errors for client-side misuse and lifecycle violations. They
// match with errors.Is.
var (
	// ErrConnectionClosed is returned by operations on a closed connection.
	ErrConnectionClosed = errors.New("glasshouse: connection is closed")
	// ErrConnectionBusy is returned when a query is started while another
	// one is in flight on the same connection.
	ErrConnectionBusy = errors.New("glasshouse: connection busy with another query")
	// ErrPoolClosed is returned by acquire on a closed pool.
	ErrPoolClosed = errors.New("glasshouse: pool is closed")
	// ErrTimeout marks an operation that exceeded its deadline. The
	// connection that produced it has been disconnected.
	ErrTimeout = errors.New("glasshouse: operation timed out")
)

// InterfaceError reports client-side misuse: wrong state, invalid
// arguments or an unparsable DSN.
type InterfaceError struct {
	Message string
	Err     error
}

func (e *InterfaceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("glasshouse: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("glasshouse: %s", e.Message)
}

func (e *InterfaceError) Unwrap() error { return e.Err }

// ConnectionError reports a socket or handshake failure. The connection
// that produced it is no longer usable.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("glasshouse: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports an unexpected packet or a malformed wire payload.
// The connection that produced it is no longer usable.
type ProtocolError struct {
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("glasshouse: protocol: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("glasshouse: protocol: %s", e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrorCategory groups server error codes the way the standard DB cursor
// interface expects.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryOperational
	CategoryData
	CategoryIntegrity
	CategoryInternal
	CategoryProgramming
	CategoryNotSupported
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryOperational:
		return "OperationalError"
	case CategoryData:
		return "DataError"
	case CategoryIntegrity:
		return "IntegrityError"
	case CategoryInternal:
		return "InternalError"
	case CategoryProgramming:
		return "ProgrammingError"
	case CategoryNotSupported:
		return "NotSupportedError"
	default:
		return "DatabaseError"
	}
}

// Well-known server error codes that have a clear category.
var serverErrorCategories = map[int32]ErrorCategory{
	6:   CategoryData,        // CANNOT_PARSE_TEXT
	38:  CategoryData,        // CANNOT_PARSE_DATE
	41:  CategoryData,        // CANNOT_PARSE_DATETIME
	53:  CategoryData,        // TYPE_MISMATCH
	57:  CategoryProgramming, // TABLE_ALREADY_EXISTS
	60:  CategoryProgramming, // UNKNOWN_TABLE
	62:  CategoryProgramming, // SYNTAX_ERROR
	69:  CategoryData,        // ARGUMENT_OUT_OF_BOUND
	70:  CategoryData,        // CANNOT_CONVERT_TYPE
	72:  CategoryData,        // CANNOT_PARSE_NUMBER
	81:  CategoryProgramming, // UNKNOWN_DATABASE
	82:  CategoryProgramming, // DATABASE_ALREADY_EXISTS
	153: CategoryData,        // DIVISION_BY_ZERO
	319: CategoryIntegrity,   // UNKNOWN_STATUS_OF_INSERT
	164: CategoryOperational, // READONLY
	192: CategoryOperational, // UNKNOWN_USER
	193: CategoryOperational, // WRONG_PASSWORD
	194: CategoryOperational, // REQUIRED_PASSWORD
	202: CategoryOperational, // TOO_MANY_SIMULTANEOUS_QUERIES
	241: CategoryOperational, // MEMORY_LIMIT_EXCEEDED
	252: CategoryOperational, // TOO_MANY_PARTS
	48:  CategoryNotSupported,
	1:   CategoryNotSupported, // UNSUPPORTED_METHOD
}

// Categorize maps an error to its DB cursor category. Server errors use
// their server-reported code, and codes outside the table are internal;
// connection and protocol errors are operational. Any other error,
// including an InterfaceError, is CategoryUnknown.
func Categorize(err error) ErrorCategory {
	var srv *ServerError
	if errors.As(err, &srv) {
		if c, ok := serverErrorCategories[srv.Code]; ok {
			return c
		}
		return CategoryInternal
	}
	var connErr *ConnectionError
	var protoErr *ProtocolError
	if errors.As(err, &connErr) || errors.As(err, &protoErr) {
		return CategoryOperational
	}
	return CategoryUnknown
}
