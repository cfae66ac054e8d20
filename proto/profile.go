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

import "github.com/glasshouse/glasshouse-go/proto/chio"

// ProfileInfo summarizes execution statistics reported at the end of a
// query's data stream.
type ProfileInfo struct {
	Rows                      uint64
	Blocks                    uint64
	Bytes                     uint64
	AppliedLimit              bool
	RowsBeforeLimit           uint64
	CalculatedRowsBeforeLimit bool
}

// ReadProfileInfo decodes the body of a ProfileInfo packet.
func ReadProfileInfo(r *chio.Reader) (*ProfileInfo, error) {
	p := &ProfileInfo{}
	var err error
	if p.Rows, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if p.Blocks, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if p.Bytes, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if p.AppliedLimit, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if p.RowsBeforeLimit, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if p.CalculatedRowsBeforeLimit, err = r.ReadBool(); err != nil {
		return nil, err
	}
	return p, nil
}
