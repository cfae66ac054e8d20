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

// Progress reports how much of a query the server has processed so far.
// Fields accumulate across packets via Increment.
type Progress struct {
	Rows         uint64
	Bytes        uint64
	TotalRows    uint64
	WrittenRows  uint64
	WrittenBytes uint64
}

// Increment folds a newly received progress packet into the running total.
func (p *Progress) Increment(delta *Progress) {
	p.Rows += delta.Rows
	p.Bytes += delta.Bytes
	p.TotalRows += delta.TotalRows
	p.WrittenRows += delta.WrittenRows
	p.WrittenBytes += delta.WrittenBytes
}

// ReadProgress decodes the body of a Progress packet for the negotiated
// revision.
func ReadProgress(r *chio.Reader, revision uint64) (*Progress, error) {
	p := &Progress{}
	var err error
	if p.Rows, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if p.Bytes, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if revision >= RevisionTotalRowsInProgress {
		if p.TotalRows, err = r.ReadUvarint(); err != nil {
			return nil, err
		}
	}
	if revision >= RevisionClientWriteInfo {
		if p.WrittenRows, err = r.ReadUvarint(); err != nil {
			return nil, err
		}
		if p.WrittenBytes, err = r.ReadUvarint(); err != nil {
			return nil, err
		}
	}
	return p, nil
}
