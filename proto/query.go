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
	"strings"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// settingFlagCustom marks a server-side query parameter rather than a
// predefined setting name.
const settingFlagCustom = 0x02

// Query carries everything sent in a client Query packet.
type Query struct {
	ID          string
	Body        string
	Settings    Settings
	Parameters  map[string]string
	Compression bool
	Info        ClientInfo
}

// WriteQuery serializes a Query packet for the negotiated revision and
// returns the names of settings skipped because the revision cannot carry
// them. The caller flushes.
func WriteQuery(w *chio.Writer, q *Query, revision uint64) ([]string, error) {
	if err := w.WriteUvarint(uint64(ClientQuery)); err != nil {
		return nil, err
	}
	if err := w.WriteString(q.ID); err != nil {
		return nil, err
	}
	if revision >= RevisionClientInfo {
		info := q.Info
		if info.InitialQueryID == "" {
			info.InitialQueryID = q.ID
		}
		if err := info.Write(w, revision); err != nil {
			return nil, err
		}
	}
	skipped, err := WriteSettings(w, q.Settings, revision)
	if err != nil {
		return nil, err
	}
	if revision >= RevisionInterserverSecret {
		if err := w.WriteString(""); err != nil {
			return nil, err
		}
	}
	if err := w.WriteUvarint(uint64(StageComplete)); err != nil {
		return nil, err
	}
	var compression uint64
	if q.Compression {
		compression = 1
	}
	if err := w.WriteUvarint(compression); err != nil {
		return nil, err
	}
	if err := w.WriteString(q.Body); err != nil {
		return nil, err
	}
	if revision >= RevisionQueryParameters {
		if err := writeParameters(w, q.Parameters); err != nil {
			return nil, err
		}
	}
	return skipped, nil
}

// writeParameters sends server-side query parameters as custom settings
// with single-quoted values, terminated by an empty name.
func writeParameters(w *chio.Writer, params map[string]string) error {
	for name, value := range params {
		if err := w.WriteString(name); err != nil {
			return err
		}
		if err := w.WriteUvarint(settingFlagCustom); err != nil {
			return err
		}
		if err := w.WriteString(quoteParameter(value)); err != nil {
			return err
		}
	}
	return w.WriteString("")
}

func quoteParameter(value string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '\'', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// WriteCancel sends the cancel packet for an in-flight query.
func WriteCancel(w *chio.Writer) error {
	return w.WriteUvarint(uint64(ClientCancel))
}

// WritePing sends a ping packet.
func WritePing(w *chio.Writer) error {
	return w.WriteUvarint(uint64(ClientPing))
}
