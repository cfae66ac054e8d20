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
	"os"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// ServerInfo holds the server's half of the handshake.
type ServerInfo struct {
	Name         string
	VersionMajor uint64
	VersionMinor uint64
	VersionPatch uint64
	Revision     uint64
	Timezone     string
	DisplayName  string
}

// Version formats the server version as reported during the handshake.
func (s *ServerInfo) Version() string {
	return fmt.Sprintf("%d.%d.%d", s.VersionMajor, s.VersionMinor, s.VersionPatch)
}

// UsedRevision is the protocol revision both sides agreed to speak.
func (s *ServerInfo) UsedRevision() uint64 {
	if s.Revision < ClientRevision {
		return s.Revision
	}
	return ClientRevision
}

// ReadServerInfo decodes the body of a server Hello packet.
func ReadServerInfo(r *chio.Reader) (*ServerInfo, error) {
	info := &ServerInfo{}
	var err error
	if info.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if info.VersionMajor, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if info.VersionMinor, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if info.Revision, err = r.ReadUvarint(); err != nil {
		return nil, err
	}
	if info.Revision >= RevisionServerTimezone {
		if info.Timezone, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if info.Revision >= RevisionServerDisplayName {
		if info.DisplayName, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if info.Revision >= RevisionVersionPatch {
		if info.VersionPatch, err = r.ReadUvarint(); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// WriteHello sends the client Hello packet opening the handshake. An empty
// clientName announces the driver's default.
func WriteHello(w *chio.Writer, clientName, database, user, password string) error {
	if clientName == "" {
		clientName = ClientName
	}
	if err := w.WriteUvarint(uint64(ClientHello)); err != nil {
		return err
	}
	if err := w.WriteString(clientName); err != nil {
		return err
	}
	if err := w.WriteUvarint(ClientVersionMajor); err != nil {
		return err
	}
	if err := w.WriteUvarint(ClientVersionMinor); err != nil {
		return err
	}
	if err := w.WriteUvarint(ClientRevision); err != nil {
		return err
	}
	if err := w.WriteString(database); err != nil {
		return err
	}
	if err := w.WriteString(user); err != nil {
		return err
	}
	return w.WriteString(password)
}

// Query kinds carried in ClientInfo.
const (
	queryKindInitial = 1
)

// Interface kinds carried in ClientInfo.
const (
	interfaceTCP = 1
)

// ClientInfo describes the query originator, serialized after the query ID
// on revisions that carry it.
type ClientInfo struct {
	InitialUser    string
	InitialQueryID string
	QuotaKey       string
}

// Write serializes the client info for the negotiated revision. Callers must
// not invoke it on revisions older than client-info support.
func (c *ClientInfo) Write(w *chio.Writer, revision uint64) error {
	if err := w.WriteByte(queryKindInitial); err != nil {
		return err
	}
	if err := w.WriteString(c.InitialUser); err != nil {
		return err
	}
	if err := w.WriteString(c.InitialQueryID); err != nil {
		return err
	}
	// Initial address of the query originator.
	if err := w.WriteString("0.0.0.0:0"); err != nil {
		return err
	}
	if revision >= RevisionInitialQueryStartTime {
		if err := w.WriteUInt64(0); err != nil {
			return err
		}
	}
	if err := w.WriteByte(interfaceTCP); err != nil {
		return err
	}
	if err := w.WriteString(osUser()); err != nil {
		return err
	}
	hostname, _ := os.Hostname()
	if err := w.WriteString(hostname); err != nil {
		return err
	}
	if err := w.WriteString(ClientName); err != nil {
		return err
	}
	if err := w.WriteUvarint(ClientVersionMajor); err != nil {
		return err
	}
	if err := w.WriteUvarint(ClientVersionMinor); err != nil {
		return err
	}
	if err := w.WriteUvarint(ClientRevision); err != nil {
		return err
	}
	if revision >= RevisionQuotaKeyInClientInfo {
		if err := w.WriteString(c.QuotaKey); err != nil {
			return err
		}
	}
	if revision >= RevisionDistributedDepth {
		if err := w.WriteUvarint(0); err != nil {
			return err
		}
	}
	if revision >= RevisionVersionPatch {
		if err := w.WriteUvarint(ClientVersionPatch); err != nil {
			return err
		}
	}
	if revision >= RevisionOpenTelemetry {
		// No trace context attached.
		if err := w.WriteByte(0); err != nil {
			return err
		}
	}
	if revision >= RevisionParallelReplicas {
		// collaborate_with_initiator
		if err := w.WriteUvarint(0); err != nil {
			return err
		}
		// count_participating_replicas
		if err := w.WriteUvarint(0); err != nil {
			return err
		}
		// number_of_current_replica
		if err := w.WriteUvarint(0); err != nil {
			return err
		}
	}
	return nil
}

func osUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}
