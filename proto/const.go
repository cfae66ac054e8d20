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

// Package proto implements the native wire protocol of the server: packet
// framing, the revision-gated handshake, block serialization, query settings
// and the server-side status packets.
package proto

import "fmt"

// Client identification sent during the handshake.
const (
	ClientName         = "glasshouse-go"
	ClientVersionMajor = 1
	ClientVersionMinor = 0
	ClientVersionPatch = 0
)

// ClientPacket identifies a packet sent by the client.
type ClientPacket uint64

const (
	ClientHello  ClientPacket = 0
	ClientQuery  ClientPacket = 1
	ClientData   ClientPacket = 2
	ClientCancel ClientPacket = 3
	ClientPing   ClientPacket = 4
)

func (p ClientPacket) String() string {
	switch p {
	case ClientHello:
		return "Hello"
	case ClientQuery:
		return "Query"
	case ClientData:
		return "Data"
	case ClientCancel:
		return "Cancel"
	case ClientPing:
		return "Ping"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(p))
	}
}

// ServerPacket identifies a packet sent by the server.
type ServerPacket uint64

const (
	ServerHello                ServerPacket = 0
	ServerData                 ServerPacket = 1
	ServerException            ServerPacket = 2
	ServerProgress             ServerPacket = 3
	ServerPong                 ServerPacket = 4
	ServerEndOfStream          ServerPacket = 5
	ServerProfileInfo          ServerPacket = 6
	ServerTotals               ServerPacket = 7
	ServerExtremes             ServerPacket = 8
	ServerTablesStatusResponse ServerPacket = 9
	ServerLog                  ServerPacket = 10
	ServerTableColumns         ServerPacket = 11
	ServerPartUUIDs            ServerPacket = 12
	ServerReadTaskRequest      ServerPacket = 13
	ServerProfileEvents        ServerPacket = 14
)

func (p ServerPacket) String() string {
	switch p {
	case ServerHello:
		return "Hello"
	case ServerData:
		return "Data"
	case ServerException:
		return "Exception"
	case ServerProgress:
		return "Progress"
	case ServerPong:
		return "Pong"
	case ServerEndOfStream:
		return "EndOfStream"
	case ServerProfileInfo:
		return "ProfileInfo"
	case ServerTotals:
		return "Totals"
	case ServerExtremes:
		return "Extremes"
	case ServerTablesStatusResponse:
		return "TablesStatusResponse"
	case ServerLog:
		return "Log"
	case ServerTableColumns:
		return "TableColumns"
	case ServerPartUUIDs:
		return "PartUUIDs"
	case ServerReadTaskRequest:
		return "ReadTaskRequest"
	case ServerProfileEvents:
		return "ProfileEvents"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(p))
	}
}

// Protocol revisions at which wire features appeared. A connection operates
// at the minimum of the client and server revisions.
const (
	RevisionTemporaryTables            = 50264
	RevisionTotalRowsInProgress        = 51554
	RevisionBlockInfo                  = 51903
	RevisionClientInfo                 = 54032
	RevisionServerTimezone             = 54058
	RevisionQuotaKeyInClientInfo       = 54060
	RevisionServerDisplayName          = 54372
	RevisionVersionPatch               = 54401
	RevisionServerLogs                 = 54406
	RevisionClientWriteInfo            = 54420
	RevisionSettingsSerializedAsString = 54429
	RevisionInterserverSecret          = 54441
	RevisionOpenTelemetry              = 54442
	RevisionDistributedDepth           = 54448
	RevisionInitialQueryStartTime      = 54449
	RevisionParallelReplicas           = 54453
	RevisionQueryParameters            = 54459
)

// ClientRevision is the newest protocol revision this client speaks.
const ClientRevision = RevisionQueryParameters

// QueryProcessingStage tells the server how far to take a query.
type QueryProcessingStage uint64

const (
	StageFetchColumns       QueryProcessingStage = 0
	StageWithMergeableState QueryProcessingStage = 1
	StageComplete           QueryProcessingStage = 2
)
