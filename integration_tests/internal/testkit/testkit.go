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

// Package testkit wires integration tests to a real server named by the
// GLASSHOUSE_TEST_DSN environment variable. Tests skip when it is unset.
package testkit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/lucasepe/codename"
	"github.com/stretchr/testify/require"

	glasshouse "github.com/glasshouse/glasshouse-go"
)

// TestKit owns a client against the test server and tracks the tables a test
// creates so Close can drop them.
type TestKit struct {
	t testing.TB

	client *glasshouse.Client

	tables []string
}

// NewTestKit connects to the server named by GLASSHOUSE_TEST_DSN, or returns
// nil when the variable is unset.
func NewTestKit(t testing.TB) *TestKit {
	dsn := os.Getenv("GLASSHOUSE_TEST_DSN")
	if dsn == "" {
		return nil
	}
	client, err := glasshouse.NewClientDSN(dsn)
	require.NoError(t, err)
	return &TestKit{t: t, client: client}
}

// Client is the shared client for the test server.
func (tk *TestKit) Client() *glasshouse.Client { return tk.client }

// Close drops every tracked table and shuts the client down.
func (tk *TestKit) Close() {
	ctx := context.Background()
	for _, table := range tk.tables {
		err := tk.client.Execute(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table), nil)
		require.NoError(tk.t, err)
	}
	require.NoError(tk.t, tk.client.Close(ctx))
}

// RandomName generates a random identifier-safe name.
func (tk *TestKit) RandomName() string {
	rng, err := codename.DefaultRNG()
	require.NoError(tk.t, err)
	return strings.ReplaceAll(codename.Generate(rng, 10), "-", "_")
}

// RandomString generates a random string of n bytes.
func (tk *TestKit) RandomString(n int) string {
	require.Greater(tk.t, n, 0)
	bytes := make([]byte, n)
	_, err := rand.Read(bytes)
	require.NoError(tk.t, err)
	return hex.EncodeToString(bytes)[:n]
}

// NewTable creates a table from a DDL statement and tracks it for cleanup.
func (tk *TestKit) NewTable(ctx context.Context, tableName, createTableStatement string) {
	err := tk.client.Execute(ctx, createTableStatement, nil)
	require.NoError(tk.t, err)
	tk.tables = append(tk.tables, tableName)
}

// OptionEnabled reports whether the environment variable is set to a truthy
// value.
func OptionEnabled(key string) bool {
	value := os.Getenv(key)
	switch strings.ToLower(value) {
	case "1", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}
