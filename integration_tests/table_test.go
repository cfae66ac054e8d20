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

package integration_tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	glasshouse "github.com/glasshouse/glasshouse-go"
	"github.com/glasshouse/glasshouse-go/integration_tests/internal/testkit"
)

func TestTableLifecycle(t *testing.T) {
	tk := testkit.NewTestKit(t)
	if tk == nil {
		t.Skip("GLASSHOUSE_TEST_DSN is not set")
	}
	defer tk.Close()

	ctx := context.Background()
	name := tk.RandomName()
	tbl := tk.Client().Table(name)

	exists, err := tbl.Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, tk.Client().Execute(ctx, fmt.Sprintf(
		`CREATE TABLE %s (ts DateTime, v Nullable(String)) ENGINE = Memory`, tbl.Identifier()), nil))

	exists, err = tbl.Exists(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	schema, err := tbl.Schema(ctx)
	require.NoError(t, err)
	require.Equal(t, []glasshouse.ColumnDescription{
		{Name: "ts", Type: "DateTime"},
		{Name: "v", Type: "Nullable(String)"},
	}, schema)

	require.NoError(t, tbl.Truncate(ctx))
	require.NoError(t, tbl.Drop(ctx))

	exists, err = tbl.Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)
}
