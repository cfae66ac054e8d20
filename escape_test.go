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
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEscapeParam(t *testing.T) {
	id := uuid.MustParse("c79a9747-7cef-4b31-b5e7-2dbc8fa5b2a6")
	cases := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"plain", "'plain'"},
		{"o'hara", `'o\'hara'`},
		{"tab\there", `'tab\there'`},
		{[]byte{'\n'}, `'\n'`},
		{true, "true"},
		{false, "false"},
		{int(-5), "-5"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{float64(1.5), "1.5"},
		{float32(0.25), "0.25"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "'2024-03-01'"},
		{time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC), "'2024-03-01 12:30:45'"},
		{id, "'c79a9747-7cef-4b31-b5e7-2dbc8fa5b2a6'"},
		{netip.MustParseAddr("10.0.0.1"), "'10.0.0.1'"},
		{decimal.RequireFromString("12.34"), "12.34"},
		{[]int{1, 2, 3}, "[1, 2, 3]"},
		{[]string{"a", "b"}, "['a', 'b']"},
		{[][]int{{1}, {2, 3}}, "[[1], [2, 3]]"},
		{map[string]int{"a": 1, "b": 2}, "{'a': 1, 'b': 2}"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, escapeParam(tc.in), "input %#v", tc.in)
	}
}

func TestSubstituteParams(t *testing.T) {
	got, err := substituteParams(
		"SELECT * FROM t WHERE name = {name} AND n > {n} ORDER BY {n}",
		map[string]any{"name": "o'hara", "n": 10},
	)
	require.NoError(t, err)
	require.Equal(t, `SELECT * FROM t WHERE name = 'o\'hara' AND n > 10 ORDER BY 10`, got)
}

func TestSubstituteParamsMissing(t *testing.T) {
	_, err := substituteParams("SELECT {x}", map[string]any{"y": 1})
	var ifaceErr *InterfaceError
	require.ErrorAs(t, err, &ifaceErr)
}

func TestSubstituteParamsUnterminated(t *testing.T) {
	_, err := substituteParams("SELECT {x", map[string]any{"x": 1})
	require.Error(t, err)
}
