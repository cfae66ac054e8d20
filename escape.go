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
	"fmt"
	"net/netip"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var escapeReplacer = strings.NewReplacer(
	"\\", "\\\\",
	"'", "\\'",
	"\b", "\\b",
	"\f", "\\f",
	"\r", "\\r",
	"\n", "\\n",
	"\t", "\\t",
	"\x00", "\\0",
	"\a", "\\a",
	"\v", "\\v",
)

// escapeParam renders a Go value as a SQL literal.
func escapeParam(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + escapeReplacer.Replace(x) + "'"
	case []byte:
		return "'" + escapeReplacer.Replace(string(x)) + "'"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return "'" + x.Format("2006-01-02") + "'"
		}
		return "'" + x.Format("2006-01-02 15:04:05") + "'"
	case uuid.UUID:
		return "'" + x.String() + "'"
	case netip.Addr:
		return "'" + x.String() + "'"
	case decimal.Decimal:
		return x.String()
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case map[any]any:
		return escapeMap(x)
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			parts := make([]string, rv.Len())
			for i := range parts {
				parts[i] = escapeParam(rv.Index(i).Interface())
			}
			return "[" + strings.Join(parts, ", ") + "]"
		case reflect.Map:
			m := make(map[any]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().Interface()] = iter.Value().Interface()
			}
			return escapeMap(m)
		}
		return fmt.Sprintf("%v", v)
	}
}

func escapeMap(m map[any]any) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, escapeParam(k)+": "+escapeParam(v))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

// substituteParams replaces {name} placeholders with escaped literals.
func substituteParams(query string, params map[string]any) (string, error) {
	var b strings.Builder
	for {
		open := strings.IndexByte(query, '{')
		if open < 0 {
			b.WriteString(query)
			return b.String(), nil
		}
		close := strings.IndexByte(query[open:], '}')
		if close < 0 {
			return "", &InterfaceError{Message: fmt.Sprintf("unterminated parameter placeholder in %q", query)}
		}
		name := query[open+1 : open+close]
		value, ok := params[name]
		if !ok {
			return "", &InterfaceError{Message: fmt.Sprintf("parameter %q not provided", name)}
		}
		b.WriteString(query[:open])
		b.WriteString(escapeParam(value))
		query = query[open+close+1:]
	}
}
