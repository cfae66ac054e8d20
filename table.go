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
	"bytes"
	"context"
	"fmt"
)

// Table addresses one table for schema inspection and maintenance.
type Table struct {
	c *Client

	// Database is the database name. Optional; empty means the current
	// database of the connection.
	Database string
	// Table is the table name.
	Table string
}

func (c *Client) Table(tableName string) *Table {
	return &Table{
		c:     c,
		Table: tableName,
	}
}

// Drop removes the table.
func (t *Table) Drop(ctx context.Context) error {
	return t.c.Execute(ctx, fmt.Sprintf(`DROP TABLE %s`, t.Identifier()), nil)
}

// Truncate removes every row of the table.
func (t *Table) Truncate(ctx context.Context) error {
	return t.c.Execute(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, t.Identifier()), nil)
}

// Exists reports whether the table is present.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	row, err := t.c.QueryRow(ctx, fmt.Sprintf(`EXISTS TABLE %s`, t.Identifier()), nil)
	if err != nil {
		return false, err
	}
	if len(row) != 1 {
		return false, &ProtocolError{Message: fmt.Sprintf("EXISTS returned %d columns", len(row))}
	}
	switch v := row[0].(type) {
	case uint8:
		return v != 0, nil
	case bool:
		return v, nil
	default:
		return false, &ProtocolError{Message: fmt.Sprintf("unexpected EXISTS result %T", row[0])}
	}
}

// Schema lists the table's columns and their type descriptors.
func (t *Table) Schema(ctx context.Context) ([]ColumnDescription, error) {
	rows, err := t.c.Query(ctx, fmt.Sprintf(`DESCRIBE TABLE %s`, t.Identifier()), nil)
	if err != nil {
		return nil, err
	}
	var schema []ColumnDescription
	for _, row := range rows {
		if len(row) < 2 {
			return nil, &ProtocolError{Message: fmt.Sprintf("DESCRIBE returned %d columns", len(row))}
		}
		name, ok := row[0].(string)
		if !ok {
			return nil, &ProtocolError{Message: fmt.Sprintf("unexpected column name %T", row[0])}
		}
		spec, ok := row[1].(string)
		if !ok {
			return nil, &ProtocolError{Message: fmt.Sprintf("unexpected column type %T", row[1])}
		}
		schema = append(schema, ColumnDescription{Name: name, Type: spec})
	}
	return schema, nil
}

// Identifier renders the quoted, optionally database-qualified table name.
func (t *Table) Identifier() string {
	var b bytes.Buffer
	if t.Database != "" {
		b.WriteString(quoteIdent(t.Database, '`'))
		b.WriteByte('.')
	}
	b.WriteString(quoteIdent(t.Table, '`'))
	return b.String()
}

func quoteIdent(s string, r rune) string {
	var b bytes.Buffer
	b.WriteRune(r)
	for _, c := range s {
		switch c {
		case '\t':
			b.WriteString("\\t")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\\':
			b.WriteString("\\\\")
		default:
			if c == r {
				b.WriteRune('\\')
				b.WriteRune(c)
				break
			}

			if c < 0x20 {
				b.WriteString(fmt.Sprintf("\\x%02x", c))
				break
			}

			b.WriteRune(c)
		}
	}
	b.WriteRune(r)
	return b.String()
}
