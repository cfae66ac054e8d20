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
	"strconv"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// Settings carries per-query server settings. Values are formatted as
// strings on modern revisions; older revisions use typed binary
// serialization driven by a registry of known setting names.
type Settings map[string]any

// settingFlagImportant marks a setting the server must not silently ignore.
const settingFlagImportant = 0x01

// settingWriter serializes one typed setting value for old revisions.
type settingWriter func(w *chio.Writer, value any) error

func writeSettingUInt64(w *chio.Writer, value any) error {
	v, err := toUInt64(value)
	if err != nil {
		return err
	}
	return w.WriteUvarint(v)
}

func writeSettingInt64(w *chio.Writer, value any) error {
	var v int64
	switch x := value.(type) {
	case int:
		v = int64(x)
	case int64:
		v = x
	case uint64:
		v = int64(x)
	default:
		return fmt.Errorf("proto: setting value %v is not an integer", value)
	}
	// Old revisions carry signed settings zigzag-free as raw uvarints.
	return w.WriteUvarint(uint64(v))
}

func writeSettingBool(w *chio.Writer, value any) error {
	v, ok := value.(bool)
	if !ok {
		return fmt.Errorf("proto: setting value %v is not a bool", value)
	}
	if v {
		return w.WriteUvarint(1)
	}
	return w.WriteUvarint(0)
}

func writeSettingString(w *chio.Writer, value any) error {
	return w.WriteString(settingString(value))
}

func writeSettingChar(w *chio.Writer, value any) error {
	s := settingString(value)
	if len(s) != 1 {
		return fmt.Errorf("proto: setting value %q is not a single character", s)
	}
	return w.WriteByte(s[0])
}

func writeSettingFloat(w *chio.Writer, value any) error {
	var v float64
	switch x := value.(type) {
	case float32:
		v = float64(x)
	case float64:
		v = x
	case int:
		v = float64(x)
	default:
		return fmt.Errorf("proto: setting value %v is not a float", value)
	}
	// Floats travel as their string form even in the binary scheme.
	return w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

func writeSettingSeconds(w *chio.Writer, value any) error {
	return writeSettingUInt64(w, value)
}

func writeSettingMaxThreads(w *chio.Writer, value any) error {
	if s, ok := value.(string); ok && s == "auto" {
		return w.WriteUvarint(0)
	}
	return writeSettingUInt64(w, value)
}

// typedSettings maps setting names to binary writers for revisions that
// predate string serialization. Unknown names are skipped with a log line
// at the caller.
var typedSettings = map[string]settingWriter{
	"max_threads":                  writeSettingMaxThreads,
	"max_block_size":               writeSettingUInt64,
	"max_insert_block_size":        writeSettingUInt64,
	"min_insert_block_size_rows":   writeSettingUInt64,
	"min_insert_block_size_bytes":  writeSettingUInt64,
	"max_rows_to_read":             writeSettingUInt64,
	"max_bytes_to_read":            writeSettingUInt64,
	"max_result_rows":              writeSettingUInt64,
	"max_result_bytes":             writeSettingUInt64,
	"max_execution_time":           writeSettingSeconds,
	"max_memory_usage":             writeSettingUInt64,
	"priority":                     writeSettingUInt64,
	"network_compression_method":   writeSettingString,
	"network_zstd_compression_level": writeSettingInt64,
	"insert_quorum":                writeSettingUInt64,
	"insert_quorum_timeout":        writeSettingUInt64,
	"select_sequential_consistency": writeSettingUInt64,
	"totals_mode":                  writeSettingString,
	"totals_auto_threshold":        writeSettingFloat,
	"readonly":                     writeSettingUInt64,
	"send_logs_level":              writeSettingString,
	"log_queries":                  writeSettingBool,
	"distributed_product_mode":     writeSettingString,
	"format_csv_delimiter":         writeSettingChar,
	"use_uncompressed_cache":       writeSettingBool,
	"extremes":                     writeSettingBool,
	"skip_unavailable_shards":      writeSettingBool,
	"optimize_skip_unused_shards":  writeSettingBool,
	"input_format_defaults_for_omitted_fields": writeSettingBool,
	"join_use_nulls":               writeSettingBool,
}

// WriteSettings serializes the settings map followed by the empty-name
// terminator. On modern revisions every value is sent as a string with the
// important flag; older revisions use the typed registry and skip names it
// does not know. The skipped names are returned so the caller can log them.
func WriteSettings(w *chio.Writer, settings Settings, revision uint64) ([]string, error) {
	var skipped []string
	asStrings := revision >= RevisionSettingsSerializedAsString
	for name, value := range settings {
		if asStrings {
			if err := w.WriteString(name); err != nil {
				return nil, err
			}
			if err := w.WriteUvarint(settingFlagImportant); err != nil {
				return nil, err
			}
			if err := w.WriteString(settingString(value)); err != nil {
				return nil, err
			}
			continue
		}
		write, ok := typedSettings[name]
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		if err := w.WriteString(name); err != nil {
			return nil, err
		}
		if err := write(w, value); err != nil {
			return nil, err
		}
	}
	// Empty name terminates the list.
	return skipped, w.WriteString("")
}

func settingString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toUInt64(value any) (uint64, error) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, fmt.Errorf("proto: setting value %d is negative", v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("proto: setting value %d is negative", v)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	case uint32:
		return uint64(v), nil
	case uint:
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("proto: setting value %v is not an unsigned integer", value)
	}
}
