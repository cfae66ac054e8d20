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

package column

import (
	"net/netip"

	"github.com/glasshouse/glasshouse-go/proto/chio"
)

// ipv4Codec stores addresses as little-endian 32-bit integers. Values
// surface as netip.Addr.
type ipv4Codec struct{ noPrefix }

func (*ipv4Codec) Type() string { return "IPv4" }

func (c *ipv4Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadUInt32()
		if err != nil {
			return nil, err
		}
		out[i] = netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	}
	return out, nil
}

func (c *ipv4Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		addr, ok := asAddr(v)
		if !ok || !addr.Is4() {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		b := addr.As4()
		x := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		if err := w.WriteUInt32(x); err != nil {
			return err
		}
	}
	return nil
}

// ipv6Codec stores addresses as raw 16-byte sequences.
type ipv6Codec struct{ noPrefix }

func (*ipv6Codec) Type() string { return "IPv6" }

func (c *ipv6Codec) Read(r *chio.Reader, n int) ([]any, error) {
	out := make([]any, n)
	var buf [16]byte
	for i := 0; i < n; i++ {
		if err := r.ReadFull(buf[:]); err != nil {
			return nil, err
		}
		out[i] = netip.AddrFrom16(buf)
	}
	return out, nil
}

func (c *ipv6Codec) Write(w *chio.Writer, values []any) error {
	for _, v := range values {
		addr, ok := asAddr(v)
		if !ok {
			return &TypeMismatchError{Column: c.Type(), Value: v}
		}
		b := addr.As16()
		if err := w.WriteBytes(b[:]); err != nil {
			return err
		}
	}
	return nil
}

func asAddr(v any) (netip.Addr, bool) {
	switch x := v.(type) {
	case netip.Addr:
		return x, true
	case string:
		addr, err := netip.ParseAddr(x)
		return addr, err == nil
	default:
		return netip.Addr{}, false
	}
}
