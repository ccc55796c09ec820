/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package session

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"

	"github.com/coreswitch/bgpspeak/bgp"
)

func TestPacketTracerRecordsCompressedFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.bin")
	tr, err := newPacketTracer(path)
	if err != nil {
		t.Fatalf("newPacketTracer: %v", err)
	}

	tr.record(false, bgp.MsgKeepalive, nil)
	tr.record(true, bgp.MsgUpdate, []byte{1, 2, 3})

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening trace file: %v", err)
	}
	defer f.Close()

	r := flate.NewReader(f)
	defer r.Close()

	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		t.Fatalf("reading first record header: %v", err)
	}
	if header[0] != 0 || header[1] != bgp.MsgKeepalive {
		t.Fatalf("unexpected first record header: %v", header)
	}
	if l := binary.BigEndian.Uint32(header[2:6]); l != 0 {
		t.Fatalf("expected a 0-length KEEPALIVE body, got %d", l)
	}

	if _, err := io.ReadFull(r, header[:]); err != nil {
		t.Fatalf("reading second record header: %v", err)
	}
	if header[0] != 1 || header[1] != bgp.MsgUpdate {
		t.Fatalf("unexpected second record header: %v", header)
	}
	l := binary.BigEndian.Uint32(header[2:6])
	body := make([]byte, l)
	if _, err := io.ReadFull(r, body); err != nil {
		t.Fatalf("reading second record body: %v", err)
	}
	if l != 3 || body[0] != 1 || body[1] != 2 || body[2] != 3 {
		t.Fatalf("unexpected second record body: %v (len %d)", body, l)
	}
}

func TestPacketTracerNilReceiverIsNoop(t *testing.T) {
	var tr *packetTracer
	tr.record(true, bgp.MsgKeepalive, nil)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close on a nil tracer should be a no-op, got %v", err)
	}
}
