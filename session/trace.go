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
	"os"
	"sync"

	"github.com/klauspost/compress/flate"
)

// packetTracer records every PDU a Driver sends or receives to a flat
// file, each record length-prefixed and flate-compressed as it is
// written so a long-running capture doesn't grow unbounded on disk.
// Adapted from the rib-ingester history writer's raw-BMP compression
// path: same module, same "compress the wire bytes before they hit
// disk" shape, just a file sink instead of a Postgres bytea column.
type packetTracer struct {
	mu sync.Mutex
	f  *os.File
	w  *flate.Writer
}

func newPacketTracer(path string) (*packetTracer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w, err := flate.NewWriter(f, flate.DefaultCompression)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &packetTracer{f: f, w: w}, nil
}

// record is: direction (1 byte, 0=recv 1=sent), message type (1 byte),
// body length (4 bytes big-endian), body.
func (t *packetTracer) record(sent bool, mtype uint8, body []byte) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := byte(0)
	if sent {
		dir = 1
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))

	t.w.Write([]byte{dir, mtype})
	t.w.Write(lenBuf[:])
	t.w.Write(body)
	t.w.Flush()
}

func (t *packetTracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Close(); err != nil {
		t.f.Close()
		return err
	}
	return t.f.Close()
}
