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

package bgp

import (
	"bytes"
	"testing"
)

func TestFrameWriteReadRoundTrip(t *testing.T) {
	body := []byte{1, 2, 3, 4}
	frame, err := FrameWrite(MsgKeepalive, body, DefaultMaxMsg)
	if err != nil {
		t.Fatalf("FrameWrite: %v", err)
	}

	mtype, got, err := FrameRead(bytes.NewReader(frame), DefaultMaxMsg)
	if err != nil {
		t.Fatalf("FrameRead: %v", err)
	}
	if mtype != MsgKeepalive {
		t.Fatalf("expected type %d, got %d", MsgKeepalive, mtype)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("expected body %v, got %v", body, got)
	}
}

func TestFrameWriteRejectsOversizedMessage(t *testing.T) {
	if _, err := FrameWrite(MsgUpdate, make([]byte, 100), 50); err == nil {
		t.Fatalf("expected an error when the framed message exceeds max")
	}
}

func TestFrameReadRejectsBadMarker(t *testing.T) {
	header := make([]byte, headerLen)
	for i := range header {
		header[i] = 0
	}
	header[16], header[17] = 0, headerLen
	header[18] = MsgKeepalive

	if _, _, err := FrameRead(bytes.NewReader(header), DefaultMaxMsg); err == nil {
		t.Fatalf("expected an error for an all-zero marker")
	} else if ne, ok := err.(*NotifyError); !ok || ne.Code != 1 || ne.Subcode != 1 {
		t.Fatalf("expected NOTIFICATION 1/1, got %v", err)
	}
}

func TestFrameReadRejectsOverMaxLength(t *testing.T) {
	body := make([]byte, 10)
	frame, err := FrameWrite(MsgKeepalive, body, DefaultMaxMsg)
	if err != nil {
		t.Fatalf("FrameWrite: %v", err)
	}
	if _, _, err := FrameRead(bytes.NewReader(frame), headerLen); err == nil {
		t.Fatalf("expected an error when a message exceeds the negotiated max")
	} else if ne, ok := err.(*NotifyError); !ok || ne.Code != 1 || ne.Subcode != 2 {
		t.Fatalf("expected NOTIFICATION 1/2, got %v", err)
	}
}

// FuzzFrameRead asserts the wire-safety property (§8 property 2: never
// panic, never read past declared bounds) against arbitrary byte streams,
// not just the hand-picked malformed headers above.
func FuzzFrameRead(f *testing.F) {
	valid, err := FrameWrite(MsgKeepalive, nil, DefaultMaxMsg)
	if err != nil {
		f.Fatalf("FrameWrite: %v", err)
	}
	f.Add(valid)

	update, err := FrameWrite(MsgUpdate, []byte{0, 0, 0, 0}, DefaultMaxMsg)
	if err != nil {
		f.Fatalf("FrameWrite: %v", err)
	}
	f.Add(update)

	f.Add(make([]byte, headerLen))
	f.Add([]byte{})
	f.Add(make([]byte, headerLen-1))

	badMarker := append([]byte{}, valid...)
	badMarker[0] = 0
	f.Add(badMarker)

	f.Fuzz(func(t *testing.T, data []byte) {
		_, body, err := FrameRead(bytes.NewReader(data), DefaultMaxMsg)
		if err != nil {
			return
		}
		if len(body) > DefaultMaxMsg {
			t.Fatalf("FrameRead returned a body longer than the negotiated max: %d", len(body))
		}
	})
}
