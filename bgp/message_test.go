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

func TestDecodeMessageDispatchesByType(t *testing.T) {
	ka := Keepalive{}
	msg, err := DecodeMessage(MsgKeepalive, ka.Encode(), false, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if _, ok := msg.(Keepalive); !ok {
		t.Fatalf("expected a Keepalive, got %T", msg)
	}
}

func TestDecodeMessageRejectsUnknownType(t *testing.T) {
	if _, err := DecodeMessage(250, nil, false, nil); err == nil {
		t.Fatalf("expected an error for an unrecognized message type")
	}
}

func TestEncodeMessageRoundTripsThroughFraming(t *testing.T) {
	rr := RouteRefresh{Family: FamilyIPv4Unicast, Subtype: RefreshNormalRequest}
	body := EncodeMessage(rr, nil)
	frame, err := FrameWrite(rr.Type(), body, DefaultMaxMsg)
	if err != nil {
		t.Fatalf("FrameWrite: %v", err)
	}

	mtype, rbody, err := FrameRead(bytes.NewReader(frame), DefaultMaxMsg)
	if err != nil {
		t.Fatalf("FrameRead: %v", err)
	}
	msg, err := DecodeMessage(mtype, rbody, false, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	decoded, ok := msg.(RouteRefresh)
	if !ok || decoded != rr {
		t.Fatalf("expected %+v back, got %+v", rr, msg)
	}
}
