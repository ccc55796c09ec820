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
	"net/netip"
	"testing"
)

func testRouterID(s string) IP {
	a, err := netip.ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return IPFromAddr(a)
}

func TestOpenEncodeDecodeRoundTrip(t *testing.T) {
	o := NewOpen(65001, 90, testRouterID("192.0.2.1"), []Capability{
		{Code: CapMultiprotocol, MPFamilies: []Family{FamilyIPv4Unicast, FamilyIPv6Unicast}},
		{Code: CapRouteRefresh},
	})

	decoded, err := DecodeOpen(o.Encode())
	if err != nil {
		t.Fatalf("DecodeOpen: %v", err)
	}
	if decoded.MyAS != 65001 || decoded.HoldTime != 90 {
		t.Fatalf("unexpected decoded OPEN: %+v", decoded)
	}
	if decoded.RouterID.As4() != [4]byte{192, 0, 2, 1} {
		t.Fatalf("unexpected router-id: %s", decoded.RouterID)
	}
	if len(decoded.Families()) != 2 {
		t.Fatalf("expected 2 advertised families, got %d", len(decoded.Families()))
	}
}

func TestNewOpenAddsFourByteASNWhenNeeded(t *testing.T) {
	o := NewOpen(400000, 90, testRouterID("192.0.2.1"), nil)
	asn, ok := o.ASN4()
	if !ok || asn != 400000 {
		t.Fatalf("expected FOUR_BYTES_ASN capability carrying 400000, got ok=%v asn=%d", ok, asn)
	}
	if o.MyAS.Encode16() != uint16(ASTrans) {
		t.Fatalf("expected MyAS to encode as AS_TRANS on the wire, got %d", o.MyAS.Encode16())
	}
}

func TestDecodeOpenRejectsAuthParameter(t *testing.T) {
	body := []byte{4, 0, 1, 0, 90, 192, 0, 2, 1, 2, 1, 0}
	if _, err := DecodeOpen(body); err == nil {
		t.Fatalf("expected an error for the AUTH optional parameter")
	} else if ne, ok := err.(*NotifyError); !ok || ne.Code != 2 || ne.Subcode != 5 {
		t.Fatalf("expected NOTIFICATION 2/5, got %v", err)
	}
}

func TestAppendCapabilityKeepsFirstDuplicate(t *testing.T) {
	caps := appendCapability(nil, Capability{Code: CapRouteRefresh})
	caps = appendCapability(caps, Capability{Code: CapRouteRefresh, Opaque: []byte{1}})
	if len(caps) != 1 || caps[0].Opaque != nil {
		t.Fatalf("expected the first occurrence of a duplicate capability to win, got %+v", caps)
	}
}
