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

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("ParsePrefix(%q): %v", s, err)
	}
	return p
}

func testMandatoryAttrs(nextHop string) AttributeCollection {
	return NewAttributeCollection(
		Attribute{Code: AttrOrigin, Origin: OriginIGP},
		Attribute{Code: AttrASPath, ASPath: []ASPathSegment{{Type: ASSequence, ASNs: []ASN{65001}}}},
		Attribute{Code: AttrNextHop, NextHop: testRouterID(nextHop)},
	)
}

func TestUpdateEncodeDecodeAnnounceRoundTrip(t *testing.T) {
	u := Update{
		Attrs:     testMandatoryAttrs("192.0.2.1"),
		Announced: []NLRI{{Family: FamilyIPv4Unicast, Action: Announce, Prefix: NewCIDR(mustPrefix(t, "10.0.0.0/24"))}},
	}

	decoded, err := DecodeUpdate(EncodeUpdate(u, nil), false, nil)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	if len(decoded.Announced) != 1 || decoded.Announced[0].Prefix.String() != "10.0.0.0/24" {
		t.Fatalf("unexpected announced NLRI: %+v", decoded.Announced)
	}
	if decoded.Attrs[AttrOrigin].Origin != OriginIGP {
		t.Fatalf("expected ORIGIN to round trip")
	}
}

func TestUpdateEncodeDecodeWithdrawRoundTrip(t *testing.T) {
	u := Update{Withdrawn: []NLRI{{Family: FamilyIPv4Unicast, Action: Withdraw, Prefix: NewCIDR(mustPrefix(t, "10.0.1.0/24"))}}}

	decoded, err := DecodeUpdate(EncodeUpdate(u, nil), false, nil)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	if len(decoded.Withdrawn) != 1 || len(decoded.Announced) != 0 {
		t.Fatalf("unexpected decode result: %+v", decoded)
	}
}

func TestDecodeUpdateRejectsMissingMandatoryAttributes(t *testing.T) {
	u := Update{
		Attrs:     NewAttributeCollection(Attribute{Code: AttrOrigin, Origin: OriginIGP}),
		Announced: []NLRI{{Family: FamilyIPv4Unicast, Action: Announce, Prefix: NewCIDR(mustPrefix(t, "10.0.0.0/24"))}},
	}
	if _, err := DecodeUpdate(EncodeUpdate(u, nil), false, nil); err == nil {
		t.Fatalf("expected an error for an announce missing AS_PATH/NEXT_HOP")
	}
}

func TestIsEndOfRIB(t *testing.T) {
	if !EndOfRIBIPv4().IsEndOfRIB() {
		t.Fatalf("expected the empty IPv4 UPDATE to be End-of-RIB")
	}
	nonEmpty := Update{Announced: []NLRI{{Family: FamilyIPv4Unicast, Prefix: NewCIDR(mustPrefix(t, "10.0.0.0/24"))}}}
	if nonEmpty.IsEndOfRIB() {
		t.Fatalf("a non-empty UPDATE must not be End-of-RIB")
	}
}

func TestEndOfRIBFamilyCarriesEmptyMPUnreach(t *testing.T) {
	u := EndOfRIBFamily(FamilyIPv6Unicast)
	mu, ok := u.Attrs[AttrMPUnreach]
	if !ok || mu.MPUnreach.Family != FamilyIPv6Unicast || len(mu.MPUnreach.NLRI) != 0 {
		t.Fatalf("expected an empty MP_UNREACH for ipv6-unicast, got %+v", u)
	}
}
