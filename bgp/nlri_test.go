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

func testEVPNMACAdvertisement() NLRI {
	n := NLRI{
		Family:    FamilyL2VPNEVPN,
		Action:    Announce,
		RouteType: evpnRouteTypeMACIPAdvertisement,
		EthTag:    100,
		MAC:       MAC{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		MACLen:    48,
		IPAddr:    []byte{192, 0, 2, 1},
		Labels:    Labels{42},
	}
	n.RD[0], n.RD[1] = 0, 1
	n.ESI[0] = 0xAA
	return n
}

func TestPackUnpackEVPNMACAdvertisementRoundTrip(t *testing.T) {
	n := testEVPNMACAdvertisement()

	packed := packPrefix(n, false)
	decoded, consumed, err := unpackPrefix(FamilyL2VPNEVPN, packed, false)
	if err != nil {
		t.Fatalf("unpackPrefix: %v", err)
	}
	if consumed != len(packed) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(packed), consumed)
	}

	if decoded.RouteType != n.RouteType {
		t.Fatalf("route type mismatch: got %d want %d", decoded.RouteType, n.RouteType)
	}
	if decoded.EthTag != n.EthTag {
		t.Fatalf("ethernet tag mismatch: got %d want %d", decoded.EthTag, n.EthTag)
	}
	if decoded.MAC != n.MAC {
		t.Fatalf("mac mismatch: got %x want %x", decoded.MAC, n.MAC)
	}
	if decoded.RD != n.RD {
		t.Fatalf("rd mismatch: got %x want %x", decoded.RD, n.RD)
	}
	if decoded.ESI != n.ESI {
		t.Fatalf("esi mismatch: got %x want %x", decoded.ESI, n.ESI)
	}
	if !bytes.Equal(decoded.IPAddr, n.IPAddr) {
		t.Fatalf("ip mismatch: got %v want %v", decoded.IPAddr, n.IPAddr)
	}
	if len(decoded.Labels) != 1 || decoded.Labels[0] != 42 {
		t.Fatalf("label mismatch: got %v", decoded.Labels)
	}
}

func TestPackUnpackEVPNMACAdvertisementWithAddPath(t *testing.T) {
	n := testEVPNMACAdvertisement()
	n.Path = PathInfo{ID: 7, Present: true}

	packed := packPrefix(n, true)
	decoded, consumed, err := unpackPrefix(FamilyL2VPNEVPN, packed, true)
	if err != nil {
		t.Fatalf("unpackPrefix: %v", err)
	}
	if consumed != len(packed) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(packed), consumed)
	}
	if !decoded.Path.Present || decoded.Path.ID != 7 {
		t.Fatalf("expected path-id 7 to round trip, got %+v", decoded.Path)
	}
}

func TestUnpackEVPNRejectsUnsupportedRouteType(t *testing.T) {
	// route type 1 (Ethernet Auto-Discovery), length 0: no codec for it.
	raw := []byte{1, 0}
	if _, _, err := unpackPrefix(FamilyL2VPNEVPN, raw, false); err == nil {
		t.Fatalf("expected an error decoding an unsupported EVPN route type")
	}
}

func TestEVPNIndexDistinguishesRouteInstances(t *testing.T) {
	a := testEVPNMACAdvertisement()
	b := testEVPNMACAdvertisement()
	b.MAC = MAC{0x00, 0x11, 0x22, 0x33, 0x44, 0x66}

	if a.Index() == b.Index() {
		t.Fatalf("expected distinct MAC addresses to produce distinct index keys")
	}
}

func TestMPReachEncodeDecodeEVPNRoundTrip(t *testing.T) {
	n := testEVPNMACAdvertisement()
	r := MPReach{Family: FamilyL2VPNEVPN, NextHop: []byte{192, 0, 2, 254}, NLRI: []NLRI{n}}

	decoded, err := decodeMPReach(encodeMPReach(r), nil)
	if err != nil {
		t.Fatalf("decodeMPReach: %v", err)
	}
	if len(decoded.NLRI) != 1 {
		t.Fatalf("expected one decoded EVPN NLRI, got %d", len(decoded.NLRI))
	}
	if decoded.NLRI[0].MAC != n.MAC {
		t.Fatalf("mac mismatch after MP_REACH round trip: got %x want %x", decoded.NLRI[0].MAC, n.MAC)
	}
}
