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

import "testing"

func TestRouteRefreshEncodeDecodeRoundTrip(t *testing.T) {
	r := RouteRefresh{Family: FamilyIPv6Unicast, Subtype: RefreshBoRR}
	decoded, err := DecodeRouteRefresh(r.Encode())
	if err != nil {
		t.Fatalf("DecodeRouteRefresh: %v", err)
	}
	if decoded.Family != FamilyIPv6Unicast || decoded.Subtype != RefreshBoRR {
		t.Fatalf("round trip mismatch: got %+v", decoded)
	}
}

func TestDecodeRouteRefreshRejectsWrongLength(t *testing.T) {
	if _, err := DecodeRouteRefresh([]byte{0, 1, 0}); err == nil {
		t.Fatalf("expected an error for a 3-byte ROUTE-REFRESH body")
	}
}
