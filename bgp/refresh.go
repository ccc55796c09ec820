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

// RouteRefreshSubtype distinguishes a plain ROUTE-REFRESH (RFC 2918)
// from the BoRR/EoRR bracketing messages ENHANCED_ROUTE_REFRESH adds
// (RFC 7313), carried in the byte RFC 2918 reserved as zero.
type RouteRefreshSubtype uint8

const (
	RefreshNormalRequest RouteRefreshSubtype = 0
	RefreshBoRR          RouteRefreshSubtype = 1
	RefreshEoRR          RouteRefreshSubtype = 2
)

// RouteRefresh is the parsed body of a ROUTE-REFRESH message.
type RouteRefresh struct {
	Family  Family
	Subtype RouteRefreshSubtype
}

func (r RouteRefresh) Type() uint8 { return MsgRouteRefresh }

func (r RouteRefresh) Encode() []byte {
	a := htons(uint16(r.Family.AFI))
	return []byte{a[0], a[1], byte(r.Subtype), uint8(r.Family.SAFI)}
}

func DecodeRouteRefresh(body []byte) (RouteRefresh, error) {
	if len(body) != 4 {
		return RouteRefresh{}, notify(1, 2, "ROUTE-REFRESH body must be 4 bytes, got %d", len(body))
	}
	return RouteRefresh{
		Family:  Family{AFI: AFI(ntohs(body[0:2])), SAFI: SAFI(body[3])},
		Subtype: RouteRefreshSubtype(body[2]),
	}, nil
}
