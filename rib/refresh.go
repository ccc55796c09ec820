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

package rib

import "github.com/coreswitch/bgpspeak/bgp"

// Resend answers an inbound ROUTE-REFRESH for this family: it re-queues
// the whole cache for re-announcement and, when enhanced refresh is in
// effect, brackets the replay with BoRR/EoRR (§4.5 "on inbound
// ROUTE-REFRESH -> RIB.resend(enhanced_refresh, family)", RFC 7313).
func (r *RIB) Resend(enhanced bool) (borr *bgp.RouteRefresh, eorr *bgp.RouteRefresh) {
	r.ReplayCache()
	if !enhanced {
		return nil, nil
	}
	b := bgp.RouteRefresh{Family: r.family, Subtype: bgp.RefreshBoRR}
	e := bgp.RouteRefresh{Family: r.family, Subtype: bgp.RefreshEoRR}
	return &b, &e
}

// EndOfRIB returns the End-of-RIB UPDATE marker for this family (§3,
// §4.3): the classic empty UPDATE for IPv4 unicast, an empty
// MP_UNREACH_NLRI otherwise.
func (r *RIB) EndOfRIB() bgp.Update {
	if r.family == bgp.FamilyIPv4Unicast {
		return bgp.EndOfRIBIPv4()
	}
	return bgp.EndOfRIBFamily(r.family)
}
