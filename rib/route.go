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

// Package rib implements the outgoing RIB: the Cache of what was last
// announced per family+NLRI-index, the Pending set of changes waiting
// to go out grouped by attribute-set, and route-refresh/graceful-restart
// replay (§3 Route/UPDATE, §4.5 replay, §6.3 Announce/Withdraw events).
package rib

import "github.com/coreswitch/bgpspeak/bgp"

// Route pairs an NLRI with the AttributeCollection and effective
// Nexthop a producer wants announced (§3). The RIB is the exclusive
// owner of a Route once add_change hands it over; nothing else mutates
// it afterwards.
type Route struct {
	NLRI    bgp.NLRI
	Attrs   bgp.AttributeCollection
	Nexthop bgp.IP
}

// Change is a producer-submitted instruction: announce or withdraw a
// Route, keyed by its NLRI.Action.
type Change struct {
	Route bgp.NLRI
	Attrs bgp.AttributeCollection
}

func (c Change) isWithdraw() bool { return c.Route.Action == bgp.Withdraw }
