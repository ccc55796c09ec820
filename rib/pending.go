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

// pendingGroup batches announced NLRI that share an identical attribute
// set and next-hop so they can go out in a single UPDATE (§3
// AttributeCollection canonical Index(), §6 "pending-change indexes
// grouped by attribute-set for grouped UPDATE emission").
type pendingGroup struct {
	attrs   bgp.AttributeCollection
	nexthop bgp.IP
	nlri    []bgp.NLRI
}

// pending is the per-family queue of not-yet-sent changes.
type pending struct {
	announce map[string]*pendingGroup // keyed by attrs.Index()+nexthop
	withdraw []bgp.NLRI
}

func newPending() *pending {
	return &pending{announce: map[string]*pendingGroup{}}
}

func (p *pending) addAnnounce(n bgp.NLRI, attrs bgp.AttributeCollection, nexthop bgp.IP) {
	key := attrs.Index() + "|" + nexthop.String()
	g, ok := p.announce[key]
	if !ok {
		g = &pendingGroup{attrs: attrs, nexthop: nexthop}
		p.announce[key] = g
	}
	g.nlri = append(g.nlri, n)
}

func (p *pending) addWithdraw(n bgp.NLRI) {
	p.withdraw = append(p.withdraw, n)
}

func (p *pending) empty() bool {
	return len(p.withdraw) == 0 && len(p.announce) == 0
}

func (p *pending) reset() {
	p.announce = map[string]*pendingGroup{}
	p.withdraw = nil
}
