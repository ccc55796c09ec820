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

package session

import "github.com/coreswitch/bgpspeak/bgp"

// ChangeRequest is one producer-submitted route change destined for a
// single peer+family RIB.
type ChangeRequest struct {
	Family  bgp.Family
	NLRI    bgp.NLRI
	Attrs   bgp.AttributeCollection
	Nexthop bgp.IP
}

// mailbox is the bounded producer queue feeding one Driver, generalized
// from a plain blocking `make(chan Update, 10)`: this one surfaces
// overflow instead of silently blocking the producer or growing without
// limit (§6.1 NeighborConfig doesn't size this explicitly; the
// API-command queue cap a real implementation carries is modeled here).
type mailbox struct {
	ch      chan ChangeRequest
	onDrop  func(ChangeRequest)
}

func newMailbox(capacity int, onDrop func(ChangeRequest)) *mailbox {
	return &mailbox{ch: make(chan ChangeRequest, capacity), onDrop: onDrop}
}

// Submit is a non-blocking send. If the mailbox is full the request is
// dropped and onDrop is invoked so the caller can emit a MailboxFull
// event and/or bump a metric — the driver never stalls a producer.
func (m *mailbox) Submit(r ChangeRequest) {
	select {
	case m.ch <- r:
	default:
		if m.onDrop != nil {
			m.onDrop(r)
		}
	}
}

func (m *mailbox) Close() { close(m.ch) }
