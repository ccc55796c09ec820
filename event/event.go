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

// Package event carries the typed BGP event stream a consumer watches
// a peer through (§6.3): session lifecycle, message tracing, and route
// churn, delivered over a one-way channel (a Bus) that one or more
// peers may share.
package event

import (
	"time"

	"github.com/coreswitch/bgpspeak/bgp"
)

// Kind discriminates the Event variants from §6.3.
type Kind uint8

const (
	SessionUp Kind = iota
	SessionDown
	Received
	Sent
	Announce
	Withdraw
	EoR
	Notification
)

func (k Kind) String() string {
	switch k {
	case SessionUp:
		return "session_up"
	case SessionDown:
		return "session_down"
	case Received:
		return "received"
	case Sent:
		return "sent"
	case Announce:
		return "announce"
	case Withdraw:
		return "withdraw"
	case EoR:
		return "eor"
	case Notification:
		return "notification"
	default:
		return "unknown"
	}
}

// Event is the single struct carrying every §6.3 variant, selected by
// Kind; unused fields are the zero value. Peer identifies the session
// (the session driver sets the peer address); Time is stamped by the emitter.
type Event struct {
	Kind Kind
	Peer string
	Time time.Time

	// SessionUp
	Negotiated bgp.Negotiated

	// SessionDown reason text
	Reason string

	// Received / Sent
	MessageSummary string
	Raw            []byte

	// Announce / Withdraw / EoR
	Family     bgp.Family
	NLRI       bgp.NLRI
	Attributes bgp.AttributeCollection
	Nexthop    bgp.IP

	// Notification
	Direction     string // "sent" | "received"
	Code, Subcode uint8
	Data          []byte
}

// Bus is a one-way, multi-subscriber-unfriendly event channel: any
// number of producers (peers) hand their event streams to one external
// consumer without taking a dependency on how that consumer
// renders it (§6.3: "a thin adapter converts Event -> text or JSON;
// adapter is out of scope").
type Bus struct {
	ch chan Event
}

// NewBus creates a Bus with the given channel capacity. A full channel
// means the consumer isn't draining fast enough; Emit then drops the
// event rather than blocking the FSM (§7 propagation policy: never let
// the event sink back-pressure the protocol engine).
func NewBus(capacity int) *Bus {
	return &Bus{ch: make(chan Event, capacity)}
}

func (b *Bus) Events() <-chan Event { return b.ch }

// Emit attempts a non-blocking send, returning false if the channel was
// full and the event was dropped.
func (b *Bus) Emit(e Event) bool {
	select {
	case b.ch <- e:
		return true
	default:
		return false
	}
}

func (b *Bus) Close() { close(b.ch) }
