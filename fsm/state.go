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

// Package fsm implements the BGP peer state machine (§4.5): IDLE →
// CONNECT → ACTIVE → OPENSENT → OPENCONFIRM → ESTABLISHED, driven by
// events the session driver feeds it and producing actions (connect,
// send message, start/stop timer, notify) for the driver to carry out.
package fsm

// State is a peer FSM state (§4.5).
type State uint8

const (
	Idle State = iota
	Connect
	Active
	OpenSent
	OpenConfirm
	Established
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Connect:
		return "CONNECT"
	case Active:
		return "ACTIVE"
	case OpenSent:
		return "OPENSENT"
	case OpenConfirm:
		return "OPENCONFIRM"
	case Established:
		return "ESTABLISHED"
	default:
		return "UNKNOWN"
	}
}
