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

// Message is any decoded BGP PDU body. Type returns the wire message
// type octet from the header (§4.1).
type Message interface {
	Type() uint8
}

// DecodeMessage dispatches on mtype to the matching body decoder. asn4
// and addpath carry the session-negotiated state UPDATE decoding needs;
// both are ignored by message types that don't use them.
func DecodeMessage(mtype uint8, body []byte, asn4 bool, addpath func(Family) bool) (Message, error) {
	switch mtype {
	case MsgOpen:
		return DecodeOpen(body)
	case MsgUpdate:
		return DecodeUpdate(body, asn4, addpath)
	case MsgNotification:
		return DecodeNotification(body)
	case MsgKeepalive:
		return DecodeKeepalive(body)
	case MsgRouteRefresh:
		return DecodeRouteRefresh(body)
	case MsgOperational:
		return DecodeOperational(body)
	default:
		return nil, notify(1, 3, "unrecognized message type %d", mtype)
	}
}

// EncodeMessage renders any Message body to its wire form. UPDATE is the
// only type whose encoding depends on negotiated state (ADD-PATH).
func EncodeMessage(m Message, addpath func(Family) bool) []byte {
	switch v := m.(type) {
	case Open:
		return v.Encode()
	case Update:
		return EncodeUpdate(v, addpath)
	case Notification:
		return v.Encode()
	case Keepalive:
		return v.Encode()
	case RouteRefresh:
		return v.Encode()
	case Operational:
		return v.Encode()
	default:
		return nil
	}
}
