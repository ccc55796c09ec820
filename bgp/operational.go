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

// Operational carries an opaque operational message body. Real-world
// speakers disagree on the wire shape for this message type (it never
// made it through IANA as a standard), so this module treats it as an
// uninterpreted payload: decode/encode is a pass-through, and the FSM
// only needs to know one arrived.
type Operational struct {
	Data []byte
}

func (o Operational) Type() uint8    { return MsgOperational }
func (o Operational) Encode() []byte { return o.Data }

func DecodeOperational(body []byte) (Operational, error) {
	return Operational{Data: append([]byte{}, body...)}, nil
}
