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

import (
	"fmt"
	"io"
)

// Message type octet values (§4.1 header, §2 component 2).
const (
	MsgOpen         uint8 = 1
	MsgUpdate       uint8 = 2
	MsgNotification uint8 = 3
	MsgKeepalive    uint8 = 4
	MsgRouteRefresh uint8 = 5
	MsgOperational  uint8 = 9 // non-IANA-standard but widely used value for operational messages
)

const (
	headerLen     = 19
	markerLen     = 16
	DefaultMaxMsg = 4096
	ExtendedMaxMsg = 65535
)

// NotifyError is a wire/protocol error that maps directly onto a BGP
// NOTIFICATION code/subcode pair (§4.1, §7 "Wire errors"). Returning one
// from the codec is the signal that the session must be torn down with
// that NOTIFICATION.
type NotifyError struct {
	Code, Subcode uint8
	Msg           string
}

func (e *NotifyError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("bgp: notification %d/%d", e.Code, e.Subcode)
	}
	return fmt.Sprintf("bgp: notification %d/%d: %s", e.Code, e.Subcode, e.Msg)
}

func notify(code, sub uint8, format string, args ...any) *NotifyError {
	return &NotifyError{Code: code, Subcode: sub, Msg: fmt.Sprintf(format, args...)}
}

// FrameRead reads exactly one BGP PDU from r: the fixed 19-byte header
// (marker/length/type) followed by length-19 body bytes (§4.1). max is
// the currently negotiated maximum message size (4096 until both peers
// negotiate EXTENDED_MESSAGE, 65535 after).
//
// A malformed marker or an out-of-bounds length is returned as a
// *NotifyError carrying the exact NOTIFICATION code/subcode the caller
// must send back; an io error (including EOF) is returned unwrapped and
// means the transport itself is gone.
func FrameRead(r io.Reader, max int) (mtype uint8, body []byte, err error) {
	var header [headerLen]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}

	for _, b := range header[:markerLen] {
		if b != 0xff {
			return 0, nil, notify(1, 1, "connection not synchronized: bad marker")
		}
	}

	length := int(header[16])<<8 | int(header[17])
	mtype = header[18]

	if length < headerLen || length > max {
		return 0, nil, notify(1, 2, "bad message length %d (max %d)", length, max)
	}

	bodyLen := length - headerLen
	body = make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, err
		}
	}

	return mtype, body, nil
}

// FrameWrite prepends the 19-byte header (all-0xff marker, computed
// length, type) to body. It refuses to emit a PDU larger than max.
func FrameWrite(mtype uint8, body []byte, max int) ([]byte, error) {
	total := headerLen + len(body)
	if total > max {
		return nil, fmt.Errorf("bgp: message type %d of %d bytes exceeds max message size %d", mtype, total, max)
	}

	out := make([]byte, total)
	for i := 0; i < markerLen; i++ {
		out[i] = 0xff
	}
	l := htons(uint16(total))
	out[16], out[17] = l[0], l[1]
	out[18] = mtype
	copy(out[headerLen:], body)

	return out, nil
}
