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

import "fmt"

// Notification is the parsed body of a BGP NOTIFICATION message (§4.1,
// §7). Receiving one, or encoding one to send, always ends the session.
type Notification struct {
	Code, Subcode uint8
	Data          []byte
}

func (n Notification) Type() uint8 { return MsgNotification }

func NotificationFromError(err error) Notification {
	if ne, ok := err.(*NotifyError); ok {
		return Notification{Code: ne.Code, Subcode: ne.Subcode, Data: []byte(ne.Msg)}
	}
	return Notification{Code: 6, Subcode: 0, Data: []byte(err.Error())}
}

func (n Notification) Encode() []byte {
	body := make([]byte, 2+len(n.Data))
	body[0], body[1] = n.Code, n.Subcode
	copy(body[2:], n.Data)
	return body
}

func DecodeNotification(body []byte) (Notification, error) {
	if len(body) < 2 {
		return Notification{}, notify(1, 2, "NOTIFICATION body truncated")
	}
	return Notification{Code: body[0], Subcode: body[1], Data: append([]byte{}, body[2:]...)}, nil
}

// ceaseSubcode is the NOTIFICATION subcode space under code 6 (Cease),
// RFC 4486.
const (
	CeaseMaxPrefixesReached      uint8 = 1
	CeaseAdminShutdown           uint8 = 2
	CeasePeerDeconfigured        uint8 = 3
	CeaseAdminReset              uint8 = 4
	CeaseConnectionRejected      uint8 = 5
	CeaseOtherConfigChange       uint8 = 6
	CeaseCollisionResolution     uint8 = 7
	CeaseOutOfResources          uint8 = 8
	CeaseHardReset               uint8 = 9
	CeaseBFDDown                 uint8 = 10
)

// ShutdownCommunication extracts the optional human-readable shutdown
// message carried in the Data of a Cease/AdministrativeShutdown or
// Cease/AdministrativeReset NOTIFICATION (RFC 9003): a one-octet length
// followed by that many bytes of UTF-8.
func (n Notification) ShutdownCommunication() (string, bool) {
	if n.Code != 6 || (n.Subcode != CeaseAdminShutdown && n.Subcode != CeaseAdminReset) {
		return "", false
	}
	if len(n.Data) < 1 {
		return "", false
	}
	l := int(n.Data[0])
	if 1+l > len(n.Data) {
		return "", false
	}
	return string(n.Data[1 : 1+l]), true
}

func (n Notification) String() string {
	return fmt.Sprintf("NOTIFICATION %d/%d (%d bytes)", n.Code, n.Subcode, len(n.Data))
}

var notificationCodeNames = map[uint8]string{
	1: "Message Header Error",
	2: "OPEN Message Error",
	3: "UPDATE Message Error",
	4: "Hold Timer Expired",
	5: "Finite State Machine Error",
	6: "Cease",
}

var ceaseSubcodeNames = map[uint8]string{
	CeaseMaxPrefixesReached:  "Maximum Number of Prefixes Reached",
	CeaseAdminShutdown:       "Administrative Shutdown",
	CeasePeerDeconfigured:    "Peer De-configured",
	CeaseAdminReset:          "Administrative Reset",
	CeaseConnectionRejected:  "Connection Rejected",
	CeaseOtherConfigChange:   "Other Configuration Change",
	CeaseCollisionResolution: "Connection Collision Resolution",
	CeaseOutOfResources:      "Out of Resources",
	CeaseHardReset:           "Hard Reset",
	CeaseBFDDown:             "BFD Down",
}

// Describe renders a human-readable "Code / Subcode" label the way RFC
// 4271/4486 name them, falling back to the bare numbers for codes or
// subcodes this module doesn't have a name table entry for. When a
// Cease/AdministrativeShutdown or Cease/AdministrativeReset shutdown
// communication is present, it's appended in parentheses.
func (n Notification) Describe() string {
	codeName, ok := notificationCodeNames[n.Code]
	if !ok {
		codeName = fmt.Sprintf("code %d", n.Code)
	}

	label := codeName
	if n.Code == 6 {
		if subName, ok := ceaseSubcodeNames[n.Subcode]; ok {
			label = fmt.Sprintf("%s / %s", codeName, subName)
		} else {
			label = fmt.Sprintf("%s / subcode %d", codeName, n.Subcode)
		}
	} else {
		label = fmt.Sprintf("%s / subcode %d", codeName, n.Subcode)
	}

	if msg, ok := n.ShutdownCommunication(); ok && msg != "" {
		label = fmt.Sprintf("%s (%s)", label, msg)
	}
	return label
}
