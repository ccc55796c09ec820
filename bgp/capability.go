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

// Capability codes (§4.2 table), IANA "Capability Codes" registry.
const (
	CapMultiprotocol         uint8 = 1
	CapRouteRefresh          uint8 = 2
	CapExtendedNextHop       uint8 = 5
	CapExtendedMessage       uint8 = 6
	CapGracefulRestart       uint8 = 64
	CapFourByteASN           uint8 = 65
	CapMultisession          uint8 = 68
	CapAddPath               uint8 = 69
	CapEnhancedRouteRefresh  uint8 = 70
	CapHostname              uint8 = 73
	CapSoftwareVersion       uint8 = 75
	CapMultisessionLegacy    uint8 = 131 // compatibility alias only (§9 open question 3)
)

const optionalParamCapabilities uint8 = 2 // RFC 3392 optional parameter type 2
const optionalParamAuth uint8 = 1          // rejected outright, §4.2

// AddPathDirection is the bitmask carried in an ADD_PATH capability
// entry, from the advertiser's own perspective: bit 0x1 = receive,
// bit 0x2 = send.
type AddPathDirection uint8

const (
	AddPathReceive AddPathDirection = 1
	AddPathSend    AddPathDirection = 2
)

// Capability is a sum type keyed by capability code (§3). Unknown codes
// are preserved as Opaque so the session never aborts over them (§4.2
// policy: "Unknown code: store as opaque; do NOT abort the session.").
type Capability struct {
	Code uint8

	// CapMultiprotocol
	MPFamilies []Family

	// CapGracefulRestart
	GRRestarting bool // "R" bit: we are recovering from a restart
	GRNotification bool // "N" bit: peer preserves forwarding across NOTIFICATION
	GRTime       uint16
	GRFamilies   []GRFamily

	// CapFourByteASN
	ASN4 ASN

	// CapAddPath
	AddPath []AddPathFamily

	// CapExtendedNextHop
	ExtendedNextHop []ExtendedNextHopEntry

	// CapMultisession / CapMultisessionLegacy
	MultisessionCodes []uint8

	// CapHostname
	Hostname string
	Domain   string

	// CapSoftwareVersion
	Software string

	// Opaque (unknown code, or any code before/without decoding the value)
	Opaque []byte
}

type GRFamily struct {
	Family     Family
	Forwarding bool // "F" bit: forwarding state preserved for this family
}

type AddPathFamily struct {
	Family Family
	Dir    AddPathDirection
}

type ExtendedNextHopEntry struct {
	Family   Family
	NextHopAFI AFI
}

func encodeCapability(c Capability) []byte {
	var val []byte

	switch c.Code {
	case CapMultiprotocol:
		for _, f := range c.MPFamilies {
			a := htons(uint16(f.AFI))
			val = append(val, a[0], a[1], 0, uint8(f.SAFI))
		}
	case CapRouteRefresh, CapExtendedMessage, CapEnhancedRouteRefresh:
		// empty value
	case CapGracefulRestart:
		flags := uint16(0)
		if c.GRRestarting {
			flags |= 0x8000
		}
		if c.GRNotification {
			flags |= 0x4000
		}
		word := flags | (c.GRTime & 0x0FFF)
		w := htons(word)
		val = append(val, w[0], w[1])
		for _, gf := range c.GRFamilies {
			a := htons(uint16(gf.Family.AFI))
			flagByte := uint8(0)
			if gf.Forwarding {
				flagByte = 0x80
			}
			val = append(val, a[0], a[1], uint8(gf.Family.SAFI), flagByte)
		}
	case CapFourByteASN:
		a := htonl(uint32(c.ASN4))
		val = append(val, a[:]...)
	case CapMultisession, CapMultisessionLegacy:
		val = append(val, c.MultisessionCodes...)
	case CapAddPath:
		for _, af := range c.AddPath {
			a := htons(uint16(af.Family.AFI))
			val = append(val, a[0], a[1], uint8(af.Family.SAFI), uint8(af.Dir))
		}
	case CapExtendedNextHop:
		for _, e := range c.ExtendedNextHop {
			a := htons(uint16(e.Family.AFI))
			s := htons(uint16(e.Family.SAFI))
			nh := htons(uint16(e.NextHopAFI))
			val = append(val, a[0], a[1], s[0], s[1], nh[0], nh[1])
		}
	case CapHostname:
		val = append(val, byte(len(c.Hostname)))
		val = append(val, []byte(c.Hostname)...)
		val = append(val, byte(len(c.Domain)))
		val = append(val, []byte(c.Domain)...)
	case CapSoftwareVersion:
		val = append(val, byte(len(c.Software)))
		val = append(val, []byte(c.Software)...)
	default:
		val = append(val, c.Opaque...)
	}

	return append([]byte{c.Code, byte(len(val))}, val...)
}

func decodeCapability(data []byte) (Capability, int, error) {
	if len(data) < 2 {
		return Capability{}, 0, fmt.Errorf("bgp: capability header truncated")
	}
	code := data[0]
	l := int(data[1])
	if len(data) < 2+l {
		return Capability{}, 0, fmt.Errorf("bgp: capability %d value truncated (need %d have %d)", code, l, len(data)-2)
	}
	v := data[2 : 2+l]
	c := Capability{Code: code}

	switch code {
	case CapMultiprotocol:
		for i := 0; i+4 <= len(v); i += 4 {
			c.MPFamilies = append(c.MPFamilies, Family{AFI: AFI(ntohs(v[i : i+2])), SAFI: SAFI(v[i+3])})
		}
	case CapRouteRefresh, CapExtendedMessage, CapEnhancedRouteRefresh:
		// empty
	case CapGracefulRestart:
		if len(v) >= 2 {
			word := ntohs(v[0:2])
			c.GRRestarting = word&0x8000 != 0
			c.GRNotification = word&0x4000 != 0
			c.GRTime = word & 0x0FFF
		}
		for i := 2; i+4 <= len(v); i += 4 {
			c.GRFamilies = append(c.GRFamilies, GRFamily{
				Family:     Family{AFI: AFI(ntohs(v[i : i+2])), SAFI: SAFI(v[i+2])},
				Forwarding: v[i+3]&0x80 != 0,
			})
		}
	case CapFourByteASN:
		if len(v) < 4 {
			return c, 0, fmt.Errorf("bgp: FOUR_BYTES_ASN capability truncated")
		}
		c.ASN4 = ASN(ntohl(v[0:4]))
	case CapMultisession, CapMultisessionLegacy:
		c.MultisessionCodes = append([]byte{}, v...)
	case CapAddPath:
		for i := 0; i+4 <= len(v); i += 4 {
			c.AddPath = append(c.AddPath, AddPathFamily{
				Family: Family{AFI: AFI(ntohs(v[i : i+2])), SAFI: SAFI(v[i+2])},
				Dir:    AddPathDirection(v[i+3]),
			})
		}
	case CapExtendedNextHop:
		for i := 0; i+6 <= len(v); i += 6 {
			c.ExtendedNextHop = append(c.ExtendedNextHop, ExtendedNextHopEntry{
				Family:     Family{AFI: AFI(ntohs(v[i : i+2])), SAFI: SAFI(ntohs(v[i+2 : i+4]))},
				NextHopAFI: AFI(ntohs(v[i+4 : i+6])),
			})
		}
	case CapHostname:
		off := 0
		if off < len(v) {
			hl := int(v[off])
			off++
			if off+hl <= len(v) {
				c.Hostname = string(v[off : off+hl])
				off += hl
			}
		}
		if off < len(v) {
			dl := int(v[off])
			off++
			if off+dl <= len(v) {
				c.Domain = string(v[off : off+dl])
			}
		}
	case CapSoftwareVersion:
		if len(v) > 0 {
			sl := int(v[0])
			if 1+sl <= len(v) {
				c.Software = string(v[1 : 1+sl])
			}
		}
	default:
		c.Opaque = append([]byte{}, v...)
	}

	return c, 2 + l, nil
}

// encodeCapabilitiesParam wraps one or more capabilities in a single
// CAPABILITIES (type 2) optional parameter TLV.
func encodeCapabilitiesParam(caps []Capability) []byte {
	var v []byte
	for _, c := range caps {
		v = append(v, encodeCapability(c)...)
	}
	return append([]byte{optionalParamCapabilities, byte(len(v))}, v...)
}
