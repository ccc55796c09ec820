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
	"net/netip"
)

// Open is the parsed body of a BGP OPEN message (§4.2).
type Open struct {
	Version  uint8
	MyAS     ASN // the real ASN, always; Encode16() computes AS_TRANS when needed
	HoldTime uint16
	RouterID IP // IPv4 router-id, carried as an IP for symmetry with the rest of the codec

	Capabilities []Capability
}

// NewOpen builds an Open ready for encoding, automatically adding the
// FOUR_BYTES_ASN capability when myAS doesn't fit in 16 bits (§4.2).
func NewOpen(myAS ASN, holdTime uint16, routerID IP, caps []Capability) Open {
	o := Open{Version: 4, MyAS: myAS, HoldTime: holdTime, RouterID: routerID, Capabilities: caps}
	if myAS > 65535 {
		hasASN4 := false
		for _, c := range caps {
			if c.Code == CapFourByteASN {
				hasASN4 = true
				break
			}
		}
		if !hasASN4 {
			o.Capabilities = append(o.Capabilities, Capability{Code: CapFourByteASN, ASN4: myAS})
		}
	}
	return o
}

func (o Open) Type() uint8 { return MsgOpen }

func (o Open) Encode() []byte {
	as := htons(o.MyAS.Encode16())
	ht := htons(o.HoldTime)
	id := o.RouterID.As4()

	body := []byte{o.Version, as[0], as[1], ht[0], ht[1], id[0], id[1], id[2], id[3]}

	var params []byte
	if len(o.Capabilities) > 0 {
		params = append(params, encodeCapabilitiesParam(o.Capabilities)...)
	}

	body = append(body, byte(len(params)))
	body = append(body, params...)

	return body
}

// DecodeOpen parses an OPEN body. Any optional-parameter type other than
// CAPABILITIES (2) is rejected with NOTIFICATION 2,4 (Unsupported
// Optional Parameter); AUTH (type 1) is rejected explicitly with 2,5
// (§4.2).
func DecodeOpen(body []byte) (Open, error) {
	if len(body) < 10 {
		return Open{}, notify(2, 0, "OPEN body truncated: %d bytes", len(body))
	}

	o := Open{
		Version:  body[0],
		MyAS:     ASN(ntohs(body[1:3])),
		HoldTime: ntohs(body[3:5]),
		RouterID: IPFromAddr(netip.AddrFrom4([4]byte{body[5], body[6], body[7], body[8]})),
	}

	paramLen := int(body[9])
	params := body[10:]
	if len(params) < paramLen {
		return Open{}, notify(2, 0, "OPEN optional parameters truncated")
	}
	params = params[:paramLen]

	off := 0
	for off < len(params) {
		if off+2 > len(params) {
			return Open{}, notify(2, 0, "OPEN optional parameter header truncated")
		}
		ptype := params[off]
		plen := int(params[off+1])
		off += 2
		if off+plen > len(params) {
			return Open{}, notify(2, 0, "OPEN optional parameter value truncated")
		}
		pval := params[off : off+plen]
		off += plen

		switch ptype {
		case optionalParamCapabilities:
			co := 0
			for co < len(pval) {
				c, n, err := decodeCapability(pval[co:])
				if err != nil {
					return Open{}, notify(2, 0, "%s", err)
				}
				o.Capabilities = appendCapability(o.Capabilities, c)
				co += n
			}
		case optionalParamAuth:
			return Open{}, notify(2, 5, "AUTH optional parameter is not supported")
		default:
			return Open{}, notify(2, 4, "unsupported optional parameter type %d", ptype)
		}
	}

	return o, nil
}

// appendCapability enforces the "duplicate capability codes: keep
// first" policy from §4.2: a capability whose code is already present
// is dropped silently (nothing is logged).
func appendCapability(caps []Capability, c Capability) []Capability {
	for _, existing := range caps {
		if existing.Code == c.Code {
			return caps
		}
	}
	return append(caps, c)
}

func (o Open) ASN4() (ASN, bool) {
	for _, c := range o.Capabilities {
		if c.Code == CapFourByteASN {
			return c.ASN4, true
		}
	}
	return 0, false
}

// EffectiveASN returns the real ASN carried by the OPEN: the
// FOUR_BYTES_ASN capability value if present, else MyAS.
func (o Open) EffectiveASN() ASN {
	if asn4, ok := o.ASN4(); ok {
		return asn4
	}
	return o.MyAS
}

func (o Open) Families() []Family {
	var fams []Family
	for _, c := range o.Capabilities {
		if c.Code == CapMultiprotocol {
			fams = append(fams, c.MPFamilies...)
		}
	}
	return fams
}

func (o Open) String() string {
	return fmt.Sprintf("OPEN version=%d as=%s holdtime=%d router-id=%s caps=%d",
		o.Version, o.EffectiveASN(), o.HoldTime, o.RouterID, len(o.Capabilities))
}
