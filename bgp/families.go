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

// Package bgp implements the BGP-4 wire format: message framing, the
// OPEN/UPDATE/NOTIFICATION/KEEPALIVE/ROUTE-REFRESH codec, capability
// negotiation and the primitive types (AFI/SAFI, ASN, IP, NLRI, path
// attributes) those messages are built from.
//
// https://datatracker.ietf.org/doc/html/rfc4271 - A Border Gateway Protocol 4 (BGP-4)
// https://datatracker.ietf.org/doc/html/rfc4760 - Multiprotocol Extensions for BGP-4
package bgp

import (
	"fmt"
	"net/netip"
)

// AFI is an Address Family Identifier (IANA registry).
type AFI uint16

const (
	AFI_IPV4 AFI = 1
	AFI_IPV6 AFI = 2
	AFI_L2VPN AFI = 25
)

func (a AFI) String() string {
	switch a {
	case AFI_IPV4:
		return "ipv4"
	case AFI_IPV6:
		return "ipv6"
	case AFI_L2VPN:
		return "l2vpn"
	default:
		return fmt.Sprintf("afi(%d)", uint16(a))
	}
}

// SAFI is a Subsequent Address Family Identifier.
type SAFI uint8

const (
	SAFI_UNICAST          SAFI = 1
	SAFI_MULTICAST        SAFI = 2
	SAFI_MPLS_LABEL       SAFI = 4  // labeled unicast
	SAFI_MPLS_VPN         SAFI = 128 // VPN-IPv4/VPN-IPv6 unicast
	SAFI_EVPN             SAFI = 70
	SAFI_FLOWSPEC         SAFI = 133
)

func (s SAFI) String() string {
	switch s {
	case SAFI_UNICAST:
		return "unicast"
	case SAFI_MULTICAST:
		return "multicast"
	case SAFI_MPLS_LABEL:
		return "labeled-unicast"
	case SAFI_MPLS_VPN:
		return "vpn-unicast"
	case SAFI_EVPN:
		return "evpn"
	case SAFI_FLOWSPEC:
		return "flowspec"
	default:
		return fmt.Sprintf("safi(%d)", uint8(s))
	}
}

// Family is the (AFI,SAFI) pair that indexes every multiprotocol
// structure (§3).
type Family struct {
	AFI  AFI
	SAFI SAFI
}

func (f Family) String() string { return f.AFI.String() + "/" + f.SAFI.String() }

var (
	FamilyIPv4Unicast    = Family{AFI_IPV4, SAFI_UNICAST}
	FamilyIPv6Unicast    = Family{AFI_IPV6, SAFI_UNICAST}
	FamilyIPv4MPLSLabel  = Family{AFI_IPV4, SAFI_MPLS_LABEL}
	FamilyIPv6MPLSLabel  = Family{AFI_IPV6, SAFI_MPLS_LABEL}
	FamilyIPv4MPLSVPN    = Family{AFI_IPV4, SAFI_MPLS_VPN}
	FamilyIPv6MPLSVPN    = Family{AFI_IPV6, SAFI_MPLS_VPN}
	FamilyL2VPNEVPN      = Family{AFI_L2VPN, SAFI_EVPN}
)

// ASN is a BGP Autonomous System Number. Values >= 65536 require the
// FOUR_BYTES_ASN capability (§4.2); AS_TRANS is substituted on the wire
// of a classic 2-byte OPEN when the real number doesn't fit.
type ASN uint32

const ASTrans ASN = 23456

// Encode16 returns the value carried in a classic 2-byte OPEN/AS_PATH
// field: the ASN itself if it fits, AS_TRANS otherwise.
func (a ASN) Encode16() uint16 {
	if a > 65535 {
		return uint16(ASTrans)
	}
	return uint16(a)
}

func (a ASN) String() string { return fmt.Sprintf("%d", uint32(a)) }

// IP is a tagged union over v4/v6 next-hop/router-id addresses, plus the
// NoNextHop sentinel (§3).
type IP struct {
	addr netip.Addr
}

var NoNextHop = IP{}

func IPFromAddr(a netip.Addr) IP { return IP{addr: a} }

func (ip IP) Addr() netip.Addr { return ip.addr }
func (ip IP) IsValid() bool    { return ip.addr.IsValid() }
func (ip IP) Is4() bool        { return ip.addr.Is4() }
func (ip IP) Is6() bool        { return ip.addr.Is6() || ip.addr.Is4In6() }
func (ip IP) String() string {
	if !ip.addr.IsValid() {
		return "<no-nexthop>"
	}
	return ip.addr.String()
}

func (ip IP) As4() [4]byte  { return ip.addr.As4() }
func (ip IP) As16() [16]byte { return ip.addr.As16() }

// CIDR owns packed prefix bytes plus a mask length. The packed buffer is
// exactly ceil(mask/8) bytes; trailing bits in the final octet are zero
// (§3 invariant).
type CIDR struct {
	Family Family
	Mask   uint8
	bytes  []byte // significant bytes only, length == ceil(Mask/8)
}

// NewCIDR packs a netip.Prefix into a CIDR, enforcing the trailing-zero
// invariant by masking before truncation.
func NewCIDR(p netip.Prefix) CIDR {
	p = p.Masked()
	mask := uint8(p.Bits())
	nbytes := (int(mask) + 7) / 8

	var full []byte
	if p.Addr().Is4() {
		a := p.Addr().As4()
		full = a[:]
	} else {
		a := p.Addr().As16()
		full = a[:]
	}

	fam := FamilyIPv4Unicast
	if p.Addr().Is6() {
		fam = FamilyIPv6Unicast
	}

	b := make([]byte, nbytes)
	copy(b, full[:nbytes])
	return CIDR{Family: fam, Mask: mask, bytes: b}
}

func NewCIDRBytes(fam Family, mask uint8, significant []byte) (CIDR, error) {
	nbytes := (int(mask) + 7) / 8
	if len(significant) != nbytes {
		return CIDR{}, fmt.Errorf("bgp: cidr mask %d requires %d bytes, got %d", mask, nbytes, len(significant))
	}
	b := make([]byte, nbytes)
	copy(b, significant)
	if nbytes > 0 {
		// zero the trailing bits within the final significant octet
		rem := mask % 8
		if rem != 0 {
			keep := byte(0xff << (8 - rem))
			b[nbytes-1] &= keep
		}
	}
	return CIDR{Family: fam, Mask: mask, bytes: b}, nil
}

func (c CIDR) Bytes() []byte { return c.bytes }

func (c CIDR) Prefix() netip.Prefix {
	full := make([]byte, 4)
	if c.Family.AFI == AFI_IPV6 {
		full = make([]byte, 16)
	}
	copy(full, c.bytes)
	var addr netip.Addr
	if len(full) == 4 {
		addr = netip.AddrFrom4([4]byte(full))
	} else {
		addr = netip.AddrFrom16([16]byte(full))
	}
	return netip.PrefixFrom(addr, int(c.Mask))
}

func (c CIDR) String() string { return c.Prefix().String() }

// RouteDistinguisher is the 8-octet VPN route distinguisher (RFC 4364).
type RouteDistinguisher [8]byte

func (rd RouteDistinguisher) String() string {
	typ := uint16(rd[0])<<8 | uint16(rd[1])
	switch typ {
	case 0:
		asn := uint16(rd[2])<<8 | uint16(rd[3])
		val := uint32(rd[4])<<24 | uint32(rd[5])<<16 | uint32(rd[6])<<8 | uint32(rd[7])
		return fmt.Sprintf("%d:%d", asn, val)
	case 1:
		ip := netip.AddrFrom4([4]byte{rd[2], rd[3], rd[4], rd[5]})
		val := uint16(rd[6])<<8 | uint16(rd[7])
		return fmt.Sprintf("%s:%d", ip, val)
	case 2:
		asn := uint32(rd[2])<<24 | uint32(rd[3])<<16 | uint32(rd[4])<<8 | uint32(rd[5])
		val := uint16(rd[6])<<8 | uint16(rd[7])
		return fmt.Sprintf("%d:%d", asn, val)
	default:
		return fmt.Sprintf("% x", [8]byte(rd))
	}
}

// Labels is a stack of MPLS label entries as carried in labeled-unicast
// and VPN NLRI. Each value is the raw 3-octet field (20-bit label, then
// 3 bits, then the bottom-of-stack bit in the low bit).
type Labels []uint32

const withdrawLabelCompat uint32 = 0x800000 // RFC 3107 compatibility withdraw label field (0x800000)

func (l Labels) IsWithdraw() bool {
	return len(l) == 1 && l[0] == withdrawLabelCompat
}

// PathInfo is the ADD-PATH (RFC 7911) path identifier prefixed to an
// NLRI when negotiated for its family.
type PathInfo struct {
	ID       uint32
	Present  bool
}

// EthernetTag is the EVPN Ethernet Tag ID (RFC 7432).
type EthernetTag uint32

// ESI is the EVPN Ethernet Segment Identifier (10 octets).
type ESI [10]byte

// MAC is a 6-octet Ethernet MAC address.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

func htons(h uint16) [2]byte { return [2]byte{byte(h >> 8), byte(h)} }
func htonl(h uint32) [4]byte {
	return [4]byte{byte(h >> 24), byte(h >> 16), byte(h >> 8), byte(h)}
}
func ntohs(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func ntohl(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
