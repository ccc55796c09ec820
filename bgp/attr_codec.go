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

// encodeAttributeValue renders the value portion (not flags/code/length)
// of a, dispatching on its Code. This is also used by
// AttributeCollection.Index() to build the canonical comparison key.
func encodeAttributeValue(a Attribute) []byte {
	switch a.Code {
	case AttrOrigin:
		return []byte{byte(a.Origin)}

	case AttrASPath, AttrAS4Path:
		wide := a.Code == AttrAS4Path
		var out []byte
		for _, seg := range a.ASPath {
			out = append(out, byte(seg.Type), byte(len(seg.ASNs)))
			for _, asn := range seg.ASNs {
				if wide {
					w := htonl(uint32(asn))
					out = append(out, w[:]...)
				} else {
					w := htons(asn.Encode16())
					out = append(out, w[:]...)
				}
			}
		}
		return out

	case AttrNextHop:
		b := a.NextHop.As4()
		return b[:]

	case AttrMED, AttrLocalPref:
		v := a.MED
		if a.Code == AttrLocalPref {
			v = a.LocalPref
		}
		w := htonl(v)
		return w[:]

	case AttrAtomicAggregate:
		return nil

	case AttrAggregator, AttrAS4Aggregator:
		if a.Code == AttrAS4Aggregator {
			w := htonl(uint32(a.Aggregator.ASN))
			ip := a.Aggregator.IP.As4()
			return append(w[:], ip[:]...)
		}
		w := htons(a.Aggregator.ASN.Encode16())
		ip := a.Aggregator.IP.As4()
		return append(w[:], ip[:]...)

	case AttrCommunities:
		var out []byte
		for _, v := range a.Communities {
			w := htonl(v)
			out = append(out, w[:]...)
		}
		return out

	case AttrOriginator:
		b := a.Originator.As4()
		return b[:]

	case AttrClusterList:
		var out []byte
		for _, v := range a.ClusterList {
			w := htonl(v)
			out = append(out, w[:]...)
		}
		return out

	case AttrExtCommunities:
		var out []byte
		for _, v := range a.ExtCommunities {
			out = append(out, v[:]...)
		}
		return out

	case AttrLargeCommunities:
		var out []byte
		for _, v := range a.LargeCommunities {
			g, l1, l2 := htonl(v.Global), htonl(v.Local1), htonl(v.Local2)
			out = append(out, g[:]...)
			out = append(out, l1[:]...)
			out = append(out, l2[:]...)
		}
		return out

	case AttrMPReach:
		return encodeMPReach(a.MPReach)

	case AttrMPUnreach:
		return encodeMPUnreach(a.MPUnreach)

	default:
		return a.Opaque
	}
}

func encodeMPReach(r MPReach) []byte {
	afi := htons(uint16(r.Family.AFI))
	out := []byte{afi[0], afi[1], byte(r.Family.SAFI), byte(len(r.NextHop))}
	out = append(out, r.NextHop...)
	out = append(out, 0) // reserved / number of SNPAs, always 0 (§4.3)
	for _, n := range r.NLRI {
		out = append(out, packPrefix(n, n.Path.Present)...)
	}
	return out
}

func encodeMPUnreach(u MPUnreach) []byte {
	afi := htons(uint16(u.Family.AFI))
	out := []byte{afi[0], afi[1], byte(u.Family.SAFI)}
	for _, n := range u.NLRI {
		out = append(out, packPrefix(n, n.Path.Present)...)
	}
	return out
}

// encodeAttribute renders the full wire form (flags, code, length,
// value) of a, choosing 1- or 2-octet length encoding and setting
// EXTENDED_LENGTH when the value exceeds 255 bytes (§3 invariant:
// "length > 255 => EXTENDED_LENGTH set and 2-octet length").
func encodeAttribute(a Attribute) []byte {
	val := encodeAttributeValue(a)
	flags := a.Flags

	if len(val) > 255 {
		flags |= FlagExtendedLength
		l := htons(uint16(len(val)))
		out := []byte{flags, byte(a.Code), l[0], l[1]}
		return append(out, val...)
	}

	flags &^= FlagExtendedLength
	out := []byte{flags, byte(a.Code), byte(len(val))}
	return append(out, val...)
}

// attrErr is a sentinel wrapping a decode failure tagged with the
// attribute code that caused it, used to drive RFC 7606 treat-as-
// withdraw handling in update.go (§4.3).
type attrErr struct {
	Code AttrCode
	err  error
}

func (e *attrErr) Error() string { return fmt.Sprintf("attribute %d: %s", e.Code, e.err) }
func (e *attrErr) Unwrap() error { return e.err }

// decodeAttributes walks the path-attribute section of an UPDATE,
// returning the decoded set plus, separately, the codes whose specific
// decode failed (for RFC 7606 treat-as-withdraw telemetry, §4.3). A
// structural failure (can't even find the next attribute boundary) is
// fatal and returned as a *NotifyError per §4.3 "Length inconsistency".
func decodeAttributes(data []byte, asn4 bool, addpath func(Family) bool) (AttributeCollection, []AttrCode, error) {
	attrs := AttributeCollection{}
	var failed []AttrCode

	off := 0
	for off < len(data) {
		if off+2 > len(data) {
			return nil, nil, notify(3, 5, "attribute header truncated")
		}
		flags := data[off]
		code := AttrCode(data[off+1])
		off += 2

		var length int
		if flags&FlagExtendedLength != 0 {
			if off+2 > len(data) {
				return nil, nil, notify(3, 5, "extended attribute length truncated")
			}
			length = int(ntohs(data[off : off+2]))
			off += 2
		} else {
			if off+1 > len(data) {
				return nil, nil, notify(3, 5, "attribute length truncated")
			}
			length = int(data[off])
			off++
		}

		if off+length > len(data) {
			return nil, nil, notify(3, 5, "attribute %d length %d exceeds remaining %d", code, length, len(data)-off)
		}
		val := data[off : off+length]
		off += length

		if isKnownAttrCode(code) {
			want := defaultFlags(code) &^ FlagPartial
			got := flags &^ (FlagExtendedLength | FlagPartial)
			if got != want {
				return nil, nil, notify(3, 4, "attribute %d flags %#x do not match expected %#x", code, flags, want)
			}
		}

		a, err := decodeAttributeValue(code, flags, val, asn4, addpath)
		if err != nil {
			failed = append(failed, code)
			continue
		}

		if !isKnownAttrCode(code) {
			if a.optional() && !a.transitive() {
				continue // unknown optional non-transitive: drop silently (§4.3)
			}
			if a.optional() && a.transitive() {
				a.Flags |= FlagPartial // unknown optional transitive: keep, mark PARTIAL for re-advertisement (§4.3)
			}
		}

		if _, dup := attrs[code]; dup {
			continue // keep first, matching the capability dedup policy in §4.2
		}
		attrs[code] = a
	}

	return attrs, failed, nil
}

// isKnownAttrCode reports whether code is one this module has a typed
// decoder for. Flag-mismatch validation (NOTIFICATION 3,4) only applies
// to known codes, since an unrecognized code has no canonical flag byte
// to compare against; the unknown-attribute drop/PARTIAL split (§4.3)
// only applies to unknown codes, since well-known attributes are never
// silently dropped.
func isKnownAttrCode(code AttrCode) bool {
	switch code {
	case AttrOrigin, AttrASPath, AttrNextHop, AttrMED, AttrLocalPref, AttrAtomicAggregate,
		AttrAggregator, AttrCommunities, AttrOriginator, AttrClusterList, AttrMPReach, AttrMPUnreach,
		AttrExtCommunities, AttrAS4Path, AttrAS4Aggregator, AttrLargeCommunities:
		return true
	default:
		return false
	}
}

func decodeAttributeValue(code AttrCode, flags uint8, val []byte, asn4 bool, addpath func(Family) bool) (Attribute, error) {
	a := Attribute{Code: code, Flags: flags}

	switch code {
	case AttrOrigin:
		if len(val) != 1 {
			return a, fmt.Errorf("ORIGIN must be 1 byte, got %d", len(val))
		}
		a.Origin = OriginType(val[0])

	case AttrASPath, AttrAS4Path:
		wide := code == AttrAS4Path || asn4
		segs, err := decodeASPath(val, wide)
		if err != nil {
			return a, err
		}
		a.ASPath = segs

	case AttrNextHop:
		if len(val) != 4 {
			return a, fmt.Errorf("NEXT_HOP must be 4 bytes, got %d", len(val))
		}
		a.NextHop = IPFromAddr(netip.AddrFrom4([4]byte(val)))

	case AttrMED:
		if len(val) != 4 {
			return a, fmt.Errorf("MULTI_EXIT_DISC must be 4 bytes, got %d", len(val))
		}
		a.MED = ntohl(val)

	case AttrLocalPref:
		if len(val) != 4 {
			return a, fmt.Errorf("LOCAL_PREF must be 4 bytes, got %d", len(val))
		}
		a.LocalPref = ntohl(val)

	case AttrAtomicAggregate:
		if len(val) != 0 {
			return a, fmt.Errorf("ATOMIC_AGGREGATE must be empty, got %d bytes", len(val))
		}
		a.AtomicAggregate = true

	case AttrAggregator, AttrAS4Aggregator:
		wide := code == AttrAS4Aggregator
		want := 6
		if wide {
			want = 8
		}
		if len(val) != want {
			return a, fmt.Errorf("AGGREGATOR must be %d bytes, got %d", want, len(val))
		}
		if wide {
			a.Aggregator = Aggregator{ASN: ASN(ntohl(val[0:4])), IP: IPFromAddr(netip.AddrFrom4([4]byte(val[4:8])))}
		} else {
			a.Aggregator = Aggregator{ASN: ASN(ntohs(val[0:2])), IP: IPFromAddr(netip.AddrFrom4([4]byte(val[2:6])))}
		}

	case AttrCommunities:
		if len(val)%4 != 0 {
			return a, fmt.Errorf("COMMUNITIES length %d not a multiple of 4", len(val))
		}
		for i := 0; i < len(val); i += 4 {
			a.Communities = append(a.Communities, ntohl(val[i:i+4]))
		}

	case AttrOriginator:
		if len(val) != 4 {
			return a, fmt.Errorf("ORIGINATOR_ID must be 4 bytes, got %d", len(val))
		}
		a.Originator = IPFromAddr(netip.AddrFrom4([4]byte(val)))

	case AttrClusterList:
		if len(val)%4 != 0 {
			return a, fmt.Errorf("CLUSTER_LIST length %d not a multiple of 4", len(val))
		}
		for i := 0; i < len(val); i += 4 {
			a.ClusterList = append(a.ClusterList, ntohl(val[i:i+4]))
		}

	case AttrExtCommunities:
		if len(val)%8 != 0 {
			return a, fmt.Errorf("EXTENDED_COMMUNITIES length %d not a multiple of 8", len(val))
		}
		for i := 0; i < len(val); i += 8 {
			var ec ExtCommunity
			copy(ec[:], val[i:i+8])
			a.ExtCommunities = append(a.ExtCommunities, ec)
		}

	case AttrLargeCommunities:
		if len(val)%12 != 0 {
			return a, fmt.Errorf("LARGE_COMMUNITY length %d not a multiple of 12", len(val))
		}
		for i := 0; i < len(val); i += 12 {
			a.LargeCommunities = append(a.LargeCommunities, LargeCommunity{
				Global: ntohl(val[i : i+4]), Local1: ntohl(val[i+4 : i+8]), Local2: ntohl(val[i+8 : i+12]),
			})
		}

	case AttrMPReach:
		mp, err := decodeMPReach(val, addpath)
		if err != nil {
			return a, err
		}
		a.MPReach = mp

	case AttrMPUnreach:
		mu, err := decodeMPUnreach(val, addpath)
		if err != nil {
			return a, err
		}
		a.MPUnreach = mu

	default:
		a.Opaque = append([]byte{}, val...)
	}

	return a, nil
}

func decodeASPath(val []byte, wide bool) ([]ASPathSegment, error) {
	width := 2
	if wide {
		width = 4
	}
	var segs []ASPathSegment
	off := 0
	for off < len(val) {
		if off+2 > len(val) {
			return nil, fmt.Errorf("AS_PATH segment header truncated")
		}
		segType := ASPathSegmentType(val[off])
		count := int(val[off+1])
		off += 2
		need := count * width
		if off+need > len(val) {
			return nil, fmt.Errorf("AS_PATH segment count %d exceeds remaining %d bytes", count, len(val)-off)
		}
		seg := ASPathSegment{Type: segType}
		for i := 0; i < count; i++ {
			start := off + i*width
			if wide {
				seg.ASNs = append(seg.ASNs, ASN(ntohl(val[start:start+4])))
			} else {
				seg.ASNs = append(seg.ASNs, ASN(ntohs(val[start:start+2])))
			}
		}
		segs = append(segs, seg)
		off += need
	}
	return segs, nil
}

func decodeMPReach(val []byte, addpath func(Family) bool) (MPReach, error) {
	if len(val) < 5 {
		return MPReach{}, fmt.Errorf("MP_REACH_NLRI truncated")
	}
	fam := Family{AFI: AFI(ntohs(val[0:2])), SAFI: SAFI(val[2])}
	nhLen := int(val[3])
	off := 4
	if off+nhLen > len(val) {
		return MPReach{}, fmt.Errorf("MP_REACH_NLRI next-hop truncated")
	}
	nh := append([]byte{}, val[off:off+nhLen]...)
	off += nhLen

	if off >= len(val) {
		return MPReach{}, fmt.Errorf("MP_REACH_NLRI missing SNPA count")
	}
	off++ // reserved / SNPA count, always 0 on the wire we produce or accept

	ap := addpath != nil && addpath(fam)
	var nlris []NLRI
	for off < len(val) {
		n, consumed, err := unpackPrefix(fam, val[off:], ap)
		if err != nil {
			return MPReach{}, err
		}
		n.Action = Announce
		nlris = append(nlris, n)
		off += consumed
	}

	return MPReach{Family: fam, NextHop: nh, NLRI: nlris}, nil
}

func decodeMPUnreach(val []byte, addpath func(Family) bool) (MPUnreach, error) {
	if len(val) < 3 {
		return MPUnreach{}, fmt.Errorf("MP_UNREACH_NLRI truncated")
	}
	fam := Family{AFI: AFI(ntohs(val[0:2])), SAFI: SAFI(val[2])}
	off := 3

	ap := addpath != nil && addpath(fam)
	var nlris []NLRI
	for off < len(val) {
		n, consumed, err := unpackPrefix(fam, val[off:], ap)
		if err != nil {
			return MPUnreach{}, err
		}
		n.Action = Withdraw
		nlris = append(nlris, n)
		off += consumed
	}

	return MPUnreach{Family: fam, NLRI: nlris}, nil
}
