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
	"bytes"
	"sort"
)

// Path attribute type codes (§4.3).
type AttrCode uint8

const (
	AttrOrigin          AttrCode = 1
	AttrASPath          AttrCode = 2
	AttrNextHop         AttrCode = 3
	AttrMED             AttrCode = 4
	AttrLocalPref       AttrCode = 5
	AttrAtomicAggregate AttrCode = 6
	AttrAggregator      AttrCode = 7
	AttrCommunities     AttrCode = 8
	AttrOriginator      AttrCode = 9
	AttrClusterList     AttrCode = 10
	AttrMPReach         AttrCode = 14
	AttrMPUnreach       AttrCode = 15
	AttrExtCommunities  AttrCode = 16
	AttrAS4Path         AttrCode = 17
	AttrAS4Aggregator   AttrCode = 18
	AttrLargeCommunities AttrCode = 32
)

// Attribute flag bits (§3, §4.3).
const (
	FlagOptional       uint8 = 0x80
	FlagTransitive     uint8 = 0x40
	FlagPartial        uint8 = 0x20
	FlagExtendedLength uint8 = 0x10
)

// wellKnownMandatory lists the attributes that MUST be present on any
// UPDATE announcing an IPv4-unicast-reachable route (§4.3).
var wellKnownMandatory = map[AttrCode]bool{
	AttrOrigin:  true,
	AttrASPath:  true,
	AttrNextHop: true,
}

// OriginType is the ORIGIN(1) attribute value.
type OriginType uint8

const (
	OriginIGP        OriginType = 0
	OriginEGP        OriginType = 1
	OriginIncomplete OriginType = 2
)

// ASPathSegmentType (§4.3 AS_PATH).
type ASPathSegmentType uint8

const (
	ASSet           ASPathSegmentType = 1
	ASSequence      ASPathSegmentType = 2
	ASConfedSequence ASPathSegmentType = 3
	ASConfedSet     ASPathSegmentType = 4
)

type ASPathSegment struct {
	Type ASPathSegmentType
	ASNs []ASN
}

type Aggregator struct {
	ASN ASN
	IP  IP
}

type MPReach struct {
	Family  Family
	NextHop []byte // 4, 16, or 32 (global+link-local) bytes
	NLRI    []NLRI
}

type MPUnreach struct {
	Family Family
	NLRI   []NLRI
}

type ExtCommunity [8]byte
type LargeCommunity struct{ Global, Local1, Local2 uint32 }

// Attribute is the tagged union over the attribute code (§3, §9 design
// note: "model Attribute as a tagged union with one variant per RFC
// attribute"). Exactly one of the typed fields is meaningful, selected
// by Code; Opaque holds the verbatim value for codes this module
// doesn't have a typed decoder for. decodeAttributes applies §4.3's
// unknown-attribute policy before Opaque ever reaches the caller: an
// unknown optional non-transitive attribute is dropped before it is
// added to the collection, and an unknown optional transitive attribute
// is kept with PARTIAL set so it round-trips through Opaque on
// re-advertisement.
type Attribute struct {
	Code  AttrCode
	Flags uint8

	Origin          OriginType
	ASPath          []ASPathSegment
	NextHop         IP
	MED             uint32
	LocalPref       uint32
	AtomicAggregate bool
	Aggregator      Aggregator
	Communities     []uint32
	Originator      IP
	ClusterList     []uint32
	MPReach         MPReach
	MPUnreach       MPUnreach
	ExtCommunities  []ExtCommunity
	LargeCommunities []LargeCommunity

	Opaque []byte
}

func (a Attribute) mandatory() bool  { return wellKnownMandatory[a.Code] }
func (a Attribute) optional() bool   { return a.Flags&FlagOptional != 0 }
func (a Attribute) transitive() bool { return a.Flags&FlagTransitive != 0 }

// defaultFlags returns the canonical flag byte for a well-known
// attribute code; callers building optional attributes set flags
// explicitly.
func defaultFlags(code AttrCode) uint8 {
	switch code {
	case AttrOrigin, AttrASPath, AttrNextHop, AttrLocalPref, AttrAtomicAggregate:
		return FlagTransitive
	case AttrAggregator, AttrCommunities, AttrExtCommunities, AttrLargeCommunities, AttrAS4Path, AttrAS4Aggregator:
		return FlagOptional | FlagTransitive
	case AttrMED, AttrMPReach, AttrMPUnreach:
		return FlagOptional
	case AttrOriginator, AttrClusterList:
		return FlagOptional
	default:
		return FlagOptional
	}
}

// AttributeCollection maps attribute-code to Attribute (§3). Its Index()
// concatenates attributes in ascending code order so two semantically
// identical sets compare equal (§3 "canonical index() formed by
// concatenating attributes in ascending code order").
type AttributeCollection map[AttrCode]Attribute

func NewAttributeCollection(attrs ...Attribute) AttributeCollection {
	c := AttributeCollection{}
	for _, a := range attrs {
		if a.Flags == 0 {
			a.Flags = defaultFlags(a.Code)
		}
		c[a.Code] = a
	}
	return c
}

func (c AttributeCollection) sortedCodes() []AttrCode {
	codes := make([]AttrCode, 0, len(c))
	for code := range c {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Index returns the canonical ordering key for this attribute set (§3).
func (c AttributeCollection) Index() string {
	var b bytes.Buffer
	for _, code := range c.sortedCodes() {
		a := c[code]
		body := encodeAttributeValue(a)
		b.WriteByte(byte(code))
		b.WriteByte(a.Flags &^ FlagExtendedLength) // extended-length is an encoding detail, not semantic
		b.Write(body)
	}
	return b.String()
}

func (c AttributeCollection) Clone() AttributeCollection {
	n := make(AttributeCollection, len(c))
	for k, v := range c {
		n[k] = v
	}
	return n
}

func (c AttributeCollection) With(a Attribute) AttributeCollection {
	n := c.Clone()
	if a.Flags == 0 {
		a.Flags = defaultFlags(a.Code)
	}
	n[a.Code] = a
	return n
}
