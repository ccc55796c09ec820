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

// Update is the parsed/constructed body of a BGP UPDATE message (§3, §4.3):
// withdrawn_nlris ∪ (attributes × announced_nlris), where non-IPv4-unicast
// families travel inside MP_REACH_NLRI/MP_UNREACH_NLRI instead of the
// classic withdrawn/NLRI sections.
type Update struct {
	Withdrawn []NLRI // IPv4-unicast withdrawals only; §4.3
	Attrs     AttributeCollection
	Announced []NLRI // IPv4-unicast announces only; §4.3

	// TreatAsWithdraw records attribute codes whose decode failed and
	// were handled per RFC 7606 (§4.3) instead of tearing the session
	// down. Populated only by DecodeUpdate.
	TreatAsWithdraw []AttrCode
}

func (u Update) Type() uint8 { return MsgUpdate }

// IsEndOfRIB reports whether this is the IPv4-unicast End-of-RIB marker:
// an otherwise-empty UPDATE (§3, §4.3).
func (u Update) IsEndOfRIB() bool {
	return len(u.Withdrawn) == 0 && len(u.Attrs) == 0 && len(u.Announced) == 0
}

// EndOfRIBIPv4 is the canonical empty IPv4-unicast End-of-RIB UPDATE.
func EndOfRIBIPv4() Update { return Update{} }

// EndOfRIBFamily builds the MP_UNREACH_NLRI-with-no-prefixes End-of-RIB
// marker for a non-IPv4-unicast family (§3, §4.4 "an empty MP_UNREACH is
// the EoR for the named family").
func EndOfRIBFamily(f Family) Update {
	return Update{Attrs: NewAttributeCollection(Attribute{
		Code:      AttrMPUnreach,
		MPUnreach: MPUnreach{Family: f},
	})}
}

// EncodeUpdate renders a complete UPDATE body. addpath reports whether
// ADD-PATH is negotiated for a given family (nil means never).
func EncodeUpdate(u Update, addpath func(Family) bool) []byte {
	ap := func(f Family) bool { return addpath != nil && addpath(f) }

	var withdrawnBytes []byte
	for _, n := range u.Withdrawn {
		withdrawnBytes = append(withdrawnBytes, packPrefix(n, ap(FamilyIPv4Unicast))...)
	}

	var attrBytes []byte
	for _, code := range u.Attrs.sortedCodes() {
		attrBytes = append(attrBytes, encodeAttribute(u.Attrs[code])...)
	}

	var nlriBytes []byte
	for _, n := range u.Announced {
		nlriBytes = append(nlriBytes, packPrefix(n, ap(FamilyIPv4Unicast))...)
	}

	out := make([]byte, 0, 4+len(withdrawnBytes)+len(attrBytes)+len(nlriBytes))
	wl := htons(uint16(len(withdrawnBytes)))
	out = append(out, wl[0], wl[1])
	out = append(out, withdrawnBytes...)

	al := htons(uint16(len(attrBytes)))
	out = append(out, al[0], al[1])
	out = append(out, attrBytes...)
	out = append(out, nlriBytes...)

	return out
}

// DecodeUpdate parses an UPDATE body per §4.3's decoding strategy
// ("parse lengths exactly; refuse to look past declared bounds").
// asn4 says whether AS_PATH carries 4-octet ASNs (from Negotiated);
// addpath says whether a given family carries path-ids.
//
// Well-known-mandatory violations (ORIGIN/AS_PATH/NEXT_HOP missing from
// an UPDATE that announces IPv4-unicast routes) are fatal per §4.3 and
// returned as *NotifyError(3,3). A decode failure on a single attribute
// is NOT fatal: it is recorded in TreatAsWithdraw and the announced
// NLRIs that would have depended on it are converted to withdrawals by
// the caller (session.Driver reports every NLRI of such an UPDATE as a
// Withdraw event; this function only surfaces which codes failed).
func DecodeUpdate(body []byte, asn4 bool, addpath func(Family) bool) (Update, error) {
	if len(body) < 2 {
		return Update{}, notify(3, 1, "UPDATE body truncated before withdrawn-routes length")
	}

	wlen := int(ntohs(body[0:2]))
	off := 2
	if off+wlen > len(body) {
		return Update{}, notify(3, 1, "withdrawn-routes length %d exceeds body", wlen)
	}
	withdrawnData := body[off : off+wlen]
	off += wlen

	apv4 := addpath != nil && addpath(FamilyIPv4Unicast)
	var withdrawn []NLRI
	wo := 0
	for wo < len(withdrawnData) {
		n, consumed, err := unpackPrefix(FamilyIPv4Unicast, withdrawnData[wo:], apv4)
		if err != nil {
			return Update{}, notify(3, 1, "%s", err)
		}
		n.Action = Withdraw
		withdrawn = append(withdrawn, n)
		wo += consumed
	}

	if off+2 > len(body) {
		return Update{}, notify(3, 1, "UPDATE body truncated before attribute length")
	}
	alen := int(ntohs(body[off : off+2]))
	off += 2
	if off+alen > len(body) {
		return Update{}, notify(3, 1, "attribute length %d exceeds body", alen)
	}
	attrData := body[off : off+alen]
	off += alen

	nlriData := body[off:]

	attrs, failed, err := decodeAttributes(attrData, asn4, addpath)
	if err != nil {
		return Update{}, err
	}

	var announced []NLRI
	ao := 0
	for ao < len(nlriData) {
		n, consumed, err := unpackPrefix(FamilyIPv4Unicast, nlriData[ao:], apv4)
		if err != nil {
			return Update{}, notify(3, 1, "%s", err)
		}
		n.Action = Announce
		announced = append(announced, n)
		ao += consumed
	}

	if len(announced) > 0 && len(failed) == 0 {
		for code := range wellKnownMandatory {
			if _, ok := attrs[code]; !ok {
				return Update{}, notify(3, 3, "missing well-known mandatory attribute %d", code)
			}
		}
	}

	return Update{Withdrawn: withdrawn, Attrs: attrs, Announced: announced, TreatAsWithdraw: failed}, nil
}

// ReachableFamilies returns every family this UPDATE announces routes
// for: IPv4-unicast if Announced is non-empty, plus whatever family
// MP_REACH_NLRI carries.
func (u Update) ReachableFamilies() []Family {
	var fams []Family
	if len(u.Announced) > 0 {
		fams = append(fams, FamilyIPv4Unicast)
	}
	if mp, ok := u.Attrs[AttrMPReach]; ok {
		fams = append(fams, mp.MPReach.Family)
	}
	return fams
}

// AllNLRI returns every NLRI this UPDATE carries (withdrawn, announced,
// and whatever MP_REACH/MP_UNREACH hold), tagged with its Action.
func (u Update) AllNLRI() []NLRI {
	out := append([]NLRI{}, u.Withdrawn...)
	out = append(out, u.Announced...)
	if mp, ok := u.Attrs[AttrMPReach]; ok {
		out = append(out, mp.MPReach.NLRI...)
	}
	if mu, ok := u.Attrs[AttrMPUnreach]; ok {
		out = append(out, mu.MPUnreach.NLRI...)
	}
	return out
}
