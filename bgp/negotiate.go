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

// RefreshMode is the negotiated route-refresh capability level (§3).
type RefreshMode uint8

const (
	RefreshAbsent RefreshMode = iota
	RefreshNormal
	RefreshEnhanced
)

// AddPathDirections is the per-family send/receive outcome of ADD-PATH
// negotiation (§3 Negotiated.addpath).
type AddPathDirections struct {
	Send bool
	Recv bool
}

// Negotiated is the immutable, session-scoped view derived once both
// OPENs are exchanged (§3, §4.5.1). It is created in OPENSENT when the
// peer's OPEN is accepted and dies with the session.
type Negotiated struct {
	Families      map[Family]bool
	ASN4          bool
	AddPath       map[Family]AddPathDirections
	HoldTime      uint16
	MaxMessageSize int
	Refresh       RefreshMode
	Multisession  bool
	MultisessionLegacy bool

	PeerAS   ASN
	LocalAS  ASN
	RouterID IP
}

func (n Negotiated) SupportsFamily(f Family) bool { return n.Families[f] }

// Negotiate computes the Negotiated view by intersecting a local and a
// remote OPEN (§4.5.1). defaultFamily is the family assumed enabled even
// without an explicit MULTIPROTOCOL capability (classic IPv4 unicast
// BGP speakers never advertise it).
func Negotiate(local, remote Open, defaultFamily Family) (Negotiated, error) {
	n := Negotiated{
		Families: map[Family]bool{},
		AddPath:  map[Family]AddPathDirections{},
		PeerAS:   remote.EffectiveASN(),
		LocalAS:  local.EffectiveASN(),
		RouterID: remote.RouterID,
	}

	if !remote.RouterID.IsValid() || remote.RouterID.As4() == [4]byte{} {
		return n, notify(2, 3, "peer router-id is 0.0.0.0")
	}

	localFam := familySet(local.Families(), defaultFamily)
	remoteFam := familySet(remote.Families(), defaultFamily)

	for f := range localFam {
		if remoteFam[f] {
			n.Families[f] = true
		}
	}

	_, localASN4 := local.ASN4()
	_, remoteASN4 := remote.ASN4()
	n.ASN4 = localASN4 && remoteASN4

	localRR := hasCapability(local, CapRouteRefresh)
	remoteRR := hasCapability(remote, CapRouteRefresh)
	localERR := hasCapability(local, CapEnhancedRouteRefresh)
	remoteERR := hasCapability(remote, CapEnhancedRouteRefresh)

	switch {
	case localERR && remoteERR:
		n.Refresh = RefreshEnhanced
	case localRR && remoteRR:
		n.Refresh = RefreshNormal
	default:
		n.Refresh = RefreshAbsent
	}

	if hasCapability(local, CapExtendedMessage) && hasCapability(remote, CapExtendedMessage) {
		n.MaxMessageSize = ExtendedMaxMsg
	} else {
		n.MaxMessageSize = DefaultMaxMsg
	}

	n.Multisession = hasCapability(local, CapMultisession) && hasCapability(remote, CapMultisession)
	n.MultisessionLegacy = hasCapability(local, CapMultisessionLegacy) && hasCapability(remote, CapMultisessionLegacy)

	localAP := addPathMap(local)
	remoteAP := addPathMap(remote)
	for f := range localFam {
		lf := localAP[f]
		rf := remoteAP[f]
		n.AddPath[f] = AddPathDirections{
			Send: lf.canSend && rf.canRecv,
			Recv: lf.canRecv && rf.canSend,
		}
	}

	if local.HoldTime < remote.HoldTime {
		n.HoldTime = local.HoldTime
	} else {
		n.HoldTime = remote.HoldTime
	}
	if n.HoldTime != 0 && n.HoldTime < 3 {
		return n, notify(2, 6, "unacceptable hold time %d", n.HoldTime)
	}

	if len(n.Families) == 0 && !n.Multisession {
		return n, notify(2, 7, "no common address family negotiated")
	}

	return n, nil
}

func familySet(fams []Family, fallback Family) map[Family]bool {
	if len(fams) == 0 {
		return map[Family]bool{fallback: true}
	}
	s := map[Family]bool{}
	for _, f := range fams {
		s[f] = true
	}
	return s
}

func hasCapability(o Open, code uint8) bool {
	for _, c := range o.Capabilities {
		if c.Code == code {
			return true
		}
	}
	return false
}

type addPathFlags struct{ canSend, canRecv bool }

func addPathMap(o Open) map[Family]addPathFlags {
	m := map[Family]addPathFlags{}
	for _, c := range o.Capabilities {
		if c.Code != CapAddPath {
			continue
		}
		for _, af := range c.AddPath {
			m[af.Family] = addPathFlags{
				canRecv: af.Dir&AddPathReceive != 0,
				canSend: af.Dir&AddPathSend != 0,
			}
		}
	}
	return m
}

// CheckCollision implements the §4.5.1 router-id collision rule: if the
// peer's ASN equals ours and its router-id equals ours, the OPEN is
// rejected.
func CheckCollision(localAS, peerAS ASN, localID, peerID IP) error {
	if peerAS == localAS && peerID.As4() == localID.As4() {
		return notify(2, 3, "router-id collision with local AS/router-id")
	}
	return nil
}
