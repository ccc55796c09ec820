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

package rib

import (
	"net/netip"
	"strconv"
	"testing"

	"github.com/coreswitch/bgpspeak/bgp"
)

func mustCIDR(s string) bgp.CIDR {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return bgp.NewCIDR(p)
}

func announce(prefix string) bgp.NLRI {
	return bgp.NLRI{Family: bgp.FamilyIPv4Unicast, Action: bgp.Announce, Prefix: mustCIDR(prefix)}
}

func withdraw(prefix string) bgp.NLRI {
	return bgp.NLRI{Family: bgp.FamilyIPv4Unicast, Action: bgp.Withdraw, Prefix: mustCIDR(prefix)}
}

func testAttrs() bgp.AttributeCollection {
	return bgp.NewAttributeCollection(bgp.Attribute{Code: bgp.AttrOrigin, Origin: bgp.OriginIGP})
}

func testNexthop() bgp.IP {
	a, _ := netip.ParseAddr("192.0.2.1")
	return bgp.IPFromAddr(a)
}

func TestAddChangeIdempotentAnnounce(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv4Unicast)
	n := announce("10.0.0.0/24")

	r.AddChange(n, testAttrs(), testNexthop())
	r.AddChange(n, testAttrs(), testNexthop())

	updates := r.Drain(4096, false, nil)
	if len(updates) != 1 {
		t.Fatalf("expected exactly one UPDATE from a repeated identical announce, got %d", len(updates))
	}
	if len(updates[0].Announced) != 1 {
		t.Fatalf("expected exactly one announced NLRI, got %d", len(updates[0].Announced))
	}
	if r.cache.Len() != 1 {
		t.Fatalf("expected cache to hold 1 route, got %d", r.cache.Len())
	}
}

func TestAddChangeWithdrawUnknownIsNoop(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv4Unicast)
	r.AddChange(withdraw("10.0.0.0/24"), nil, bgp.IP{})

	if updates := r.Drain(4096, false, nil); len(updates) != 0 {
		t.Fatalf("expected no UPDATE for withdrawing an unknown route, got %d", len(updates))
	}
}

func TestAddChangeWithdrawAfterAnnounce(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv4Unicast)
	n := announce("10.0.0.0/24")
	r.AddChange(n, testAttrs(), testNexthop())
	r.Drain(4096, false, nil)

	r.AddChange(withdraw("10.0.0.0/24"), nil, bgp.IP{})
	updates := r.Drain(4096, false, nil)
	if len(updates) != 1 || len(updates[0].Withdrawn) != 1 {
		t.Fatalf("expected one UPDATE carrying one withdrawn NLRI, got %+v", updates)
	}
	if r.cache.Len() != 0 {
		t.Fatalf("expected cache empty after withdraw, got %d", r.cache.Len())
	}
}

func TestReplaceAttributesRequeues(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv4Unicast)
	n := announce("10.0.0.0/24")
	r.AddChange(n, testAttrs(), testNexthop())
	r.Drain(4096, false, nil)

	changed := bgp.NewAttributeCollection(bgp.Attribute{Code: bgp.AttrOrigin, Origin: bgp.OriginEGP})
	r.AddChange(n, changed, testNexthop())

	updates := r.Drain(4096, false, nil)
	if len(updates) != 1 {
		t.Fatalf("expected an UPDATE for the attribute change, got %d", len(updates))
	}
}

func TestReplayCacheRequeuesWithoutMutatingCache(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv4Unicast)
	r.AddChange(announce("10.0.0.0/24"), testAttrs(), testNexthop())
	r.AddChange(announce("10.0.1.0/24"), testAttrs(), testNexthop())
	r.Drain(4096, false, nil)

	r.ReplayCache()
	updates := r.Drain(4096, true, nil)

	var total int
	for _, u := range updates {
		total += len(u.Announced)
	}
	if total != 2 {
		t.Fatalf("expected 2 announced NLRI replayed, got %d", total)
	}
	if r.cache.Len() != 2 {
		t.Fatalf("replay must not change cache size, got %d", r.cache.Len())
	}
}

func TestRemoveAllWithdrawsEverything(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv4Unicast)
	r.AddChange(announce("10.0.0.0/24"), testAttrs(), testNexthop())
	r.AddChange(announce("10.0.1.0/24"), testAttrs(), testNexthop())
	r.Drain(4096, false, nil)

	r.RemoveAll()
	updates := r.Drain(4096, false, nil)

	var withdrawn int
	for _, u := range updates {
		withdrawn += len(u.Withdrawn)
	}
	if withdrawn != 2 {
		t.Fatalf("expected 2 withdrawn NLRI, got %d", withdrawn)
	}
	if r.cache.Len() != 0 {
		t.Fatalf("expected empty cache after RemoveAll, got %d", r.cache.Len())
	}
}

func TestDrainGroupedPacksMultipleNLRIPerUpdate(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv4Unicast)
	for i := 0; i < 200; i++ {
		r.AddChange(announce("10.0."+strconv.Itoa(i)+".0/24"), testAttrs(), testNexthop())
	}

	updates := r.Drain(64, true, nil) // tiny budget forces many messages
	if len(updates) < 2 {
		t.Fatalf("expected message splitting with a tiny budget, got %d updates", len(updates))
	}
	var sawMultiNLRI bool
	for _, u := range updates {
		if len(u.Announced) > 1 {
			sawMultiNLRI = true
			if len(bgp.EncodeUpdate(u, nil))+19 > 64 {
				t.Fatalf("UPDATE with %d NLRI exceeds the 64-byte budget", len(u.Announced))
			}
		}
	}
	if !sawMultiNLRI {
		t.Fatalf("expected at least one grouped UPDATE to carry more than one NLRI")
	}
}

func TestDrainUngroupedEmitsOneNLRIPerUpdate(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv4Unicast)
	for i := 0; i < 5; i++ {
		r.AddChange(announce("10.0."+strconv.Itoa(i)+".0/24"), testAttrs(), testNexthop())
	}

	updates := r.Drain(4096, false, nil)
	if len(updates) != 5 {
		t.Fatalf("expected one UPDATE per NLRI when ungrouped, got %d updates", len(updates))
	}
	for _, u := range updates {
		if len(u.Announced) != 1 {
			t.Fatalf("expected exactly one announced NLRI per UPDATE, got %d", len(u.Announced))
		}
	}
}

func TestDrainIPv6AlwaysEmitsOneNLRIPerUpdateEvenWhenGrouped(t *testing.T) {
	r := New("peer1", bgp.FamilyIPv6Unicast)
	nh, _ := netip.ParseAddr("2001:db8::1")
	for i := 0; i < 5; i++ {
		p, _ := netip.ParsePrefix("2001:db8:" + strconv.Itoa(i) + "::/64")
		r.AddChange(bgp.NLRI{Family: bgp.FamilyIPv6Unicast, Action: bgp.Announce, Prefix: bgp.NewCIDR(p)},
			testAttrs(), bgp.IPFromAddr(nh))
	}

	updates := r.Drain(4096, true, nil)
	if len(updates) != 5 {
		t.Fatalf("expected one UPDATE per NLRI for a non-ipv4-unicast family, got %d updates", len(updates))
	}
}
