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
	"sync"

	"github.com/coreswitch/bgpspeak/bgp"
	"github.com/coreswitch/bgpspeak/internal/bgpmetrics"
)

// RIB is the outgoing RIB for one peer+family: a Cache of what's
// currently announced, plus a queue of Pending changes waiting to be
// packed into UPDATE messages (§3, §6 component 6).
type RIB struct {
	mu      sync.Mutex
	peer    string
	family  bgp.Family
	cache   *Cache
	pending *pending
}

func New(peer string, family bgp.Family) *RIB {
	return &RIB{peer: peer, family: family, cache: NewCache(family), pending: newPending()}
}

func (r *RIB) Family() bgp.Family { return r.family }
func (r *RIB) Cache() *Cache      { return r.cache }

// AddChange applies one producer Change (§8 property 4: idempotent
// announce — announcing the same NLRI with the same attributes twice
// only queues an UPDATE once; re-announcing with different attributes
// schedules a fresh UPDATE).
func (r *RIB) AddChange(nlri bgp.NLRI, attrs bgp.AttributeCollection, nexthop bgp.IP) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := nlri.Index()

	if nlri.Action == bgp.Withdraw {
		if _, ok := r.cache.Get(index); !ok {
			return // nothing to withdraw
		}
		r.cache.Delete(index)
		r.pending.addWithdraw(nlri)
		r.updateCacheGauge()
		return
	}

	if existing, ok := r.cache.Get(index); ok {
		if existing.Attrs.Index() == attrs.Index() && existing.Nexthop == nexthop {
			return // unchanged: §8 property 4
		}
	}

	r.cache.Put(Route{NLRI: nlri, Attrs: attrs, Nexthop: nexthop})
	r.pending.addAnnounce(nlri, attrs, nexthop)
	r.updateCacheGauge()
}

// RemoveAll queues a withdraw for every currently cached route and
// empties the cache (used on session teardown without graceful restart,
// or an operator-initiated wipe).
func (r *RIB) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, route := range r.cache.All() {
		w := route.NLRI
		w.Action = bgp.Withdraw
		r.pending.addWithdraw(w)
	}
	r.cache.Reset()
	r.updateCacheGauge()
}

// ReplayCache re-queues every cached route as an announce without
// touching the cache itself (§4.5: "replay Cache via RIB.updates(...)"
// on session re-establishment, and ROUTE-REFRESH's "RIB.resend").
func (r *RIB) ReplayCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, route := range r.cache.All() {
		r.pending.addAnnounce(route.NLRI, route.Attrs, route.Nexthop)
	}
}

// Reset discards pending changes and clears the cache without queuing
// withdrawals — used when the connection is gone and the peer's own
// forwarding state is assumed lost (no graceful restart in effect).
func (r *RIB) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Reset()
	r.pending.reset()
	r.updateCacheGauge()
}

// Drain packs every pending change into one or more UPDATE messages,
// none exceeding maxMsgSize, and clears the pending queue. addpath
// reports whether ADD-PATH is negotiated for r's family. grouped
// controls announcement packing (§4.4 updates(grouped)): withdrawals
// are always packed as densely as maxMsgSize allows regardless of
// grouped, but announcements only pack multiple NLRIs into one UPDATE
// when grouped is true AND r's family is IPv4-unicast; otherwise every
// announced NLRI gets its own UPDATE.
func (r *RIB) Drain(maxMsgSize int, grouped bool, addpath func(bgp.Family) bool) []bgp.Update {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending.empty() {
		return nil
	}

	var updates []bgp.Update

	if len(r.pending.withdraw) > 0 {
		updates = append(updates, r.splitWithdraw(r.pending.withdraw, maxMsgSize, addpath)...)
	}
	for _, g := range r.pending.announce {
		updates = append(updates, r.splitAnnounce(g, maxMsgSize, grouped, addpath)...)
	}

	r.pending.reset()
	bgpmetrics.PendingSize.WithLabelValues(r.peer, r.family.String()).Set(0)
	return updates
}

func (r *RIB) updateCacheGauge() {
	bgpmetrics.CacheSize.WithLabelValues(r.peer, r.family.String()).Set(float64(r.cache.Len()))
	bgpmetrics.PendingSize.WithLabelValues(r.peer, r.family.String()).Set(float64(len(r.pending.withdraw) + len(r.pending.announce)))
}

func (r *RIB) splitWithdraw(nlris []bgp.NLRI, maxMsgSize int, addpath func(bgp.Family) bool) []bgp.Update {
	build := func(batch []bgp.NLRI) bgp.Update {
		if r.family == bgp.FamilyIPv4Unicast {
			return bgp.Update{Withdrawn: batch}
		}
		return bgp.Update{Attrs: bgp.NewAttributeCollection(bgp.Attribute{
			Code:      bgp.AttrMPUnreach,
			MPUnreach: bgp.MPUnreach{Family: r.family, NLRI: batch},
		})}
	}
	return splitBatches(nlris, maxMsgSize, addpath, build)
}

func (r *RIB) splitAnnounce(g *pendingGroup, maxMsgSize int, grouped bool, addpath func(bgp.Family) bool) []bgp.Update {
	build := func(batch []bgp.NLRI) bgp.Update {
		if r.family == bgp.FamilyIPv4Unicast {
			attrs := g.attrs.With(bgp.Attribute{Code: bgp.AttrNextHop, NextHop: g.nexthop})
			return bgp.Update{Attrs: attrs, Announced: batch}
		}
		var nh []byte
		if g.nexthop.Is6() {
			b := g.nexthop.As16()
			nh = b[:]
		} else {
			b := g.nexthop.As4()
			nh = b[:]
		}
		attrs := g.attrs.With(bgp.Attribute{
			Code: bgp.AttrMPReach,
			MPReach: bgp.MPReach{Family: r.family, NextHop: nh, NLRI: batch},
		})
		return bgp.Update{Attrs: attrs}
	}
	if grouped && r.family == bgp.FamilyIPv4Unicast {
		return splitBatches(g.nlri, maxMsgSize, addpath, build)
	}
	return splitSingle(g.nlri, build)
}

// splitSingle emits one UPDATE per NLRI, used for announcements when
// grouping isn't requested or doesn't apply to the family (§4.4).
func splitSingle(nlris []bgp.NLRI, build func([]bgp.NLRI) bgp.Update) []bgp.Update {
	updates := make([]bgp.Update, 0, len(nlris))
	for _, n := range nlris {
		updates = append(updates, build([]bgp.NLRI{n}))
	}
	return updates
}

// splitBatches grows batch one NLRI at a time, flushing into a fresh
// UPDATE whenever adding the next one would exceed maxMsgSize. Mirrors
// the "pack NLRIs until the byte budget is hit, then start a new
// message" rule (§6, testable property 3: no emitted message exceeds
// Negotiated.msg_size).
func splitBatches(nlris []bgp.NLRI, maxMsgSize int, addpath func(bgp.Family) bool, build func([]bgp.NLRI) bgp.Update) []bgp.Update {
	var updates []bgp.Update
	var batch []bgp.NLRI

	flush := func() {
		if len(batch) == 0 {
			return
		}
		updates = append(updates, build(batch))
		batch = nil
	}

	for _, n := range nlris {
		trial := append(append([]bgp.NLRI{}, batch...), n)
		encoded := bgp.EncodeUpdate(build(trial), addpath)
		if len(encoded)+19 > maxMsgSize && len(batch) > 0 {
			flush()
			trial = []bgp.NLRI{n}
		}
		batch = trial
	}
	flush()

	return updates
}
