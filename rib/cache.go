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
	"sync"

	"github.com/gaissmai/bart"

	"github.com/coreswitch/bgpspeak/bgp"
)

// Cache holds the last-announced state for one family, keyed by
// NLRI.Index() (§3: "Cache of last announced state per family+NLRI-
// index"). For the two unicast families it also keeps a bart.Table
// keyed by prefix, giving longest-match lookup for diagnostics and
// aggregation decisions that the plain index map can't answer.
type Cache struct {
	mu     sync.RWMutex
	family bgp.Family
	routes map[string]Route
	trie   *bart.Table[Route]
}

func NewCache(family bgp.Family) *Cache {
	c := &Cache{family: family, routes: map[string]Route{}}
	if family == bgp.FamilyIPv4Unicast || family == bgp.FamilyIPv6Unicast {
		c.trie = &bart.Table[Route]{}
	}
	return c
}

func (c *Cache) Family() bgp.Family { return c.family }

func (c *Cache) Get(index string) (Route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routes[index]
	return r, ok
}

func (c *Cache) Put(r Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[r.NLRI.Index()] = r
	if c.trie != nil {
		c.trie.Insert(r.NLRI.Prefix.Prefix(), r)
	}
}

func (c *Cache) Delete(index string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routes[index]
	if !ok {
		return
	}
	delete(c.routes, index)
	if c.trie != nil {
		c.trie.Delete(r.NLRI.Prefix.Prefix())
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes)
}

// All returns every cached route, order unspecified.
func (c *Cache) All() []Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Route, 0, len(c.routes))
	for _, r := range c.routes {
		out = append(out, r)
	}
	return out
}

// LongestMatch returns the most specific cached route covering addr, for
// families with a trie. It reports false for families without one.
func (c *Cache) LongestMatch(addr netip.Addr) (Route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.trie == nil {
		return Route{}, false
	}
	return c.trie.Lookup(addr)
}

// Reset clears the cache entirely (§3: used on peer reconnect without
// graceful restart, or on an operator-initiated RIB wipe).
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = map[string]Route{}
	if c.trie != nil {
		c.trie = &bart.Table[Route]{}
	}
}
