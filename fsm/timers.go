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

package fsm

import "time"

const (
	DefaultConnectRetry = 120 * time.Second
	maxConnectBackoff   = 512 * time.Second
	minHoldTime         = 3 * time.Second
	defaultOpenSentHold = 4 * time.Minute
)

// backoff tracks the ConnectRetry back-off across consecutive failed
// connection attempts (§4.5: "back-off with cap (1,2,4,...,512s) across
// consecutive failures to avoid tight reconnect loops").
type backoff struct {
	base    time.Duration
	current time.Duration
}

func newBackoff(base time.Duration) *backoff {
	return &backoff{base: base, current: 0}
}

// next returns the delay before the next connect attempt and advances
// the sequence. The very first call returns 1s; each subsequent call
// doubles up to maxConnectBackoff, after which it holds there.
func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = 1 * time.Second
	} else if b.current < maxConnectBackoff {
		b.current *= 2
		if b.current > maxConnectBackoff {
			b.current = maxConnectBackoff
		}
	}
	return b.current
}

func (b *backoff) reset() { b.current = 0 }

// clampHoldTime clamps a negotiated hold time to the §4.5.1 rule: 0 disables
// it outright, otherwise it must be at least 3s.
func clampHoldTime(h uint16) time.Duration {
	if h == 0 {
		return 0
	}
	d := time.Duration(h) * time.Second
	if d < minHoldTime {
		d = minHoldTime
	}
	return d
}

// keepaliveInterval is HoldTime/3, per §4.5.
func keepaliveInterval(hold time.Duration) time.Duration {
	if hold == 0 {
		return 0
	}
	return hold / 3
}
