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

// Package bgpmetrics holds the prometheus collectors the session driver
// and RIB update through the lifetime of a peering.
package bgpmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgpspeak_session_state",
			Help: "Current FSM state (1 for the active state, 0 otherwise), per peer and state name.",
		},
		[]string{"peer", "state"},
	)

	StateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeak_state_transitions_total",
			Help: "FSM state transitions.",
		},
		[]string{"peer", "from", "to"},
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeak_messages_total",
			Help: "BGP messages sent or received, by type.",
		},
		[]string{"peer", "direction", "type"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeak_notifications_total",
			Help: "NOTIFICATION messages sent or received, by code/subcode.",
		},
		[]string{"peer", "direction", "code", "subcode"},
	)

	CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgpspeak_rib_cache_size",
			Help: "Routes currently held in the outgoing RIB cache, per peer and family.",
		},
		[]string{"peer", "family"},
	)

	PendingSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgpspeak_rib_pending_size",
			Help: "Routes currently queued for the next UPDATE batch, per peer and family.",
		},
		[]string{"peer", "family"},
	)

	MailboxDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeak_mailbox_dropped_total",
			Help: "Producer updates dropped because the peer mailbox was full.",
		},
		[]string{"peer"},
	)

	ConnectRetryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeak_connect_retry_total",
			Help: "TCP connect attempts made by the FSM.",
		},
		[]string{"peer"},
	)

	HoldTimerExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpspeak_hold_timer_expired_total",
			Help: "Sessions torn down because the hold timer expired.",
		},
		[]string{"peer"},
	)
)

// Register registers every collector above. Safe to call more than once
// per process only if each peer's metrics are registered against a
// dedicated registry; callers wiring multiple peers into the default
// registry should call this exactly once at startup.
func Register() {
	prometheus.MustRegister(
		SessionState,
		StateTransitionsTotal,
		MessagesTotal,
		NotificationsTotal,
		CacheSize,
		PendingSize,
		MailboxDroppedTotal,
		ConnectRetryTotal,
		HoldTimerExpiredTotal,
	)
}
