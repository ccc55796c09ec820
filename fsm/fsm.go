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

import (
	"time"

	"github.com/coreswitch/bgpspeak/bgp"
)

// EventKind distinguishes the inputs the FSM reacts to (§4.5).
type EventKind uint8

const (
	EvManualStart EventKind = iota
	EvTCPEstablished
	EvTCPRefused
	EvConnectRetryExpire
	EvOpenReceived
	EvKeepaliveReceived
	EvNotificationReceived
	EvUpdateReceived
	EvRouteRefreshReceived
	EvHoldTimerExpired
	EvKeepaliveTimerFired
	EvStop
)

// Event is one input to Machine.Step.
type Event struct {
	Kind         EventKind
	Open         bgp.Open
	Notification bgp.Notification
	Update       bgp.Update
	RouteRefresh bgp.RouteRefresh

	// EvStop only.
	ShutdownCommunication string
	Administrative        bool // ESTABLISHED: true => NOTIFICATION 6,4 (admin reset) instead of 6,0, or 6,2 with a ShutdownCommunication
}

// ActionKind distinguishes what the driver must do in response to Step.
type ActionKind uint8

const (
	ActConnect ActionKind = iota
	ActListen
	ActSendMessage
	ActStartConnectRetryTimer
	ActStopConnectRetryTimer
	ActStartHoldTimer
	ActStopHoldTimer
	ActStartKeepaliveTimer
	ActStopKeepaliveTimer
	ActSessionUp
	ActSessionDown
	ActReplayCache
	ActDeliverUpdate
	ActResendRefresh
	ActCloseConnection
)

// Action is one output of Machine.Step for the driver to execute.
type Action struct {
	Kind    ActionKind
	Message bgp.Message
	Delay   time.Duration

	Negotiated      bgp.Negotiated
	Update          bgp.Update
	Family          bgp.Family
	Enhanced        bool
	Reason          string
	Notification    bgp.Notification
	HasNotification bool
}

// Machine is the pure peer FSM (§4.5): it owns state, the two OPENs, the
// computed Negotiated view, and the connect-retry back-off sequence. It
// never touches a socket; the session driver executes the Actions it
// returns.
type Machine struct {
	state State

	LocalOpen     bgp.Open
	DefaultFamily bgp.Family

	remoteOpen bgp.Open
	negotiated bgp.Negotiated

	retry *backoff

	restarting bool // our own OPEN carried GRACEFUL_RESTART "R" bit set
}

func New(localOpen bgp.Open, defaultFamily bgp.Family) *Machine {
	return &Machine{
		state:         Idle,
		LocalOpen:     localOpen,
		DefaultFamily: defaultFamily,
		retry:         newBackoff(DefaultConnectRetry),
	}
}

func (m *Machine) State() State               { return m.state }
func (m *Machine) Negotiated() bgp.Negotiated { return m.negotiated }

func (m *Machine) transition(to State) {
	m.state = to
}

// Step advances the machine by one event, returning the actions the
// driver must perform. It does not block and does not do I/O.
func (m *Machine) Step(ev Event) []Action {
	switch m.state {
	case Idle:
		return m.stepIdle(ev)
	case Connect:
		return m.stepConnect(ev)
	case Active:
		return m.stepActive(ev)
	case OpenSent:
		return m.stepOpenSent(ev)
	case OpenConfirm:
		return m.stepOpenConfirm(ev)
	case Established:
		return m.stepEstablished(ev)
	default:
		return nil
	}
}

func (m *Machine) stepIdle(ev Event) []Action {
	if ev.Kind != EvManualStart {
		return nil
	}
	m.transition(Connect)
	return []Action{
		{Kind: ActConnect},
		{Kind: ActStartConnectRetryTimer, Delay: m.retry.next()},
	}
}

func (m *Machine) stepConnect(ev Event) []Action {
	switch ev.Kind {
	case EvTCPEstablished:
		m.transition(OpenSent)
		m.retry.reset()
		return []Action{
			{Kind: ActStopConnectRetryTimer},
			{Kind: ActSendMessage, Message: m.LocalOpen},
			{Kind: ActStartHoldTimer, Delay: defaultOpenSentHold},
		}
	case EvTCPRefused:
		m.transition(Active)
		return []Action{{Kind: ActListen}}
	case EvConnectRetryExpire:
		return []Action{
			{Kind: ActConnect},
			{Kind: ActStartConnectRetryTimer, Delay: m.retry.next()},
		}
	case EvStop:
		m.transition(Idle)
		return []Action{{Kind: ActStopConnectRetryTimer}, {Kind: ActCloseConnection}}
	}
	return nil
}

func (m *Machine) stepActive(ev Event) []Action {
	switch ev.Kind {
	case EvTCPEstablished:
		m.transition(OpenSent)
		m.retry.reset()
		return []Action{
			{Kind: ActSendMessage, Message: m.LocalOpen},
			{Kind: ActStartHoldTimer, Delay: defaultOpenSentHold},
		}
	case EvStop:
		m.transition(Idle)
		return []Action{{Kind: ActCloseConnection}}
	}
	return nil
}

func (m *Machine) stepOpenSent(ev Event) []Action {
	switch ev.Kind {
	case EvOpenReceived:
		m.remoteOpen = ev.Open
		neg, err := bgp.Negotiate(m.LocalOpen, m.remoteOpen, m.DefaultFamily)
		if err != nil {
			m.transition(Idle)
			return []Action{
				{Kind: ActSendMessage, Message: bgp.NotificationFromError(err)},
				{Kind: ActCloseConnection},
			}
		}
		m.negotiated = neg
		m.transition(OpenConfirm)
		hold := clampHoldTime(neg.HoldTime)
		ka := keepaliveInterval(hold)
		actions := []Action{
			{Kind: ActSendMessage, Message: bgp.Keepalive{}},
			{Kind: ActStartHoldTimer, Delay: hold},
		}
		if ka > 0 {
			actions = append(actions, Action{Kind: ActStartKeepaliveTimer, Delay: ka})
		}
		return actions
	case EvHoldTimerExpired:
		m.transition(Idle)
		return []Action{
			{Kind: ActSendMessage, Message: bgp.Notification{Code: 4, Subcode: 0}},
			{Kind: ActCloseConnection},
		}
	case EvNotificationReceived:
		m.transition(Idle)
		return []Action{{Kind: ActCloseConnection, Reason: "peer sent NOTIFICATION in OPENSENT"}}
	case EvStop:
		m.transition(Idle)
		return []Action{
			{Kind: ActSendMessage, Message: bgp.Notification{Code: 6, Subcode: bgp.CeaseAdminShutdown}},
			{Kind: ActCloseConnection},
		}
	}
	return nil
}

func (m *Machine) stepOpenConfirm(ev Event) []Action {
	switch ev.Kind {
	case EvKeepaliveReceived:
		m.transition(Established)
		return []Action{
			{Kind: ActSessionUp, Negotiated: m.negotiated},
			{Kind: ActReplayCache},
		}
	case EvNotificationReceived:
		m.transition(Idle)
		return []Action{{Kind: ActCloseConnection, Reason: "peer sent NOTIFICATION in OPENCONFIRM"}}
	case EvHoldTimerExpired:
		m.transition(Idle)
		return []Action{
			{Kind: ActSendMessage, Message: bgp.Notification{Code: 4, Subcode: 0}},
			{Kind: ActCloseConnection},
		}
	case EvStop:
		m.transition(Idle)
		return []Action{
			{Kind: ActSendMessage, Message: bgp.Notification{Code: 6, Subcode: bgp.CeaseAdminShutdown}},
			{Kind: ActCloseConnection},
		}
	}
	return nil
}

func (m *Machine) stepEstablished(ev Event) []Action {
	switch ev.Kind {
	case EvKeepaliveTimerFired:
		return []Action{{Kind: ActSendMessage, Message: bgp.Keepalive{}}}
	case EvKeepaliveReceived, EvUpdateReceived:
		hold := clampHoldTime(m.negotiated.HoldTime)
		actions := []Action{{Kind: ActStartHoldTimer, Delay: hold}}
		if ev.Kind == EvUpdateReceived {
			actions = append(actions, Action{Kind: ActDeliverUpdate, Update: ev.Update})
		}
		return actions
	case EvRouteRefreshReceived:
		hold := clampHoldTime(m.negotiated.HoldTime)
		return []Action{
			{Kind: ActStartHoldTimer, Delay: hold},
			{Kind: ActResendRefresh, Family: ev.RouteRefresh.Family, Enhanced: m.negotiated.Refresh == bgp.RefreshEnhanced},
		}
	case EvHoldTimerExpired:
		m.transition(Idle)
		return []Action{
			{Kind: ActSessionDown, Reason: "hold timer expired"},
			{Kind: ActSendMessage, Message: bgp.Notification{Code: 4, Subcode: 0}},
			{Kind: ActCloseConnection},
		}
	case EvNotificationReceived:
		m.transition(Idle)
		return []Action{
			{Kind: ActSessionDown, Reason: "peer sent NOTIFICATION", Notification: ev.Notification, HasNotification: true},
			{Kind: ActCloseConnection},
		}
	case EvStop:
		n := bgp.Notification{Code: 6, Subcode: 0}
		if ev.ShutdownCommunication != "" {
			n.Subcode = bgp.CeaseAdminShutdown
		}
		if ev.Administrative {
			n.Subcode = bgp.CeaseAdminReset
		}
		if ev.ShutdownCommunication != "" {
			msg := []byte(ev.ShutdownCommunication)
			if len(msg) > 255 {
				msg = msg[:255]
			}
			n.Data = append([]byte{byte(len(msg))}, msg...)
		}
		m.transition(Idle)
		return []Action{
			{Kind: ActSessionDown, Reason: "local stop"},
			{Kind: ActSendMessage, Message: n},
			{Kind: ActCloseConnection},
		}
	}
	return nil
}
