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

package session

import (
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/coreswitch/bgpspeak/bgp"
	"github.com/coreswitch/bgpspeak/event"
	"github.com/coreswitch/bgpspeak/fsm"
	"github.com/coreswitch/bgpspeak/internal/blog"
	"github.com/coreswitch/bgpspeak/internal/bgpmetrics"
	"github.com/coreswitch/bgpspeak/rib"
)

// NeighborConfig is the single input the core accepts per peer (§6.1).
type NeighborConfig struct {
	PeerAddress  string
	LocalAddress string
	PeerAS       bgp.ASN
	LocalAS      bgp.ASN
	RouterID     bgp.IP
	HoldTime     uint16

	Families        []bgp.Family
	AddPathFamilies []bgp.Family

	GracefulRestartTime uint16

	ASN4                  bool
	RouteRefresh          bool
	EnhancedRouteRefresh  bool
	ExtendedMessage       bool
	Multisession          bool
	Operational           bool

	Auth AuthConfig

	Passive      bool
	ConnectRetry time.Duration

	InitialRoutes []ChangeRequest

	// CapturePackets attaches the raw wire bytes of every Sent/Received
	// event to the bus; TraceFilePath, if set, additionally persists a
	// compressed copy of every PDU to disk regardless of CapturePackets.
	CapturePackets bool
	TraceFilePath  string

	// GroupedUpdates controls whether outgoing IPv4-unicast announcements
	// pack multiple NLRIs per UPDATE (true) or emit one NLRI per UPDATE
	// (false, the zero value) — §4.4 updates(grouped). Other families
	// always emit one NLRI per UPDATE regardless of this setting.
	GroupedUpdates bool
}

func (c NeighborConfig) defaultFamily() bgp.Family {
	if len(c.Families) > 0 {
		return c.Families[0]
	}
	return bgp.FamilyIPv4Unicast
}

func (c NeighborConfig) localOpen() bgp.Open {
	var caps []bgp.Capability
	if len(c.Families) > 1 || (len(c.Families) == 1 && c.Families[0] != bgp.FamilyIPv4Unicast) {
		caps = append(caps, bgp.Capability{Code: bgp.CapMultiprotocol, MPFamilies: c.Families})
	}
	if c.RouteRefresh {
		caps = append(caps, bgp.Capability{Code: bgp.CapRouteRefresh})
	}
	if c.EnhancedRouteRefresh {
		caps = append(caps, bgp.Capability{Code: bgp.CapEnhancedRouteRefresh})
	}
	if c.ExtendedMessage {
		caps = append(caps, bgp.Capability{Code: bgp.CapExtendedMessage})
	}
	if len(c.AddPathFamilies) > 0 {
		var afs []bgp.AddPathFamily
		for _, f := range c.AddPathFamilies {
			afs = append(afs, bgp.AddPathFamily{Family: f, Dir: bgp.AddPathSend | bgp.AddPathReceive})
		}
		caps = append(caps, bgp.Capability{Code: bgp.CapAddPath, AddPath: afs})
	}
	if c.GracefulRestartTime > 0 {
		var grf []bgp.GRFamily
		for _, f := range c.Families {
			grf = append(grf, bgp.GRFamily{Family: f, Forwarding: true})
		}
		caps = append(caps, bgp.Capability{Code: bgp.CapGracefulRestart, GRTime: c.GracefulRestartTime, GRFamilies: grf})
	}
	if c.ASN4 && c.LocalAS <= 65535 {
		// NewOpen adds FOUR_BYTES_ASN on its own once myAS overflows 16
		// bits; this covers an operator who wants it advertised early.
		caps = append(caps, bgp.Capability{Code: bgp.CapFourByteASN, ASN4: c.LocalAS})
	}
	return bgp.NewOpen(c.LocalAS, c.HoldTime, c.RouterID, caps)
}

// Driver runs one peer's FSM against a real TCP connection, feeding the
// RIB from its mailbox and the event bus from inbound UPDATEs (§6
// component 8).
type Driver struct {
	cfg      NeighborConfig
	log      blog.Log
	bus      *event.Bus
	authHook AuthHook

	machine *fsm.Machine
	ribs    map[bgp.Family]*rib.RIB
	mailbox *mailbox

	conn       *connection
	maxMsgSize int

	connectRetryTimer *time.Timer
	holdTimer         *time.Timer
	keepaliveTicker   *time.Ticker

	connResult chan connOutcome
	stopCh     chan stopRequest
	doneCh     chan struct{}

	peerLabel string
	tracer    *packetTracer
}

type connOutcome struct {
	conn net.Conn
	err  error
}

type stopRequest struct {
	comm  string
	admin bool
}

func NewDriver(cfg NeighborConfig, log blog.Log, bus *event.Bus, auth AuthHook) *Driver {
	if auth == nil {
		auth = NoAuth{}
	}
	if log == nil {
		log = blog.Nop()
	}

	families := cfg.Families
	if len(families) == 0 {
		families = []bgp.Family{bgp.FamilyIPv4Unicast}
	}

	ribs := map[bgp.Family]*rib.RIB{}
	peerLabel := cfg.PeerAddress
	for _, f := range families {
		ribs[f] = rib.New(peerLabel, f)
	}

	d := &Driver{
		cfg:        cfg,
		log:        log.With(),
		bus:        bus,
		authHook:   auth,
		machine:    fsm.New(cfg.localOpen(), cfg.defaultFamily()),
		ribs:       ribs,
		maxMsgSize: bgp.DefaultMaxMsg,
		connResult: make(chan connOutcome, 1),
		stopCh:     make(chan stopRequest, 1),
		doneCh:     make(chan struct{}),
		peerLabel:  peerLabel,
	}
	d.mailbox = newMailbox(1024, d.onMailboxDrop)

	if cfg.TraceFilePath != "" {
		tr, err := newPacketTracer(cfg.TraceFilePath)
		if err != nil {
			d.log.Warn("packet trace disabled: could not open trace file",
				zap.String("peer", peerLabel), zap.String("path", cfg.TraceFilePath), zap.Error(err))
		} else {
			d.tracer = tr
		}
	}

	for _, cr := range cfg.InitialRoutes {
		d.mailbox.Submit(cr)
	}

	return d
}

func (d *Driver) onMailboxDrop(ChangeRequest) {
	bgpmetrics.MailboxDroppedTotal.WithLabelValues(d.peerLabel).Inc()
	d.log.Warn("mailbox full, dropping change", zap.String("peer", d.peerLabel))
}

// Submit queues a route change for this peer, non-blocking.
func (d *Driver) Submit(r ChangeRequest) { d.mailbox.Submit(r) }

// Stop requests a graceful shutdown with an optional RFC 9003 shutdown
// communication string.
func (d *Driver) Stop(reason string, administrative bool) {
	select {
	case d.stopCh <- stopRequest{comm: reason, admin: administrative}:
	default:
	}
}

// Done is closed once the driver's Run loop returns.
func (d *Driver) Done() <-chan struct{} { return d.doneCh }

// Run drives the FSM until a stop request brings it back to IDLE. It
// blocks the calling goroutine; callers should `go d.Run()`.
func (d *Driver) Run() {
	defer close(d.doneCh)
	defer d.tracer.Close()

	if !d.cfg.Passive {
		d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvManualStart}))
	}

	for {
		select {
		case req, ok := <-d.mailbox.ch:
			if !ok {
				continue
			}
			d.applyChange(req)

		case in, ok := <-d.inboundChan():
			if !ok {
				d.handleConnectionClosed()
				continue
			}
			d.handleInbound(in)

		case outcome := <-d.connResult:
			if outcome.err != nil {
				d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvTCPRefused}))
				continue
			}
			d.conn = newConnection(outcome.conn, d.maxMsgSize)
			d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvTCPEstablished}))

		case <-d.timerChan(&d.connectRetryTimer):
			bgpmetrics.ConnectRetryTotal.WithLabelValues(d.peerLabel).Inc()
			d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvConnectRetryExpire}))

		case <-d.timerChan(&d.holdTimer):
			bgpmetrics.HoldTimerExpiredTotal.WithLabelValues(d.peerLabel).Inc()
			d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvHoldTimerExpired}))

		case <-d.tickerChan(d.keepaliveTicker):
			d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvKeepaliveTimerFired}))

		case req := <-d.stopCh:
			d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvStop, ShutdownCommunication: req.comm, Administrative: req.admin}))
			if d.machine.State() == fsm.Idle {
				return
			}
		}
	}
}

func (d *Driver) inboundChan() chan inboundMessage {
	if d.conn == nil {
		return nil
	}
	return d.conn.Inbound
}

func (d *Driver) timerChan(t **time.Timer) <-chan time.Time {
	if *t == nil {
		return nil
	}
	return (*t).C
}

func (d *Driver) tickerChan(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (d *Driver) applyChange(req ChangeRequest) {
	r, ok := d.ribs[req.Family]
	if !ok {
		return
	}
	r.AddChange(req.NLRI, req.Attrs, req.Nexthop)
	if d.machine.State() == fsm.Established {
		d.flushRIB(r)
	}
}

func (d *Driver) flushRIB(r *rib.RIB) {
	neg := d.machine.Negotiated()
	addpath := func(f bgp.Family) bool { return neg.AddPath[f].Send }
	for _, u := range r.Drain(d.maxMsgSize, d.cfg.GroupedUpdates, addpath) {
		d.sendMessage(u)
	}
}

func (d *Driver) handleConnectionClosed() {
	d.conn = nil
}

func (d *Driver) handleInbound(in inboundMessage) {
	neg := d.machine.Negotiated()
	addpath := func(f bgp.Family) bool { return neg.AddPath[f].Recv }
	msg, err := bgp.DecodeMessage(in.Type, in.Body, neg.ASN4, addpath)
	if err != nil {
		ne, _ := err.(*bgp.NotifyError)
		n := bgp.Notification{Code: 1, Subcode: 0}
		if ne != nil {
			n = bgp.Notification{Code: ne.Code, Subcode: ne.Subcode}
		}
		d.sendMessage(n)
		d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvNotificationReceived, Notification: n}))
		return
	}

	bgpmetrics.MessagesTotal.WithLabelValues(d.peerLabel, "received", msgTypeName(in.Type)).Inc()
	d.tracer.record(false, in.Type, in.Body)
	d.emitTrace(event.Received, msgTypeName(in.Type), in.Body)

	switch m := msg.(type) {
	case bgp.Open:
		d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvOpenReceived, Open: m}))
	case bgp.Keepalive:
		d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvKeepaliveReceived}))
	case bgp.Update:
		d.emitUpdate(m)
		d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvUpdateReceived, Update: m}))
	case bgp.RouteRefresh:
		d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvRouteRefreshReceived, RouteRefresh: m}))
	case bgp.Notification:
		bgpmetrics.NotificationsTotal.WithLabelValues(d.peerLabel, "received", codeStr(m.Code), codeStr(m.Subcode)).Inc()
		d.emit(event.Event{Kind: event.Notification, Peer: d.peerLabel, Direction: "received", Code: m.Code, Subcode: m.Subcode, Data: m.Data})
		d.dispatch(d.machine.Step(fsm.Event{Kind: fsm.EvNotificationReceived, Notification: m}))
	case bgp.Operational:
		// no session-level action; consumers that care watch the event bus.
	}
}

func (d *Driver) emitUpdate(u bgp.Update) {
	for _, n := range u.AllNLRI() {
		kind := event.Announce
		if n.Action == bgp.Withdraw || len(u.TreatAsWithdraw) > 0 {
			kind = event.Withdraw
		}
		d.emit(event.Event{Kind: kind, Peer: d.peerLabel, Family: n.Family, NLRI: n, Attributes: u.Attrs})
	}
	if u.IsEndOfRIB() {
		d.emit(event.Event{Kind: event.EoR, Peer: d.peerLabel, Family: bgp.FamilyIPv4Unicast})
	}
}

func (d *Driver) emit(e event.Event) {
	if d.bus == nil {
		return
	}
	d.bus.Emit(e)
}

// emitTrace emits a Sent/Received event for every PDU; Raw is only
// populated when the neighbor opted into CapturePackets, so a consumer
// who never asked for wire-level detail doesn't pay to carry it.
func (d *Driver) emitTrace(kind event.Kind, summary string, body []byte) {
	e := event.Event{Kind: kind, Peer: d.peerLabel, MessageSummary: summary}
	if d.cfg.CapturePackets {
		e.Raw = append([]byte{}, body...)
	}
	d.emit(e)
}

func (d *Driver) sendMessage(m bgp.Message) {
	if d.conn == nil {
		return
	}
	neg := d.machine.Negotiated()
	addpath := func(f bgp.Family) bool { return neg.AddPath[f].Send }
	body := bgp.EncodeMessage(m, addpath)
	if err := d.conn.send(m.Type(), body); err != nil {
		d.log.Error("send failed", zap.String("peer", d.peerLabel), zap.Error(err))
		return
	}
	bgpmetrics.MessagesTotal.WithLabelValues(d.peerLabel, "sent", msgTypeName(m.Type())).Inc()
	d.tracer.record(true, m.Type(), body)
	d.emitTrace(event.Sent, msgTypeName(m.Type()), body)
	if n, ok := m.(bgp.Notification); ok {
		bgpmetrics.NotificationsTotal.WithLabelValues(d.peerLabel, "sent", codeStr(n.Code), codeStr(n.Subcode)).Inc()
		d.emit(event.Event{Kind: event.Notification, Peer: d.peerLabel, Direction: "sent", Code: n.Code, Subcode: n.Subcode, Data: n.Data})
	}
}

// dispatch executes the Actions an fsm.Step call returned.
func (d *Driver) dispatch(actions []fsm.Action) {
	for _, a := range actions {
		switch a.Kind {
		case fsm.ActConnect:
			go d.dialAsync()
		case fsm.ActListen:
			// inbound connections are accepted by whatever listener owns
			// the shared port and handed to a Driver via Accept; nothing
			// to do here beyond waiting for tcp-established.
		case fsm.ActSendMessage:
			d.sendMessage(a.Message)
		case fsm.ActStartConnectRetryTimer:
			d.stopConnectRetryTimer()
			d.connectRetryTimer = time.NewTimer(a.Delay)
		case fsm.ActStopConnectRetryTimer:
			d.stopConnectRetryTimer()
		case fsm.ActStartHoldTimer:
			d.stopHoldTimer()
			if a.Delay > 0 {
				d.holdTimer = time.NewTimer(a.Delay)
			}
		case fsm.ActStopHoldTimer:
			d.stopHoldTimer()
		case fsm.ActStartKeepaliveTimer:
			d.stopKeepaliveTicker()
			if a.Delay > 0 {
				d.keepaliveTicker = time.NewTicker(a.Delay)
			}
		case fsm.ActStopKeepaliveTimer:
			d.stopKeepaliveTicker()
		case fsm.ActSessionUp:
			d.maxMsgSize = a.Negotiated.MaxMessageSize
			if d.conn != nil {
				d.conn.setMaxMsgSize(d.maxMsgSize)
			}
			bgpmetrics.SessionState.WithLabelValues(d.peerLabel, fsm.Established.String()).Set(1)
			d.emit(event.Event{Kind: event.SessionUp, Peer: d.peerLabel, Negotiated: a.Negotiated})
		case fsm.ActSessionDown:
			bgpmetrics.SessionState.WithLabelValues(d.peerLabel, fsm.Established.String()).Set(0)
			ev := event.Event{Kind: event.SessionDown, Peer: d.peerLabel, Reason: a.Reason}
			if a.HasNotification {
				ev.Code, ev.Subcode = a.Notification.Code, a.Notification.Subcode
				ev.Reason = a.Notification.Describe()
			}
			d.emit(ev)
		case fsm.ActReplayCache:
			for _, r := range d.ribs {
				r.ReplayCache()
				d.flushRIB(r)
				d.sendMessage(r.EndOfRIB())
			}
		case fsm.ActDeliverUpdate:
			// already delivered to the bus in handleInbound before Step
			// was called, so the FSM sees it too; nothing further here.
		case fsm.ActResendRefresh:
			r, ok := d.ribs[a.Family]
			if !ok {
				continue
			}
			borr, eorr := r.Resend(a.Enhanced)
			if borr != nil {
				d.sendMessage(*borr)
			}
			d.flushRIB(r)
			if eorr != nil {
				d.sendMessage(*eorr)
			}
		case fsm.ActCloseConnection:
			d.stopConnectRetryTimer()
			d.stopHoldTimer()
			d.stopKeepaliveTicker()
			if d.conn != nil {
				d.conn.close()
				d.conn = nil
			}
		}
	}
}

func (d *Driver) dialAsync() {
	conn, err := dial(d.cfg.LocalAddress, d.cfg.PeerAddress, 10*time.Second)
	if err == nil {
		if aerr := d.authHook.ApplyAuth(conn, d.cfg.Auth); aerr != nil {
			conn.Close()
			d.connResult <- connOutcome{err: aerr}
			return
		}
	}
	d.connResult <- connOutcome{conn: conn, err: err}
}

func (d *Driver) stopConnectRetryTimer() {
	if d.connectRetryTimer != nil {
		d.connectRetryTimer.Stop()
		d.connectRetryTimer = nil
	}
}

func (d *Driver) stopHoldTimer() {
	if d.holdTimer != nil {
		d.holdTimer.Stop()
		d.holdTimer = nil
	}
}

func (d *Driver) stopKeepaliveTicker() {
	if d.keepaliveTicker != nil {
		d.keepaliveTicker.Stop()
		d.keepaliveTicker = nil
	}
}

func msgTypeName(mtype uint8) string {
	switch mtype {
	case bgp.MsgOpen:
		return "open"
	case bgp.MsgUpdate:
		return "update"
	case bgp.MsgNotification:
		return "notification"
	case bgp.MsgKeepalive:
		return "keepalive"
	case bgp.MsgRouteRefresh:
		return "route_refresh"
	case bgp.MsgOperational:
		return "operational"
	default:
		return "unknown(" + strconv.Itoa(int(mtype)) + ")"
	}
}

func codeStr(v uint8) string { return strconv.Itoa(int(v)) }
