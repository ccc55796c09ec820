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

// Package session wires the bgp, fsm, rib and event packages to a TCP
// byte-stream (§6 component 8): it owns the socket, drives the FSM on
// every I/O event and timer, and feeds producer changes into the RIB.
package session

import (
	"net"
	"sync"
	"time"

	"github.com/coreswitch/bgpspeak/bgp"
)

// connection is a framed, queued BGP transport over one net.Conn: a
// single pending-work channel wakes the writer, and either side closing
// unwinds the other via the *_exit channels.
type connection struct {
	Inbound chan inboundMessage
	Error   string

	closed      chan struct{}
	writerExit  chan struct{}
	readerExit  chan struct{}
	pending     chan struct{}
	conn        net.Conn
	mutex       sync.Mutex
	out         [][]byte
	maxMsgSize  int
}

type inboundMessage struct {
	Type uint8
	Body []byte
}

func dial(localAddr, peerAddr string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	if localAddr != "" {
		dialer.LocalAddr = &net.TCPAddr{IP: net.ParseIP(localAddr), Port: 0}
	}
	return dialer.Dial("tcp", net.JoinHostPort(peerAddr, "179"))
}

func newConnection(conn net.Conn, maxMsgSize int) *connection {
	c := &connection{
		Inbound:    make(chan inboundMessage),
		closed:     make(chan struct{}),
		writerExit: make(chan struct{}),
		readerExit: make(chan struct{}),
		pending:    make(chan struct{}, 1),
		conn:       conn,
		maxMsgSize: maxMsgSize,
	}
	go c.writer()
	go c.reader()
	return c
}

func (c *connection) setMaxMsgSize(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.maxMsgSize = n
}

func (c *connection) close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

func (c *connection) shift() ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.out) == 0 {
		return nil, false
	}
	m := c.out[0]
	c.out = c.out[1:]
	select {
	case c.pending <- struct{}{}:
	default:
	}
	return m, true
}

// send queues one wire-ready message type/body for the writer goroutine.
func (c *connection) send(mtype uint8, body []byte) error {
	c.mutex.Lock()
	frame, err := bgp.FrameWrite(mtype, body, c.maxMsgSize)
	if err != nil {
		c.mutex.Unlock()
		return err
	}
	c.out = append(c.out, frame)
	c.mutex.Unlock()

	select {
	case c.pending <- struct{}{}:
	default:
	}
	return nil
}

func (c *connection) drain() bool {
	for {
		m, ok := c.shift()
		if !ok {
			return true
		}
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if _, err := c.conn.Write(m); err != nil {
			c.Error = err.Error()
			return false
		}
	}
}

func (c *connection) writer() {
	defer close(c.writerExit)
	defer c.conn.Close()

	for {
		select {
		case <-c.closed:
			c.drain()
			return
		case <-c.readerExit:
			c.drain()
			return
		case <-c.pending:
			if !c.drain() {
				return
			}
		}
	}
}

func (c *connection) reader() {
	defer close(c.readerExit)
	defer close(c.Inbound)

	for {
		c.mutex.Lock()
		max := c.maxMsgSize
		c.mutex.Unlock()

		mtype, body, err := bgp.FrameRead(c.conn, max)
		if err != nil {
			c.Error = err.Error()
			return
		}

		select {
		case c.Inbound <- inboundMessage{Type: mtype, Body: body}:
		case <-c.closed:
			return
		case <-c.writerExit:
			return
		}
	}
}
