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

// Command bgpd runs one or more BGP peering sessions from a YAML
// configuration file: it drives the full session.Driver stack
// (capability negotiation, the peer FSM, the outgoing RIB) per
// configured neighbor.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/coreswitch/bgpspeak/bgp"
	"github.com/coreswitch/bgpspeak/event"
	"github.com/coreswitch/bgpspeak/internal/bgpmetrics"
	"github.com/coreswitch/bgpspeak/internal/blog"
	"github.com/coreswitch/bgpspeak/internal/config"
	"github.com/coreswitch/bgpspeak/session"
)

func main() {
	path := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bgpd:", err)
		os.Exit(1)
	}

	zl, err := blog.NewProduction(cfg.Service.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bgpd: building logger:", err)
		os.Exit(1)
	}
	defer zl.Sync()
	log := blog.New(zl)

	bgpmetrics.Register()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.Service.MetricsListen, mux); err != nil {
			log.Error("metrics listener exited", zap.Error(err))
		}
	}()

	bus := event.NewBus(4096)
	go logEvents(log, bus)

	drivers := make([]*session.Driver, 0, len(cfg.Neighbors))
	for _, n := range cfg.Neighbors {
		nc, err := buildNeighbor(n)
		if err != nil {
			log.Error("skipping neighbor", zap.String("peer", n.PeerAddress), zap.Error(err))
			continue
		}
		d := session.NewDriver(nc, log.With(zap.String("peer", n.PeerAddress)), bus, session.NoAuth{})
		drivers = append(drivers, d)
		go d.Run()
	}

	if len(drivers) == 0 {
		log.Error("no neighbors started, exiting")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	for _, d := range drivers {
		d.Stop("bgpd shutting down", true)
	}
	for _, d := range drivers {
		select {
		case <-d.Done():
		case <-time.After(10 * time.Second):
		}
	}
}

func buildNeighbor(n config.NeighborConfig) (session.NeighborConfig, error) {
	var families []bgp.Family
	for _, f := range n.Families {
		fam, err := config.ParseFamily(f)
		if err != nil {
			return session.NeighborConfig{}, err
		}
		families = append(families, fam)
	}
	if len(families) == 0 {
		families = []bgp.Family{bgp.FamilyIPv4Unicast}
	}

	var addPath []bgp.Family
	for _, f := range n.AddPathFamilies {
		fam, err := config.ParseFamily(f)
		if err != nil {
			return session.NeighborConfig{}, err
		}
		addPath = append(addPath, fam)
	}

	var routerID bgp.IP
	if n.RouterID != "" {
		addr, err := netip.ParseAddr(n.RouterID)
		if err != nil {
			return session.NeighborConfig{}, fmt.Errorf("router_id: %w", err)
		}
		routerID = bgp.IPFromAddr(addr)
	}

	var retry time.Duration
	if n.ConnectRetrySeconds > 0 {
		retry = time.Duration(n.ConnectRetrySeconds) * time.Second
	}

	return session.NeighborConfig{
		PeerAddress:          n.PeerAddress,
		LocalAddress:         n.LocalAddress,
		PeerAS:               bgp.ASN(n.PeerAS),
		LocalAS:              bgp.ASN(n.LocalAS),
		RouterID:             routerID,
		HoldTime:             n.HoldTimeSeconds,
		Families:             families,
		AddPathFamilies:      addPath,
		GracefulRestartTime:  n.GracefulRestartSecs,
		ASN4:                 n.ASN4,
		RouteRefresh:         n.RouteRefresh,
		EnhancedRouteRefresh: n.EnhancedRefresh,
		ExtendedMessage:      n.ExtendedMessage,
		Passive:              n.Passive,
		ConnectRetry:         retry,
		Auth:                 session.AuthConfig{MD5Password: n.MD5Password},
		CapturePackets:       n.CapturePackets,
		TraceFilePath:        n.TraceFile,
		GroupedUpdates:       n.GroupedUpdates,
	}, nil
}

func logEvents(log blog.Log, bus *event.Bus) {
	for ev := range bus.Events() {
		switch ev.Kind {
		case event.SessionUp:
			log.Info("session up", zap.String("peer", ev.Peer))
		case event.SessionDown:
			log.Info("session down", zap.String("peer", ev.Peer), zap.String("reason", ev.Reason))
		case event.Notification:
			log.Warn("notification", zap.String("peer", ev.Peer), zap.String("direction", ev.Direction),
				zap.Uint8("code", ev.Code), zap.Uint8("subcode", ev.Subcode))
		default:
			log.Debug("event", zap.String("peer", ev.Peer), zap.String("kind", ev.Kind.String()))
		}
	}
}
