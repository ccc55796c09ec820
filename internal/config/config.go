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

// Package config loads the daemon's YAML+environment configuration:
// koanf file provider first, environment overlay second, defaults
// merged before validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/coreswitch/bgpspeak/bgp"
)

// Config is the top-level daemon configuration: one NeighborConfig per
// peer (§6.1), plus the ambient service settings an embedder sets once.
type Config struct {
	Service   ServiceConfig        `koanf:"service"`
	Neighbors []NeighborConfig     `koanf:"neighbors"`
}

type ServiceConfig struct {
	LogLevel      string `koanf:"log_level"`
	MetricsListen string `koanf:"metrics_listen"`
}

// NeighborConfig mirrors most session.NeighborConfig fields in
// koanf-tagged, string-friendly form; cmd/bgpd's buildNeighbor converts it.
type NeighborConfig struct {
	PeerAddress         string   `koanf:"peer_address"`
	LocalAddress        string   `koanf:"local_address"`
	PeerAS              uint32   `koanf:"peer_as"`
	LocalAS             uint32   `koanf:"local_as"`
	RouterID            string   `koanf:"router_id"`
	HoldTimeSeconds     uint16   `koanf:"hold_time_seconds"`
	Families            []string `koanf:"families"`
	AddPathFamilies     []string `koanf:"add_path_families"`
	GracefulRestartSecs uint16   `koanf:"graceful_restart_seconds"`
	ASN4                bool     `koanf:"asn4"`
	RouteRefresh        bool     `koanf:"route_refresh"`
	EnhancedRefresh     bool     `koanf:"enhanced_route_refresh"`
	ExtendedMessage     bool     `koanf:"extended_message"`
	Passive             bool     `koanf:"passive"`
	ConnectRetrySeconds uint16   `koanf:"connect_retry_seconds"`
	MD5Password         string   `koanf:"md5_password"`
	CapturePackets      bool     `koanf:"capture_packets"`
	TraceFile           string   `koanf:"trace_file"`
	GroupedUpdates      bool     `koanf:"grouped_updates"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("BGPSPEAK_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BGPSPEAK_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			LogLevel:      "info",
			MetricsListen: ":9179",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Neighbors) == 0 {
		return fmt.Errorf("config: at least one neighbor is required")
	}
	for i, n := range c.Neighbors {
		if n.PeerAddress == "" {
			return fmt.Errorf("config: neighbors[%d].peer_address is required", i)
		}
		if n.LocalAS == 0 {
			return fmt.Errorf("config: neighbors[%d].local_as is required", i)
		}
		if n.HoldTimeSeconds != 0 && n.HoldTimeSeconds < 3 {
			return fmt.Errorf("config: neighbors[%d].hold_time_seconds must be 0 or >= 3 (got %d)", i, n.HoldTimeSeconds)
		}
		for _, f := range n.Families {
			if _, err := ParseFamily(f); err != nil {
				return fmt.Errorf("config: neighbors[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// ParseFamily maps the YAML-friendly family names to their bgp.Family
// value. Unknown names are rejected at load time rather than silently
// falling back to IPv4 unicast.
func ParseFamily(s string) (bgp.Family, error) {
	switch strings.ToLower(s) {
	case "ipv4-unicast", "ipv4":
		return bgp.FamilyIPv4Unicast, nil
	case "ipv6-unicast", "ipv6":
		return bgp.FamilyIPv6Unicast, nil
	case "ipv4-labeled-unicast":
		return bgp.FamilyIPv4MPLSLabel, nil
	case "ipv6-labeled-unicast":
		return bgp.FamilyIPv6MPLSLabel, nil
	case "ipv4-vpn":
		return bgp.FamilyIPv4MPLSVPN, nil
	case "ipv6-vpn":
		return bgp.FamilyIPv6MPLSVPN, nil
	case "l2vpn-evpn", "evpn":
		return bgp.FamilyL2VPNEVPN, nil
	default:
		return bgp.Family{}, fmt.Errorf("unknown address family %q", s)
	}
}

func (n NeighborConfig) connectRetry() time.Duration {
	if n.ConnectRetrySeconds == 0 {
		return 0
	}
	return time.Duration(n.ConnectRetrySeconds) * time.Second
}
