package probes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// netInterface is the subset of interface state used for selection
type netInterface struct {
	name     string
	up       bool
	loopback bool
	addrs    []string // CIDR notation
}

// toNetInterfaces converts gopsutil interface stats
func toNetInterfaces(stats gnet.InterfaceStatList) []netInterface {
	out := make([]netInterface, 0, len(stats))
	for _, s := range stats {
		iface := netInterface{name: s.Name}
		for _, flag := range s.Flags {
			switch flag {
			case "up":
				iface.up = true
			case "loopback":
				iface.loopback = true
			}
		}
		for _, a := range s.Addrs {
			iface.addrs = append(iface.addrs, a.Addr)
		}
		out = append(out, iface)
	}
	return out
}

// primaryAddr returns the first IPv4 address, else the first global IPv6
// address, in CIDR notation.
func (i netInterface) primaryAddr() string {
	var v6 string
	for _, a := range i.addrs {
		ip, _, err := net.ParseCIDR(a)
		if err != nil {
			continue
		}
		if ip.To4() != nil {
			return a
		}
		if v6 == "" && ip.IsGlobalUnicast() {
			v6 = a
		}
	}
	return v6
}

func (i netInterface) hasIP(ip net.IP) bool {
	for _, a := range i.addrs {
		addr, _, err := net.ParseCIDR(a)
		if err == nil && addr.Equal(ip) {
			return true
		}
	}
	return false
}

// selectInterface picks the interface to report: the preferred one when it
// has an address, then the default-route interface, then the first up
// non-loopback interface with an address.
func selectInterface(ifaces []netInterface, preferred, route string) (string, bool) {
	byName := func(name string) (string, bool) {
		if name == "" {
			return "", false
		}
		for _, iface := range ifaces {
			if iface.name != name {
				continue
			}
			if addr := iface.primaryAddr(); addr != "" {
				return iface.name + ": " + addr, true
			}
		}
		return "", false
	}

	if out, ok := byName(preferred); ok {
		return out, true
	}
	if out, ok := byName(route); ok {
		return out, true
	}
	for _, iface := range ifaces {
		if !iface.up || iface.loopback {
			continue
		}
		if addr := iface.primaryAddr(); addr != "" {
			return iface.name + ": " + addr, true
		}
	}
	return "", false
}

// NewNetworkProbe reports the primary interface and its address, e.g.
// "eth0: 192.168.1.20/24".
//
// The interface is chosen in this order: opts.NetworkInterface, the default
// route from proc/net/route, the interface owning the outbound address,
// then the first up non-loopback interface.
func NewNetworkProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldNetwork,
		liveOnly(opts, sysinfo.Strategy{
			Name: "interfaces",
			Fn: func(ctx context.Context) (string, error) {
				stats, err := gnet.InterfacesWithContext(ctx)
				if err != nil {
					return "", fmt.Errorf("failed to list interfaces: %w", err)
				}
				ifaces := toNetInterfaces(stats)

				route, _ := defaultRouteInterface(opts)
				if route == "" {
					route = outboundInterface(ctx, ifaces)
				}

				out, ok := selectInterface(ifaces, opts.NetworkInterface, route)
				if !ok {
					return "", errors.New("no interface with an address")
				}
				return out, nil
			},
		}),
	)
}

// defaultRouteInterface finds the interface of the IPv4 default route in
// proc/net/route.
func defaultRouteInterface(opts Options) (string, error) {
	f, err := os.Open(opts.path("proc", "net", "route"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Iface Destination Gateway Flags RefCnt Use Metric Mask ...
		if len(fields) < 8 || fields[0] == "Iface" {
			continue
		}
		if fields[1] == "00000000" && fields[7] == "00000000" {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no default route")
}

// outboundInterface finds the interface owning the local address the
// kernel would use for an outbound connection. Connecting a UDP socket
// sends no packets.
func outboundInterface(ctx context.Context, ifaces []netInterface) string {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", "192.0.2.1:9")
	if err != nil {
		return ""
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	for _, iface := range ifaces {
		if iface.hasIP(local.IP) {
			return iface.name
		}
	}
	return ""
}
