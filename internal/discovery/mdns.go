// Package discovery advertises the handraw service on the local network over
// mDNS so browser and phone clients can find the landmark endpoint.
package discovery

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/VicFreyre/handraw-pipe/internal/logger"
)

// ServiceType is the DNS-SD service type of a handraw server.
const ServiceType = "_handraw._tcp"

// TXT records published with the service.
var defaultTXT = []string{
	"path=/api/landmarks",
	"stream=/api/stream",
}

// Advertiser publishes one service instance until Shutdown.
type Advertiser struct {
	server *mdns.Server
	zone   *mdns.MDNSService
}

// Advertise publishes instance on port. An empty instance uses the host name.
func Advertise(instance string, port int) (*Advertiser, error) {
	zone, err := newService(instance, "", port, nil)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}

	logger.S().Infow("advertising over mdns", "instance", zone.Instance, "service", ServiceType, "port", port)
	return &Advertiser{server: server, zone: zone}, nil
}

// Instance returns the advertised instance name.
func (a *Advertiser) Instance() string {
	return a.zone.Instance
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	if err := a.server.Shutdown(); err != nil {
		return fmt.Errorf("stop mdns server: %w", err)
	}
	return nil
}

func newService(instance, host string, port int, ips []net.IP) (*mdns.MDNSService, error) {
	if instance == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = h
	}

	svc, err := mdns.NewMDNSService(instance, ServiceType, "", host, port, ips, defaultTXT)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}
	return svc, nil
}

// Peer is a handraw server found on the network.
type Peer struct {
	Instance string
	Addr     string
	Info     []string
}

// Browse looks for handraw servers for the given duration.
func Browse(timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan []Peer)

	go func() {
		var peers []Peer
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			peers = append(peers, Peer{
				Instance: e.Name,
				Addr:     net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)),
				Info:     e.InfoFields,
			})
		}
		done <- peers
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	peers := <-done
	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}
	return peers, nil
}

// PortFromAddr extracts the TCP port from a listen address such as ":8080".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in listen address %q", addr)
	}
	return port, nil
}
