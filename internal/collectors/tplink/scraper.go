package tplink

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/logging"
	"lanpets.io/monitor/internal/model"
	"lanpets.io/monitor/internal/runtime"
)

// Store is the subset of *store.Store the scraper needs.
type Store interface {
	AddNetworkInfo(rec model.NetworkInterfaceInfo, extra map[model.ExtraInfoType]string) error
	ListPets() ([]model.PetInfo, error)
	ResolvePetsToInterfaces(pets []model.PetInfo) (map[string]model.NetworkInterfaceInfo, error)
	AppendTraffic(name string, rxBytes, txBytes, ts int64) error
	DeleteEntriesOlderThan(table string, cutoff int64) error
}

// routerClient is the subset of *Client the scraper needs, narrowed to an
// interface so tests can substitute a fake HTTP layer.
type routerClient interface {
	GetDHCPReservations() ([]DHCPReservation, error)
	GetDHCPClients() ([]DHCPClient, error)
	GetTrafficStats() ([]TrafficRow, error)
}

// Scraper is the §4.5 worker.
type Scraper struct {
	client             routerClient
	store              Store
	clock              clock.Clock
	historySec         int64
	collectTrafficData bool
	log                *logging.Logger
}

// New creates a Scraper against the router at address using the given
// admin credentials.
func New(address, username, password string, s Store, c clock.Clock, historySec int64, collectTrafficData bool) *Scraper {
	return &Scraper{
		client:             NewClient(address, username, password),
		store:              s,
		clock:              c,
		historySec:         historySec,
		collectTrafficData: collectTrafficData,
		log:                logging.WithComponent("tplink"),
	}
}

// Worker returns the runtime.Worker wrapper for the supervisor. A
// transient HTTP/JSON/crypto failure ends the tick with a plain error, which
// the supervisor logs as a failed tick; it never propagates as fatal (§4.5).
func (s *Scraper) Worker(period time.Duration) runtime.Worker {
	return runtime.Worker{Name: "tplink", Period: period, Update: s.update}
}

func (s *Scraper) update(ctx context.Context) error {
	now := s.clock.Now().Unix()

	if s.collectTrafficData {
		if err := s.store.DeleteEntriesOlderThan("traffic_stats", now-s.historySec); err != nil {
			return &runtime.FatalError{Err: fmt.Errorf("tplink retention: %w", err)}
		}
	}

	reservations, err := s.client.GetDHCPReservations()
	if err != nil {
		return fmt.Errorf("tplink: fetch reservations: %w", err)
	}
	clients, err := s.client.GetDHCPClients()
	if err != nil {
		return fmt.Errorf("tplink: fetch dhcp clients: %w", err)
	}
	var traffic []TrafficRow
	if s.collectTrafficData {
		traffic, err = s.client.GetTrafficStats()
		if err != nil {
			return fmt.Errorf("tplink: fetch traffic stats: %w", err)
		}
	}

	devices := map[string]model.NetworkInterfaceInfo{} // keyed by mac
	for _, r := range reservations {
		mac := r.MAC
		ip := r.IP
		extra := map[model.ExtraInfoType]string{}
		if note, decodeErr := url.QueryUnescape(r.Note); decodeErr == nil && note != "" {
			extra[model.ExtraRouterDesc] = note
		}
		devices[mac] = model.NetworkInterfaceInfo{Timestamp: now, MAC: &mac, IP: &ip, Extra: extra}
	}
	for _, c := range clients {
		dev, ok := devices[c.MAC]
		if !ok {
			mac, ip := c.MAC, c.IP
			dev = model.NetworkInterfaceInfo{Timestamp: now, MAC: &mac, IP: &ip, Extra: map[model.ExtraInfoType]string{}}
		}
		if c.Name != "--" && c.Name != "" {
			if dev.Extra == nil {
				dev.Extra = map[model.ExtraInfoType]string{}
			}
			dev.Extra[model.ExtraDHCPName] = c.Name
		}
		devices[c.MAC] = dev
	}

	for _, dev := range devices {
		if err := s.store.AddNetworkInfo(dev, dev.Extra); err != nil {
			s.log.Warn("upsert device failed", "error", err)
		}
	}

	if s.collectTrafficData && len(traffic) > 0 {
		pets, err := s.store.ListPets()
		if err != nil {
			return &runtime.FatalError{Err: fmt.Errorf("tplink list pets: %w", err)}
		}
		resolved, err := s.store.ResolvePetsToInterfaces(pets)
		if err != nil {
			return &runtime.FatalError{Err: fmt.Errorf("tplink resolve pets: %w", err)}
		}
		ipToName := map[string]string{}
		for name, iface := range resolved {
			if iface.IP != nil {
				ipToName[*iface.IP] = name
			}
		}
		for _, t := range traffic {
			s.log.Debug("traffic row", "addr", t.Addr, "rx_bps", t.RXBps, "tx_bps", t.TXBps, "rx_pps", t.RXPps, "tx_pps", t.TXPps)
			name, ok := ipToName[t.Addr]
			if !ok {
				continue
			}
			if err := s.store.AppendTraffic(name, t.RXBytes, t.TXBytes, now); err != nil {
				return &runtime.FatalError{Err: fmt.Errorf("tplink append traffic for %q: %w", name, err)}
			}
		}
	}

	return nil
}
