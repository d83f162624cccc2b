// Package snmp implements SPEC_FULL.md §4.7: the SNMP Poller, which walks a
// router's ARP table and queries per-pet CPU/memory/interface counters over
// raw SNMPv1, grounded on original_source/pet_monitor/snmp/get_device_stats.py.
package snmp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/logging"
	"lanpets.io/monitor/internal/model"
	"lanpets.io/monitor/internal/runtime"
	"lanpets.io/monitor/internal/snmp"
)

const (
	oidARPTable     = "1.3.6.1.2.1.4.22.1.2"
	oidIdleCPUPct   = "1.3.6.1.4.1.2021.11.11.0"
	oidPerCoreLoad  = "1.3.6.1.2.1.25.3.3.1.2"
	oidStorageType  = "1.3.6.1.2.1.25.2.3.1.2"
	oidStorageSize  = "1.3.6.1.2.1.25.2.3.1.5"
	oidStorageUsed  = "1.3.6.1.2.1.25.2.3.1.6"
	oidStorageUnit  = "1.3.6.1.2.1.25.2.3.1.4"
	oidStorageRAM   = "1.3.6.1.2.1.25.2.1.2"
	oidIfInOctets   = "1.3.6.1.2.1.2.2.1.10"
	oidIfOutOctets  = "1.3.6.1.2.1.2.2.1.16"
)

// Store is the subset of *store.Store the poller needs.
type Store interface {
	AddNetworkInfo(rec model.NetworkInterfaceInfo, extra map[model.ExtraInfoType]string) error
	ListPets() ([]model.PetInfo, error)
	ResolvePetsToInterfaces(pets []model.PetInfo) (map[string]model.NetworkInterfaceInfo, error)
	AppendCPU(name string, cpuPct, memPct float64, ts int64) error
	AppendTraffic(name string, rxBytes, txBytes, ts int64) error
}

// snmpClient is the subset of *snmp.Client the poller needs, narrowed to an
// interface so tests can substitute a fake transport.
type snmpClient interface {
	Get(oid string) (snmp.Varbind, error)
	GetNext(oid string) (snmp.Varbind, error)
	Walk(root string) ([]snmp.Varbind, error)
}

// Poller walks a router's ARP table and each resolved pet's CPU/memory/
// interface counters over SNMPv1.
type Poller struct {
	store              Store
	clock              clock.Clock
	routerIP           string
	community          string
	collectTrafficData bool
	log                *logging.Logger

	newClient func(host string) snmpClient
}

// New creates a Poller targeting routerIP with the given community string.
func New(s Store, c clock.Clock, routerIP, community string, collectTrafficData bool) *Poller {
	p := &Poller{store: s, clock: c, routerIP: routerIP, community: community, collectTrafficData: collectTrafficData, log: logging.WithComponent("snmp")}
	p.newClient = func(host string) snmpClient { return snmp.NewClient(host, community) }
	return p
}

// Worker returns the runtime.Worker wrapper for the supervisor.
func (p *Poller) Worker(period time.Duration) runtime.Worker {
	return runtime.Worker{Name: "snmp", Period: period, Update: p.update}
}

func (p *Poller) update(ctx context.Context) error {
	if p.routerIP == "" {
		return nil
	}

	if err := p.walkARP(); err != nil {
		return fmt.Errorf("snmp: router %s unreachable: %w", p.routerIP, err)
	}

	pets, err := p.store.ListPets()
	if err != nil {
		return &runtime.FatalError{Err: fmt.Errorf("snmp: list pets: %w", err)}
	}
	resolved, err := p.store.ResolvePetsToInterfaces(pets)
	if err != nil {
		return &runtime.FatalError{Err: fmt.Errorf("snmp: resolve pets: %w", err)}
	}

	now := p.clock.Now().Unix()
	for _, pet := range pets {
		iface, ok := resolved[pet.Name]
		if !ok || iface.IP == nil {
			continue
		}
		if err := p.pollPet(pet.Name, *iface.IP, now); err != nil {
			p.log.Debug("snmp poll failed for pet", "pet", pet.Name, "error", err)
		}
	}
	return nil
}

// walkARP reads the router's ARP cache and upserts every (ip, mac) pair.
func (p *Poller) walkARP() error {
	c := p.newClient(p.routerIP)
	vbs, err := c.Walk(oidARPTable)
	if err != nil {
		return err
	}
	now := p.clock.Now().Unix()
	for _, vb := range vbs {
		ip := arpIPFromOID(vb.OID, oidARPTable)
		if ip == "" {
			continue
		}
		mac := macHexPairs(vb.Content)
		if mac == "" {
			continue
		}
		rec := model.NetworkInterfaceInfo{Timestamp: now, IP: &ip, MAC: &mac}
		if err := p.store.AddNetworkInfo(rec, nil); err != nil {
			p.log.Warn("upsert arp entry failed", "ip", ip, "error", err)
		}
	}
	return nil
}

// arpIPFromOID extracts the trailing four sub-identifiers of an
// atIfIndex/NetAddress-indexed ARP OID and renders them as a dotted IPv4.
func arpIPFromOID(oid, root string) string {
	suffix := strings.TrimPrefix(oid, root+".")
	if suffix == oid {
		return ""
	}
	parts := strings.Split(suffix, ".")
	if len(parts) < 4 {
		return ""
	}
	last4 := parts[len(parts)-4:]
	return strings.Join(last4, ".")
}

func macHexPairs(content []byte) string {
	if len(content) != 6 {
		return ""
	}
	parts := make([]string, 6)
	for i, b := range content {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.ToUpper(strings.Join(parts, "-"))
}

func (p *Poller) pollPet(name, ip string, now int64) error {
	c := p.newClient(ip)

	cpuPct, err := p.cpuPercent(c)
	if err != nil {
		return fmt.Errorf("cpu: %w", err)
	}
	memPct, err := p.memPercent(c)
	if err != nil {
		return fmt.Errorf("mem: %w", err)
	}
	if err := p.store.AppendCPU(name, cpuPct, memPct, now); err != nil {
		return fmt.Errorf("append cpu: %w", err)
	}

	if p.collectTrafficData {
		rx, tx, err := p.ifCounters(c)
		if err != nil {
			p.log.Debug("interface counters unavailable", "pet", name, "error", err)
		} else if err := p.store.AppendTraffic(name, rx, tx, now); err != nil {
			return fmt.Errorf("append traffic: %w", err)
		}
	}
	return nil
}

// cpuPercent prefers the idle-CPU scalar; if unavailable it falls back to
// the mean of the per-core load walk.
func (p *Poller) cpuPercent(c snmpClient) (float64, error) {
	vb, err := c.Get(oidIdleCPUPct)
	if err == nil {
		idle := float64(vb.AsInt())
		return 100 - idle, nil
	}

	loads, err := c.Walk(oidPerCoreLoad)
	if err != nil {
		return 0, err
	}
	if len(loads) == 0 {
		return 0, fmt.Errorf("no per-core load entries")
	}
	var sum float64
	for _, l := range loads {
		sum += float64(l.AsInt())
	}
	return sum / float64(len(loads)), nil
}

// memPercent walks the storage table and locates the RAM entry by its type
// OID, computing used% = used*unit / total*unit * 100.
func (p *Poller) memPercent(c snmpClient) (float64, error) {
	types, err := c.Walk(oidStorageType)
	if err != nil {
		return 0, err
	}
	for _, t := range types {
		if t.AsString() != oidStorageRAM && !strings.Contains(t.AsString(), "1.3.6.1.2.1.25.2.1.2") {
			continue
		}
		idx := indexSuffix(t.OID, oidStorageType)
		size, err := c.Get(oidStorageSize + "." + idx)
		if err != nil {
			return 0, err
		}
		used, err := c.Get(oidStorageUsed + "." + idx)
		if err != nil {
			return 0, err
		}
		unit, err := c.Get(oidStorageUnit + "." + idx)
		if err != nil {
			return 0, err
		}
		total := float64(size.AsInt()) * float64(unit.AsInt())
		if total == 0 {
			return 0, nil
		}
		return float64(used.AsInt()) * float64(unit.AsInt()) / total * 100, nil
	}
	return 0, fmt.Errorf("no RAM storage entry found")
}

func indexSuffix(oid, root string) string {
	return strings.TrimPrefix(oid, root+".")
}

// ifCounters walks in/out octet counters across all interfaces and returns
// the maximum observed in each direction, per SPEC_FULL.md §4.7.
func (p *Poller) ifCounters(c snmpClient) (rx, tx int64, err error) {
	inVbs, err := c.Walk(oidIfInOctets)
	if err != nil {
		return 0, 0, err
	}
	outVbs, err := c.Walk(oidIfOutOctets)
	if err != nil {
		return 0, 0, err
	}
	for _, vb := range inVbs {
		if v := vb.AsInt(); v > rx {
			rx = v
		}
	}
	for _, vb := range outVbs {
		if v := vb.AsInt(); v > tx {
			tx = v
		}
	}
	return rx, tx, nil
}
