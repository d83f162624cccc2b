// Package mdns implements SPEC_FULL.md §4.8: the mDNS Browser. It
// continuously browses LAN service announcements in the background and
// periodically flushes accumulated entries into the store, grounded on
// original_source/pet_monitor/mdns_service.py. The donor's own
// internal/services/mdns/service.go is a multicast *reflector*, not a
// browser, so this uses github.com/grandcat/zeroconf instead (see
// other_examples/..._mdns-browser.go.go for the browsing shape).
package mdns

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"lanpets.io/monitor/internal/logging"
	"lanpets.io/monitor/internal/model"
	"lanpets.io/monitor/internal/runtime"
)

// entry is one accumulated mDNS observation, keyed by mdns hostname.
type entry struct {
	host     string
	name     string
	ip       string
	mac      string
	services map[string]struct{}
}

// Store is the subset of *store.Store the browser needs.
type Store interface {
	AddNetworkInfo(rec model.NetworkInterfaceInfo, extra map[model.ExtraInfoType]string) error
}

// Browser accumulates mDNS-announced devices in memory and flushes them to
// the store on each tick.
type Browser struct {
	store Store
	log   *logging.Logger

	mu      sync.Mutex
	entries map[string]*entry

	started bool
}

// New creates a Browser. Call Start once before the first tick to begin
// background discovery; Update (the periodic tick) only flushes.
func New(s Store) *Browser {
	return &Browser{store: s, log: logging.WithComponent("mdns"), entries: map[string]*entry{}}
}

// Worker returns the runtime.Worker wrapper for the supervisor.
func (b *Browser) Worker(period time.Duration) runtime.Worker {
	return runtime.Worker{Name: "mdns", Period: period, Update: b.update}
}

// Start launches the background service-type discovery and entry browsing
// goroutines. Safe to call once; subsequent calls are no-ops.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}
	go b.browseLoop(ctx, resolver)
	return nil
}

// browseLoop periodically re-discovers advertised service types, then
// browses each for a short window, mirroring zeroconf's "find all types,
// then watch each" idiom used by ZeroconfServiceTypes.find in the original.
func (b *Browser) browseLoop(ctx context.Context, resolver *zeroconf.Resolver) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typesCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		typeEntries := make(chan *zeroconf.ServiceEntry, 32)
		if err := resolver.Browse(typesCtx, "_services._dns-sd._udp", "local.", typeEntries); err != nil {
			b.log.Warn("mdns service-type browse failed", "error", err)
			cancel()
			time.Sleep(5 * time.Second)
			continue
		}
		var serviceTypes []string
		for {
			select {
			case e, ok := <-typeEntries:
				if !ok {
					goto doneTypes
				}
				if e != nil {
					serviceTypes = append(serviceTypes, e.Instance+"."+e.Service)
				}
			case <-typesCtx.Done():
				goto doneTypes
			}
		}
	doneTypes:
		cancel()

		for _, st := range serviceTypes {
			b.browseOne(ctx, resolver, st)
		}
		if len(serviceTypes) == 0 {
			time.Sleep(5 * time.Second)
		}
	}
}

func (b *Browser) browseOne(ctx context.Context, resolver *zeroconf.Resolver, serviceType string) {
	browseCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	results := make(chan *zeroconf.ServiceEntry, 32)
	if err := resolver.Browse(browseCtx, serviceType, "local.", results); err != nil {
		return
	}
	for {
		select {
		case e, ok := <-results:
			if !ok {
				return
			}
			if e != nil {
				b.handle(serviceType, e)
			}
		case <-browseCtx.Done():
			return
		}
	}
}

func (b *Browser) handle(serviceType string, e *zeroconf.ServiceEntry) {
	if e.HostName == "" || len(e.AddrIPv4) == 0 {
		return
	}
	ip := e.AddrIPv4[0].String()
	host := strings.TrimSuffix(e.HostName, ".")
	displayService := strings.TrimPrefix(strings.SplitN(serviceType, ".", 2)[0], "_")
	displayName := e.Instance

	b.mu.Lock()
	defer b.mu.Unlock()

	ent, exists := b.entries[host]
	if !exists {
		ent = &entry{host: host, services: map[string]struct{}{}}
		b.entries[host] = ent
	} else if ent.name != displayName {
		// Different services on the same host sometimes report different
		// instance names; fall back to the hostname's leading label.
		displayName = strings.SplitN(host, ".", 2)[0]
	}

	if ent.mac == "" {
		if mac := txtProperty(e.Text, "mac"); mac != "" {
			ent.mac = standardizeMAC(mac)
		} else if mac := macForIP(ip); mac != "" {
			ent.mac = standardizeMAC(mac)
		}
	}

	ent.name = displayName
	ent.ip = ip
	ent.services[displayService] = struct{}{}
}

func txtProperty(txt []string, key string) string {
	prefix := key + "="
	for _, t := range txt {
		if strings.HasPrefix(t, prefix) {
			return strings.TrimPrefix(t, prefix)
		}
	}
	return ""
}

func standardizeMAC(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(mac, ":", "-"))
}

// update drains the accumulated entries into the store and clears them,
// matching mdns_service.py's per-tick flush.
func (b *Browser) update(ctx context.Context) error {
	b.mu.Lock()
	snapshot := b.entries
	b.entries = map[string]*entry{}
	b.mu.Unlock()

	for _, ent := range snapshot {
		if ent.ip == "" {
			continue
		}
		var mac *string
		if ent.mac != "" {
			mac = &ent.mac
		}
		ip := ent.ip
		host := ent.host
		rec := model.NetworkInterfaceInfo{MAC: mac, IP: &ip, MDNSHostname: &host}

		services := make([]string, 0, len(ent.services))
		for s := range ent.services {
			services = append(services, s)
		}
		extra := map[model.ExtraInfoType]string{
			model.ExtraMDNSName:     ent.name,
			model.ExtraMDNSServices: strings.Join(services, ","),
		}
		if err := b.store.AddNetworkInfo(rec, extra); err != nil {
			b.log.Warn("upsert mdns entry failed", "host", host, "error", err)
		}
	}
	b.log.Debug("mdns flush", "count", len(snapshot))
	return nil
}
