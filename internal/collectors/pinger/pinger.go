// Package pinger implements SPEC_FULL.md §4.4: an ICMP reachability worker
// with a bounded parallel fan-out across resolved pets, grounded on the
// donor's internal/monitor/service.go use of pro-bing.
package pinger

import (
	"context"
	"fmt"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/logging"
	"lanpets.io/monitor/internal/model"
	"lanpets.io/monitor/internal/runtime"
)

const (
	pingTimeout  = 1 * time.Second
	maxInFlight  = 32
)

// Store is the subset of *store.Store the pinger needs.
type Store interface {
	ListPets() ([]model.PetInfo, error)
	ResolvePetsToInterfaces(pets []model.PetInfo) (map[string]model.NetworkInterfaceInfo, error)
	AppendAvailability(name string, available bool, ts int64) error
	DeleteEntriesOlderThan(table string, cutoff int64) error
}

// CheckFunc issues one ICMP echo and reports whether it was answered. It is
// a variable, exactly as in the donor's monitor/service.go, so tests can
// substitute a fake without touching raw sockets.
var CheckFunc = func(address string) (bool, error) {
	p, err := probing.NewPinger(address)
	if err != nil {
		return false, err
	}
	p.Count = 1
	p.Timeout = pingTimeout
	if err := p.SetPrivileged(false); err != nil {
		return false, err
	}
	if err := p.Run(); err != nil {
		return false, err
	}
	return p.Statistics().PacketsRecv > 0, nil
}

// Pinger is the §4.4 worker.
type Pinger struct {
	store      Store
	clock      clock.Clock
	historySec int64
	log        *logging.Logger
}

// New creates a Pinger retaining history for historySec seconds.
func New(s Store, c clock.Clock, historySec int64) *Pinger {
	return &Pinger{store: s, clock: c, historySec: historySec, log: logging.WithComponent("pinger")}
}

// Worker returns the runtime.Worker wrapper for the supervisor.
func (p *Pinger) Worker(period time.Duration) runtime.Worker {
	return runtime.Worker{Name: "pinger", Period: period, Update: p.update}
}

func (p *Pinger) update(ctx context.Context) error {
	now := p.clock.Now().Unix()
	if err := p.store.DeleteEntriesOlderThan("device_availability", now-p.historySec); err != nil {
		return &runtime.FatalError{Err: fmt.Errorf("pinger retention: %w", err)}
	}

	pets, err := p.store.ListPets()
	if err != nil {
		return &runtime.FatalError{Err: fmt.Errorf("pinger list pets: %w", err)}
	}
	resolved, err := p.store.ResolvePetsToInterfaces(pets)
	if err != nil {
		return &runtime.FatalError{Err: fmt.Errorf("pinger resolve: %w", err)}
	}

	targets := make(map[string]string, len(pets))
	for _, pet := range pets {
		iface := resolved[pet.Name]
		if iface.IP != nil {
			targets[pet.Name] = *iface.IP
		} else if iface.DNSHostname != nil {
			targets[pet.Name] = *iface.DNSHostname
		}
	}

	results := p.fanOutPing(targets)

	for name, available := range results {
		if err := p.store.AppendAvailability(name, available, now); err != nil {
			return &runtime.FatalError{Err: fmt.Errorf("pinger append availability for %q: %w", name, err)}
		}
	}
	return nil
}

// fanOutPing issues one ping per target concurrently, bounded by
// maxInFlight, and returns success iff sent == received (per target, a
// ping failure is a normal negative sample, never an error).
func (p *Pinger) fanOutPing(targets map[string]string) map[string]bool {
	results := make(map[string]bool, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxInFlight)

	for name, addr := range targets {
		name, addr := name, addr
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			ok, err := CheckFunc(addr)
			if err != nil {
				p.log.Debug("ping failed", "pet", name, "address", addr, "error", err)
				ok = false
			}
			mu.Lock()
			results[name] = ok
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}
