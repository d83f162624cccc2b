// Package nmap implements SPEC_FULL.md §4.6: a background-goroutine wrapper
// around the external `nmap` binary, grounded on
// original_source/pet_monitor/nmap/{nmap_interface,nmap_scraper}.py.
package nmap

import (
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/logging"
	"lanpets.io/monitor/internal/model"
	"lanpets.io/monitor/internal/runtime"
)

// Store is the subset of *store.Store the bridge needs.
type Store interface {
	AddNetworkInfo(rec model.NetworkInterfaceInfo, extra map[model.ExtraInfoType]string) error
}

// nmapRun holds the XML elements this bridge extracts; the rest of nmap's
// considerably larger XML schema is ignored.
type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    nmapStatus     `xml:"status"`
	Addresses []nmapAddress  `xml:"address"`
	Hostnames []nmapHostname `xml:"hostnames>hostname"`
	Ports     []nmapPort     `xml:"ports>port"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
}

type nmapPort struct {
	PortID  string         `xml:"portid,attr"`
	State   nmapPortState  `xml:"state"`
	Service nmapPortService `xml:"service"`
}

type nmapPortState struct {
	State string `xml:"state,attr"`
}

type nmapPortService struct {
	Name string `xml:"name,attr"`
}

// Bridge runs `nmap` scans in a background goroutine and ingests their
// completed output. One scan is ever in flight at a time; an overlapping
// request is rejected at the source.
type Bridge struct {
	store   Store
	clock   clock.Clock
	ranges  []string
	flags   []string
	useSudo bool
	log     *logging.Logger

	mu         sync.Mutex
	inProgress bool
	result     *nmapRun
	resultErr  error
}

// New creates a Bridge scanning the given CIDR/IP ranges with flags (e.g.
// "-sn" for discovery-only, or "-sV", "--open", "-T4" for service probing).
func New(s Store, c clock.Clock, ranges, flags []string, useSudo bool) *Bridge {
	return &Bridge{store: s, clock: c, ranges: ranges, flags: flags, useSudo: useSudo, log: logging.WithComponent("nmap")}
}

// Worker returns the runtime.Worker wrapper for the supervisor: Update
// starts a new scan if none is in flight; Check ingests a completed scan's
// results asynchronously.
func (b *Bridge) Worker(period time.Duration) runtime.Worker {
	return runtime.Worker{Name: "nmap", Period: period, Update: b.startScan, Check: b.checkResult}
}

func (b *Bridge) startScan(ctx context.Context) error {
	b.mu.Lock()
	if b.inProgress {
		b.mu.Unlock()
		b.log.Warn("attempting new scan while previous run has not completed")
		return nil
	}
	b.inProgress = true
	b.mu.Unlock()

	go b.runScan()
	return nil
}

func (b *Bridge) runScan() {
	defer func() {
		b.mu.Lock()
		b.inProgress = false
		b.mu.Unlock()
	}()

	args := append([]string{}, b.flags...)
	args = append(args, "-oX", "-")
	args = append(args, b.ranges...)
	if b.useSudo {
		args = append([]string{"nmap"}, args...)
		cmd := exec.Command("sudo", args...)
		b.finishScan(cmd.Output())
		return
	}
	cmd := exec.Command("nmap", args...)
	b.finishScan(cmd.Output())
}

func (b *Bridge) finishScan(output []byte, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.result = nil
		b.resultErr = fmt.Errorf("nmap: scan failed: %w", err)
		return
	}
	var run nmapRun
	if err := xml.Unmarshal(output, &run); err != nil {
		b.result = nil
		b.resultErr = fmt.Errorf("nmap: parse xml: %w", err)
		return
	}
	b.result = &run
	b.resultErr = nil
}

func (b *Bridge) checkResult(ctx context.Context) {
	b.mu.Lock()
	run := b.result
	resultErr := b.resultErr
	b.result = nil
	b.resultErr = nil
	b.mu.Unlock()

	if resultErr != nil {
		b.log.Warn("nmap scan error", "error", resultErr)
		return
	}
	if run == nil {
		return
	}

	now := b.clock.Now().Unix()
	for _, h := range run.Hosts {
		if h.Status.State != "up" {
			continue
		}
		rec, extra := parseHost(h, now)
		if !rec.HasIdentity() {
			continue
		}
		if err := b.store.AddNetworkInfo(rec, extra); err != nil {
			b.log.Warn("upsert nmap host failed", "error", err)
		}
	}
}

func parseHost(h nmapHost, now int64) (model.NetworkInterfaceInfo, map[model.ExtraInfoType]string) {
	rec := model.NetworkInterfaceInfo{Timestamp: now}
	for _, a := range h.Addresses {
		switch a.AddrType {
		case "ipv4":
			ip := a.Addr
			rec.IP = &ip
		case "mac":
			mac := strings.ReplaceAll(strings.ToUpper(a.Addr), ":", "-")
			rec.MAC = &mac
		}
	}
	if len(h.Hostnames) > 0 {
		name := h.Hostnames[0].Name
		rec.DNSHostname = &name
	}

	var services []string
	for _, p := range h.Ports {
		if p.State.State != "open" {
			continue
		}
		port, err := strconv.Atoi(p.PortID)
		if err != nil {
			continue
		}
		services = append(services, fmt.Sprintf("%d(%s)", port, p.Service.Name))
	}

	extra := map[model.ExtraInfoType]string{}
	if len(services) > 0 {
		extra[model.ExtraNMAPServices] = strings.Join(services, ",")
	}
	return rec, extra
}
