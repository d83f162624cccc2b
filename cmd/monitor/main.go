// Command monitor starts the lanpets supervisor: every collector, the pet
// AI reducer, and an ambient /metrics endpoint, until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/collectors/mdns"
	"lanpets.io/monitor/internal/collectors/nmap"
	"lanpets.io/monitor/internal/collectors/pinger"
	"lanpets.io/monitor/internal/collectors/snmp"
	"lanpets.io/monitor/internal/collectors/tplink"
	"lanpets.io/monitor/internal/config"
	"lanpets.io/monitor/internal/logging"
	"lanpets.io/monitor/internal/metrics"
	"lanpets.io/monitor/internal/model"
	"lanpets.io/monitor/internal/petai"
	"lanpets.io/monitor/internal/runtime"
	"lanpets.io/monitor/internal/store"
)

func main() {
	configPath := flag.String("config", "monitor.hcl", "path to the HCL configuration file")
	flag.Parse()

	logging.SetDefault(logging.New(logging.DefaultConfig()))
	log := logging.WithComponent("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error("create data dir", "error", err)
		os.Exit(1)
	}

	realClock := &clock.RealClock{}
	db, err := store.Open(filepath.Join(cfg.DataDir, "monitor.db"), realClock)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	overrides, err := config.LoadHardCodedPetInterfaces(cfg.HardCodedPetIfacesFile)
	if err != nil {
		log.Error("load hard coded pet interfaces", "error", err)
		os.Exit(1)
	}
	overlay := &overlayStore{Store: db, overrides: overrides}

	workers := buildWorkers(cfg, overlay, realClock, log)
	workers = append(workers, metricsWorker(overlay, 60*time.Second))

	reg := metrics.Get()
	for i := range workers {
		name, update := workers[i].Name, workers[i].Update
		workers[i].Update = func(ctx context.Context) error {
			err := update(ctx)
			reg.TicksTotal.WithLabelValues(name).Inc()
			if err != nil {
				reg.TickErrorsTotal.WithLabelValues(name).Inc()
			}
			return err
		}
	}

	sv := runtime.New(workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	httpSrv := &http.Server{Addr: ":9118", Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", "error", err)
		}
	}()

	if err := sv.Run(ctx); err != nil {
		log.Error("supervisor stopped with fatal error", "error", err)
		httpSrv.Close()
		os.Exit(1)
	}
	httpSrv.Close()
	log.Info("shutdown complete")
}

// overlayStore layers config.LoadHardCodedPetInterfaces overrides on top of
// the Store's own resolution, per SPEC_FULL.md §6 ("layered into resolution
// results"). The Store's own resolution stays a pure function of observed
// interfaces (per the Design Notes); the override layer lives here instead.
type overlayStore struct {
	*store.Store
	overrides map[string]model.NetworkInterfaceInfo
}

func (o *overlayStore) ResolvePetsToInterfaces(pets []model.PetInfo) (map[string]model.NetworkInterfaceInfo, error) {
	resolved, err := o.Store.ResolvePetsToInterfaces(pets)
	if err != nil {
		return nil, err
	}
	for name, override := range o.overrides {
		resolved[name] = override
	}
	return resolved, nil
}

func buildWorkers(cfg *config.Config, s *overlayStore, c clock.Clock, log *logging.Logger) []runtime.Worker {
	var workers []runtime.Worker

	historySec, err := config.ParseHistoryLen(cfg.Pinger.HistoryLen)
	if err != nil {
		log.Warn("invalid pinger.history_len, defaulting to 7d", "error", err)
		historySec = 7 * 24 * 3600
	}
	p := pinger.New(s, c, historySec)
	workers = append(workers, p.Worker(time.Duration(cfg.Pinger.UpdatePeriodSec)*time.Second))

	if cfg.TPLink != nil && cfg.TPLink.RouterIP != "" {
		ts := tplink.New(cfg.TPLink.RouterIP, cfg.TPLink.Username, cfg.TPLink.Password, s, c, historySec, cfg.TPLink.CollectTrafficData)
		workers = append(workers, ts.Worker(time.Duration(cfg.TPLink.UpdatePeriodSec)*time.Second))
	}

	if cfg.NMAP != nil && len(cfg.NMAP.IPRanges) > 0 {
		nb := nmap.New(s, c, cfg.NMAP.IPRanges, cfg.NMAP.NMAPFlags, cfg.NMAP.UseSudo)
		workers = append(workers, nb.Worker(time.Duration(cfg.NMAP.TimeBetweenScans)*time.Second))
	}

	if cfg.SNMP != nil && cfg.SNMP.RouterIP != "" {
		sp := snmp.New(s, c, cfg.SNMP.RouterIP, cfg.SNMP.Community, cfg.SNMP.CollectTrafficData)
		workers = append(workers, sp.Worker(time.Duration(cfg.SNMP.TimeBetweenScans)*time.Second))
	}

	if cfg.MDNS != nil {
		mb := mdns.New(s)
		if err := mb.Start(context.Background()); err != nil {
			log.Warn("mdns browser failed to start", "error", err)
		} else {
			workers = append(workers, mb.Worker(time.Duration(cfg.MDNS.TimeBetweenUpdates)*time.Second))
		}
	}

	if cfg.PetAI != nil {
		ai := petai.New(s, c, *cfg.PetAI, rand.Int63())
		workers = append(workers, ai.Worker(time.Duration(cfg.PetAI.UpdatePeriodSec)*time.Second))
	}

	return workers
}

// metricsWorker periodically refreshes the pets-tracked/relationships
// gauges; counters for ticks/errors are incremented by the wrapper that
// main puts around each worker's Update.
func metricsWorker(s *overlayStore, period time.Duration) runtime.Worker {
	reg := metrics.Get()
	return runtime.Worker{
		Name:   "metrics",
		Period: period,
		Update: func(ctx context.Context) error {
			pets, err := s.ListPets()
			if err != nil {
				return fmt.Errorf("metrics: list pets: %w", err)
			}
			reg.PetsTracked.Set(float64(len(pets)))

			rels, err := s.GetAllRelationships(nil)
			if err != nil {
				return fmt.Errorf("metrics: list relationships: %w", err)
			}
			reg.RelationshipsTotal.Set(float64(len(rels)))
			return nil
		},
	}
}
