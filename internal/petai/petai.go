package petai

import (
	"context"
	"math/rand"
	"time"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/config"
	"lanpets.io/monitor/internal/logging"
	"lanpets.io/monitor/internal/model"
	"lanpets.io/monitor/internal/runtime"
	"lanpets.io/monitor/internal/store"
)

// Store is the subset of *store.Store the pet AI needs.
type Store interface {
	ListPets() ([]model.PetInfo, error)
	ResolvePetsToInterfaces(pets []model.PetInfo) (map[string]model.NetworkInterfaceInfo, error)
	LoadTraffic(names []string, since int64) (map[string][]model.TrafficSample, error)
	MeanAvailability(names []string, since int64) (map[string]float64, error)
	CurrentAvailability(names []string) (map[string]bool, error)
	UpdatePetMood(name string, mood model.Mood) error
	GetRelationshipMap(names []string) (*store.RelMap, error)
}

// PetAI runs the mood/relationship reducer once per tick.
type PetAI struct {
	store Store
	clock clock.Clock
	cfg   config.PetAIConfig
	log   *logging.Logger
	rng   *rand.Rand
}

// New creates a PetAI. seed should come from a non-deterministic source in
// production and a fixed value in tests.
func New(s Store, c clock.Clock, cfg config.PetAIConfig, seed int64) *PetAI {
	return &PetAI{store: s, clock: c, cfg: cfg, log: logging.WithComponent("petai"), rng: rand.New(rand.NewSource(seed))}
}

// Worker returns the runtime.Worker wrapper for the supervisor.
func (p *PetAI) Worker(period time.Duration) runtime.Worker {
	return runtime.Worker{Name: "petai", Period: period, Update: p.update}
}

func (p *PetAI) update(ctx context.Context) error {
	pets, err := p.store.ListPets()
	if err != nil {
		return &runtime.FatalError{Err: err}
	}
	if len(pets) == 0 {
		return nil
	}

	names := make([]string, len(pets))
	previousMoods := make(map[string]model.Mood, len(pets))
	for i, pet := range pets {
		names[i] = pet.Name
		previousMoods[pet.Name] = pet.Mood
	}

	mapped, err := p.store.ResolvePetsToInterfaces(pets)
	if err != nil {
		return &runtime.FatalError{Err: err}
	}

	cutoff := p.clock.Now().Unix() - int64(p.cfg.HistoryWindowSec)
	traffic, err := p.store.LoadTraffic(names, cutoff)
	if err != nil {
		return &runtime.FatalError{Err: err}
	}
	availabilityMean, err := p.store.MeanAvailability(names, cutoff)
	if err != nil {
		return &runtime.FatalError{Err: err}
	}
	currentAvailability, err := p.store.CurrentAvailability(names)
	if err != nil {
		return &runtime.FatalError{Err: err}
	}

	attrs := make(map[string]MoodAttributes, len(pets))
	for _, name := range names {
		rxMean, txMean := store.MeanTraffic(traffic[name], true)
		attrs[name] = MoodAttributes{
			RXBps:        rxMean,
			TXBps:        txMean,
			NumServices:  numServices(mapped[name]),
			OnLine:       currentAvailability[name],
			Availability: availabilityMean[name],
		}
	}
	medianAttrs := medianAttributes(attrs)

	var onlinePets []string
	for _, name := range names {
		if attrs[name].OnLine {
			onlinePets = append(onlinePets, name)
		}
	}
	relMap, err := p.store.GetRelationshipMap(onlinePets)
	if err != nil {
		return &runtime.FatalError{Err: err}
	}

	currentMoods := make(map[string]model.Mood, len(pets))
	for _, name := range names {
		mood := computeMood(p.cfg.MoodAlgorithm, attrs[name], medianAttrs, p.cfg, p.rng)
		currentMoods[name] = mood
		if mood != previousMoods[name] {
			p.log.Audit("mood_transition", name, map[string]any{
				"from": previousMoods[name].String(),
				"to":   mood.String(),
			})
		}
		if err := p.store.UpdatePetMood(name, mood); err != nil {
			return &runtime.FatalError{Err: err}
		}
	}

	for _, name := range onlinePets {
		evolveRelationships(name, onlinePets, relMap, previousMoods, currentMoods[name], p.cfg, p.rng)
	}
	return nil
}
