package petai

import (
	"math/rand"

	"lanpets.io/monitor/internal/config"
	"lanpets.io/monitor/internal/model"
)

// activityTable maps (high_tx, high_rx, present) to a mood for ACTIVITY1,
// matching the eight-entry lookup table in pet_ai.py's _get_mood.
var activityTable = map[[3]bool]model.Mood{
	{true, true, true}:    model.MoodJolly,
	{true, false, true}:   model.MoodSassy,
	{false, true, true}:   model.MoodCalm,
	{false, false, true}:  model.MoodModest,
	{true, true, false}:   model.MoodDreamy,
	{true, false, false}:  model.MoodImpish,
	{false, true, false}:  model.MoodSneaky,
	{false, false, false}: model.MoodShy,
}

// activityServicesTable differs from activityTable only in which moods the
// (services,rx,present)=(true,false,true) and (false,true,true) corners map
// to, per pet_ai.py (CALM/SASSY swap position relative to ACTIVITY1).
var activityServicesTable = map[[3]bool]model.Mood{
	{true, true, true}:    model.MoodJolly,
	{true, false, true}:   model.MoodCalm,
	{false, true, true}:   model.MoodSassy,
	{false, false, true}:  model.MoodModest,
	{true, true, false}:   model.MoodDreamy,
	{true, false, false}:  model.MoodImpish,
	{false, true, false}:  model.MoodSneaky,
	{false, false, false}: model.MoodShy,
}

// computeMood selects a pet's mood under the configured algorithm.
func computeMood(algo string, stats, medianStats MoodAttributes, cfg config.PetAIConfig, rng *rand.Rand) model.Mood {
	switch algo {
	case "RANDOM":
		return model.Mood(rng.Intn(model.NumMoods))
	case "ACTIVITY_SERVICES":
		present := stats.Availability > medianStats.Availability
		highRX := stats.RXBps > medianStats.RXBps
		highServices := stats.NumServices > medianStats.NumServices
		return activityServicesTable[[3]bool{highServices, highRX, present}]
	case "ACTIVITY1":
		fallthrough
	default:
		present := stats.Availability > cfg.UptimeThresholdPct
		highRX := stats.RXBps > cfg.RxThresholdBps
		highTX := stats.TXBps > cfg.TxThresholdBps
		return activityTable[[3]bool{highTX, highRX, present}]
	}
}
