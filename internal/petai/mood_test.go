package petai

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"lanpets.io/monitor/internal/config"
	"lanpets.io/monitor/internal/model"
)

func TestComputeMood_Activity1_JollyWhenAllHigh(t *testing.T) {
	cfg := config.PetAIConfig{UptimeThresholdPct: 50, TxThresholdBps: 1000, RxThresholdBps: 1000}
	stats := MoodAttributes{RXBps: 2000, TXBps: 2000, Availability: 90}
	mood := computeMood("ACTIVITY1", stats, MoodAttributes{}, cfg, rand.New(rand.NewSource(1)))
	require.Equal(t, model.MoodJolly, mood)
}

func TestComputeMood_Activity1_ShyWhenAllLow(t *testing.T) {
	cfg := config.PetAIConfig{UptimeThresholdPct: 50, TxThresholdBps: 1000, RxThresholdBps: 1000}
	stats := MoodAttributes{RXBps: 0, TXBps: 0, Availability: 0}
	mood := computeMood("ACTIVITY1", stats, MoodAttributes{}, cfg, rand.New(rand.NewSource(1)))
	require.Equal(t, model.MoodShy, mood)
}

func TestComputeMood_ActivityServices_ComparesAgainstMedian(t *testing.T) {
	cfg := config.PetAIConfig{}
	median := MoodAttributes{RXBps: 500, NumServices: 2, Availability: 50}
	above := MoodAttributes{RXBps: 600, NumServices: 3, Availability: 60}
	below := MoodAttributes{RXBps: 100, NumServices: 1, Availability: 10}
	require.Equal(t, model.MoodJolly, computeMood("ACTIVITY_SERVICES", above, median, cfg, rand.New(rand.NewSource(1))))
	require.Equal(t, model.MoodShy, computeMood("ACTIVITY_SERVICES", below, median, cfg, rand.New(rand.NewSource(1))))
}

func TestComputeMood_Random_StaysWithinRange(t *testing.T) {
	cfg := config.PetAIConfig{}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		m := computeMood("RANDOM", MoodAttributes{}, MoodAttributes{}, cfg, rng)
		require.GreaterOrEqual(t, int(m), 0)
		require.Less(t, int(m), model.NumMoods)
	}
}

func TestBestFriendMoods_WrapsAroundEnumBoundary(t *testing.T) {
	best := bestFriendMoods(model.MoodJolly) // index 0
	require.True(t, best[model.MoodJolly])
	require.True(t, best[model.MoodSassy])   // +1
	require.True(t, best[model.MoodShy])     // -1 wraps to last
}

func TestMedianAttributes_OddAndEvenPopulations(t *testing.T) {
	attrs := map[string]MoodAttributes{
		"a": {RXBps: 10},
		"b": {RXBps: 20},
		"c": {RXBps: 30},
	}
	require.Equal(t, 20.0, medianAttributes(attrs).RXBps)

	attrs["d"] = MoodAttributes{RXBps: 40}
	require.Equal(t, 25.0, medianAttributes(attrs).RXBps)
}
