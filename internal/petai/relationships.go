package petai

import (
	"math/rand"

	"lanpets.io/monitor/internal/config"
	"lanpets.io/monitor/internal/model"
	"lanpets.io/monitor/internal/store"
)

// bestFriendMoods returns the moods within ±1 of mood, wrapping around the
// Mood enum, matching pet_ai.py's _get_best_friends.
func bestFriendMoods(mood model.Mood) map[model.Mood]bool {
	out := make(map[model.Mood]bool, 3)
	for _, delta := range []int{-1, 0, 1} {
		m := (int(mood) + delta + model.NumMoods) % model.NumMoods
		out[model.Mood(m)] = true
	}
	return out
}

// evolveRelationships applies one tick of stochastic friend/enemy churn for
// an online pet, mirroring pet_ai.py's per-pet relationship block. previousMoods
// is read-only; relMap mirrors every store mutation made here.
func evolveRelationships(name string, onlinePets []string, relMap *store.RelMap, previousMoods map[string]model.Mood, currentMood model.Mood, cfg config.PetAIConfig, rng *rand.Rand) {
	related := relMap.GetRelationships(name)
	var friends, enemies []string
	for peer, kind := range related {
		switch kind {
		case model.RelationshipFriends:
			friends = append(friends, peer)
		case model.RelationshipEnemy:
			enemies = append(enemies, peer)
		}
	}

	var potentials []string
	for _, p := range onlinePets {
		if p == name {
			continue
		}
		if _, isRelated := related[p]; isRelated {
			continue
		}
		potentials = append(potentials, p)
	}

	if len(friends) > 0 && rng.Float64() < cfg.ProbLoseFriend {
		breakup := friends[rng.Intn(len(friends))]
		relMap.Remove(name, breakup)
	}

	if len(enemies) > 0 && rng.Float64() < cfg.ProbLoseEnemy {
		breakup := enemies[rng.Intn(len(enemies))]
		relMap.Remove(name, breakup)
	}

	if len(potentials) == 0 {
		return
	}

	bestFriends := bestFriendMoods(currentMood)
	var potentialBestFriends []string
	for _, p := range potentials {
		if bestFriends[previousMoods[p]] {
			potentialBestFriends = append(potentialBestFriends, p)
		}
	}

	probNewFriend := cfg.ProbMakeFriend - cfg.ProbMakeFriendPerDrop*float64(len(friends))
	if probNewFriend < 0 {
		probNewFriend = 0
	}
	probNewBestFriend := probNewFriend * cfg.FriendMoodMultiplier

	remaining := potentials
	if r := rng.Float64(); r < probNewBestFriend {
		pool := potentials
		if r >= probNewFriend && len(potentialBestFriends) > 0 {
			pool = potentialBestFriends
		}
		if len(pool) > 0 {
			friendName := pool[rng.Intn(len(pool))]
			if err := relMap.Set(name, friendName, model.RelationshipFriends); err == nil {
				remaining = removeName(potentials, friendName)
			}
		}
	}

	probNewEnemy := cfg.ProbMakeEnemy - cfg.ProbMakeEnemyPerDrop*float64(len(enemies))
	if probNewEnemy < 0 {
		probNewEnemy = 0
	}
	if len(remaining) > 0 && rng.Float64() < probNewEnemy {
		enemyName := remaining[rng.Intn(len(remaining))]
		relMap.Set(name, enemyName, model.RelationshipEnemy)
	}
}

func removeName(names []string, target string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}
