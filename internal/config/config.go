// Package config decodes the daemon's HCL configuration file, in the style
// of the donor codebase's own config package (hashicorp/hcl/v2 +
// zclconf/go-cty), trimmed to a read-only decode — this daemon has no
// admin UI to round-trip edits back through.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// PingerConfig covers the `pinger` block.
type PingerConfig struct {
	UpdatePeriodSec int    `hcl:"update_period_sec,optional"`
	HistoryLen      string `hcl:"history_len,optional"` // e.g. "7d"
}

// TPLinkConfig covers the `tplink` block. Enabled iff present in the file.
type TPLinkConfig struct {
	RouterIP            string `hcl:"router_ip"`
	Username            string `hcl:"username"`
	Password            string `hcl:"password"`
	UpdatePeriodSec     int    `hcl:"update_period_sec,optional"`
	CollectTrafficData  bool   `hcl:"collect_traffic_data,optional"`
}

// NMAPConfig covers the `nmap` block.
type NMAPConfig struct {
	IPRanges         []string `hcl:"ip_ranges,optional"`
	UseSudo          bool     `hcl:"use_sudo,optional"`
	NMAPFlags        []string `hcl:"nmap_flags,optional"`
	TimeBetweenScans int      `hcl:"time_between_scans,optional"`
}

// SNMPConfig covers the `snmp` block.
type SNMPConfig struct {
	RouterIP           string `hcl:"router_ip,optional"`
	Community          string `hcl:"community,optional"`
	TimeBetweenScans   int    `hcl:"time_between_scans,optional"`
	CollectTrafficData bool   `hcl:"collect_traffic_data,optional"`
}

// MDNSConfig covers the `mdns` block.
type MDNSConfig struct {
	TimeBetweenUpdates int `hcl:"time_between_updates,optional"`
}

// PetAIConfig covers the `pet_ai` block.
type PetAIConfig struct {
	UpdatePeriodSec           int     `hcl:"update_period_sec,optional"`
	MoodAlgorithm             string  `hcl:"mood_algorithm,optional"` // RANDOM | ACTIVITY1 | ACTIVITY_SERVICES
	HistoryWindowSec          int     `hcl:"history_window_sec,optional"`
	UptimeThresholdPct        float64 `hcl:"uptime_threshold_pct,optional"`
	TxThresholdBps            float64 `hcl:"tx_threshold_bps,optional"`
	RxThresholdBps            float64 `hcl:"rx_threshold_bps,optional"`
	ProbLoseFriend            float64 `hcl:"prob_lose_friend,optional"`
	ProbLoseEnemy             float64 `hcl:"prob_lose_enemy,optional"`
	ProbMakeFriend            float64 `hcl:"prob_make_friend,optional"`
	ProbMakeFriendPerDrop     float64 `hcl:"prob_make_friend_per_friend_drop,optional"`
	ProbMakeEnemy             float64 `hcl:"prob_make_enemy,optional"`
	ProbMakeEnemyPerDrop      float64 `hcl:"prob_make_enemy_per_enemy_drop,optional"`
	FriendMoodMultiplier      float64 `hcl:"friend_mood_multiplier,optional"`
}

// Config is the root of the daemon's HCL configuration file.
type Config struct {
	DataDir               string        `hcl:"data_dir,optional"`
	PlotTimezone          string        `hcl:"plot_timezone,optional"`
	PlotDataWindowSec     int           `hcl:"plot_data_window_sec,optional"`
	HardCodedPetIfacesFile string       `hcl:"hard_coded_pet_interfaces_file,optional"`

	Pinger *PingerConfig `hcl:"pinger,block"`
	TPLink *TPLinkConfig `hcl:"tplink,block"`
	NMAP   *NMAPConfig   `hcl:"nmap,block"`
	SNMP   *SNMPConfig   `hcl:"snmp,block"`
	MDNS   *MDNSConfig   `hcl:"mdns,block"`
	PetAI  *PetAIConfig  `hcl:"pet_ai,block"`
}

// Default returns a Config populated with every default named in
// SPEC_FULL.md §6. Optional collectors (tplink, snmp router polling) are
// left disabled (nil / empty router_ip) until a file enables them.
func Default() *Config {
	return &Config{
		DataDir:           "data",
		PlotDataWindowSec: 7 * 24 * 3600,
		Pinger: &PingerConfig{
			UpdatePeriodSec: 60,
			HistoryLen:      "7d",
		},
		NMAP: &NMAPConfig{
			TimeBetweenScans: 600,
		},
		SNMP: &SNMPConfig{
			Community:        "public",
			TimeBetweenScans: 600,
		},
		MDNS: &MDNSConfig{
			TimeBetweenUpdates: 600,
		},
		PetAI: &PetAIConfig{
			UpdatePeriodSec:       3600,
			MoodAlgorithm:         "ACTIVITY1",
			HistoryWindowSec:      3600,
			UptimeThresholdPct:    50,
			TxThresholdBps:        1000,
			RxThresholdBps:        1000,
			ProbLoseFriend:        0.01,
			ProbLoseEnemy:         0.01,
			ProbMakeFriend:        0.05,
			ProbMakeFriendPerDrop: 0.01,
			ProbMakeEnemy:         0.02,
			ProbMakeEnemyPerDrop:  0.01,
			FriendMoodMultiplier:  2,
		},
	}
}

// ParseHistoryLen parses a retention window like "7d", "24h" or a bare
// second count into seconds. Only a single trailing unit suffix is
// supported (d=days, h=hours, m=minutes, s=seconds or no suffix).
func ParseHistoryLen(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty history_len")
	}
	unit := s[len(s)-1]
	var multiplier int64
	numPart := s
	switch unit {
	case 'd':
		multiplier = 24 * 3600
		numPart = s[:len(s)-1]
	case 'h':
		multiplier = 3600
		numPart = s[:len(s)-1]
	case 'm':
		multiplier = 60
		numPart = s[:len(s)-1]
	case 's':
		multiplier = 1
		numPart = s[:len(s)-1]
	default:
		multiplier = 1
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid history_len %q: %w", s, err)
	}
	return n * multiplier, nil
}

// Load decodes path over Default(), so a file only needs to set the keys it
// wants to override.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}
