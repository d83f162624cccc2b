// Package petai implements SPEC_FULL.md §4.9: the Pet AI, which assigns
// moods from observed activity and evolves a friend/enemy graph between
// pets, grounded on original_source/pet_monitor/pet_ai.py.
package petai

import (
	"sort"
	"strings"

	"lanpets.io/monitor/internal/model"
)

// MoodAttributes is the per-tick activity summary a mood algorithm reads.
type MoodAttributes struct {
	RXBps       float64
	TXBps       float64
	NumServices int
	OnLine      bool
	Availability float64
}

func numServices(iface model.NetworkInterfaceInfo) int {
	max := 0
	for _, key := range []model.ExtraInfoType{model.ExtraMDNSServices, model.ExtraNMAPServices} {
		v, ok := iface.Extra[key]
		if !ok || v == "" {
			continue
		}
		n := len(strings.Split(v, ","))
		if n > max {
			max = n
		}
	}
	return max
}

// median returns the statistical median across attrs for the given selector.
func median(attrs map[string]MoodAttributes, pick func(MoodAttributes) float64) float64 {
	if len(attrs) == 0 {
		return 0
	}
	vals := make([]float64, 0, len(attrs))
	for _, a := range attrs {
		vals = append(vals, pick(a))
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// medianAttributes computes the per-tick median of every numeric
// MoodAttributes field across the population (OnLine is left false), used
// by the ACTIVITY_SERVICES algorithm.
func medianAttributes(attrs map[string]MoodAttributes) MoodAttributes {
	return MoodAttributes{
		RXBps:        median(attrs, func(a MoodAttributes) float64 { return a.RXBps }),
		TXBps:        median(attrs, func(a MoodAttributes) float64 { return a.TXBps }),
		NumServices:  int(median(attrs, func(a MoodAttributes) float64 { return float64(a.NumServices) })),
		Availability: median(attrs, func(a MoodAttributes) float64 { return a.Availability }),
	}
}
