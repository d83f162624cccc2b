package store

import (
	"fmt"

	"lanpets.io/monitor/internal/model"
)

// MeanAvailability returns, for each name, the percentage of availability
// samples since `since` that were true.
func (s *Store) MeanAvailability(names []string, since int64) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	for _, name := range names {
		id, ok, err := s.petRowID(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var total, positive int64
		row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(is_availabile), 0) FROM device_availability
			WHERE name_id = ? AND timestamp >= ?`, id, since)
		if err := row.Scan(&total, &positive); err != nil {
			return nil, fmt.Errorf("mean availability for %q: %w", name, err)
		}
		if total == 0 {
			continue
		}
		out[name] = float64(positive) / float64(total) * 100.0
	}
	return out, nil
}

// CurrentAvailability returns the most recent availability sample per name.
func (s *Store) CurrentAvailability(names []string) (map[string]bool, error) {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		id, ok, err := s.petRowID(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var available bool
		row := s.db.QueryRow(`SELECT is_availabile FROM device_availability WHERE name_id = ? ORDER BY rowid DESC LIMIT 1`, id)
		if err := row.Scan(&available); err != nil {
			continue // no samples yet
		}
		out[name] = available
	}
	return out, nil
}

// LastSeen returns, for each name, the max timestamp at which it was
// available, or 0 if never seen available.
func (s *Store) LastSeen(names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	for _, name := range names {
		out[name] = 0
		id, ok, err := s.petRowID(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var ts *int64
		row := s.db.QueryRow(`SELECT MAX(timestamp) FROM device_availability WHERE name_id = ? AND is_availabile = 1`, id)
		if err := row.Scan(&ts); err != nil {
			return nil, fmt.Errorf("last seen for %q: %w", name, err)
		}
		if ts != nil {
			out[name] = *ts
		}
	}
	return out, nil
}

// LoadTraffic returns the ordered traffic series per name since the given
// timestamp.
func (s *Store) LoadTraffic(names []string, since int64) (map[string][]model.TrafficSample, error) {
	out := make(map[string][]model.TrafficSample, len(names))
	for _, name := range names {
		id, ok, err := s.petRowID(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows, err := s.db.Query(`SELECT rx_bytes, tx_bytes, timestamp FROM traffic_stats
			WHERE name_id = ? AND timestamp >= ? ORDER BY timestamp ASC`, id, since)
		if err != nil {
			return nil, fmt.Errorf("load traffic for %q: %w", name, err)
		}
		var series []model.TrafficSample
		for rows.Next() {
			var t model.TrafficSample
			if err := rows.Scan(&t.RXBytes, &t.TXBytes, &t.Timestamp); err != nil {
				rows.Close()
				return nil, err
			}
			series = append(series, t)
		}
		rows.Close()
		out[name] = series
	}
	return out, nil
}

// LoadCPU returns the ordered CPU/memory series per name since the given
// timestamp.
func (s *Store) LoadCPU(names []string, since int64) (map[string][]model.CPUSample, error) {
	out := make(map[string][]model.CPUSample, len(names))
	for _, name := range names {
		id, ok, err := s.petRowID(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows, err := s.db.Query(`SELECT cpu_used_percent, mem_used_percent, timestamp FROM device_cpu_stats
			WHERE name_id = ? AND timestamp >= ? ORDER BY timestamp ASC`, id, since)
		if err != nil {
			return nil, fmt.Errorf("load cpu for %q: %w", name, err)
		}
		var series []model.CPUSample
		for rows.Next() {
			var c model.CPUSample
			if err := rows.Scan(&c.CPUUsedPercent, &c.MemUsedPercent, &c.Timestamp); err != nil {
				rows.Close()
				return nil, err
			}
			series = append(series, c)
		}
		rows.Close()
		out[name] = series
	}
	return out, nil
}

// MeanBPS reduces a traffic series into per-interval bytes-per-second
// points. The first point always has bps 0 (no predecessor to diff
// against). A counter reset (Δbytes < 0) contributes 0, never a negative
// value (P6).
func MeanBPS(series []model.TrafficSample) []model.BPSPoint {
	points := make([]model.BPSPoint, len(series))
	for i, sample := range series {
		points[i] = model.BPSPoint{RXBytes: sample.RXBytes, TXBytes: sample.TXBytes, Timestamp: sample.Timestamp}
		if i == 0 {
			continue
		}
		prev := series[i-1]
		dt := sample.Timestamp - prev.Timestamp
		if dt <= 0 {
			continue
		}
		points[i].RXBps = clampNonNegative(float64(sample.RXBytes-prev.RXBytes) / float64(dt))
		points[i].TXBps = clampNonNegative(float64(sample.TXBytes-prev.TXBytes) / float64(dt))
	}
	return points
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// MeanTraffic averages the rx/tx bps of a series. When ignoreZero is true,
// intervals whose bps is exactly zero (idle periods) are excluded from the
// mean, avoiding idle-period dilution.
func MeanTraffic(series []model.TrafficSample, ignoreZero bool) (rxMean, txMean float64) {
	points := MeanBPS(series)
	var rxSum, txSum float64
	var rxN, txN int
	for i, p := range points {
		if i == 0 {
			continue // first point carries no interval
		}
		if !ignoreZero || p.RXBps != 0 {
			rxSum += p.RXBps
			rxN++
		}
		if !ignoreZero || p.TXBps != 0 {
			txSum += p.TXBps
			txN++
		}
	}
	if rxN > 0 {
		rxMean = rxSum / float64(rxN)
	}
	if txN > 0 {
		txMean = txSum / float64(txN)
	}
	return rxMean, txMean
}

// DeleteEntriesOlderThan bulk-deletes rows older than cutoff from one of
// the three time-series tables (P5).
func (s *Store) DeleteEntriesOlderThan(table string, cutoff int64) error {
	switch table {
	case "traffic_stats", "device_availability", "device_cpu_stats":
	default:
		return fmt.Errorf("delete_entries_older_than: unknown table %q", table)
	}
	_, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE timestamp < ?`, table), cutoff)
	if err != nil {
		return fmt.Errorf("delete old rows from %s: %w", table, err)
	}
	return nil
}
