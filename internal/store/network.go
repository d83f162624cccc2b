package store

import (
	"database/sql"
	"fmt"

	"lanpets.io/monitor/internal/identity"
	"lanpets.io/monitor/internal/model"
)

// AddNetworkInfo merges a newly observed record into the store per the
// identity merge rule (SPEC_FULL.md §4.2). extra is upserted into the
// resulting row's extra_network_info bag.
func (s *Store) AddNetworkInfo(rec model.NetworkInterfaceInfo, extra map[model.ExtraInfoType]string) error {
	if !rec.HasIdentity() {
		return fmt.Errorf("identity merger: record with no identifying field is inadmissible")
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.clock.Now().Unix()
	}
	rec.Extra = extra

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	dups, err := s.findDuplicates(tx, rec)
	if err != nil {
		return fmt.Errorf("find duplicates: %w", err)
	}

	plan := identity.Compute(dups, rec)

	for _, op := range plan.Nullify {
		if _, err := tx.Exec(`UPDATE network_info SET
			mac = CASE WHEN ? THEN NULL ELSE mac END,
			ip = CASE WHEN ? THEN NULL ELSE ip END,
			dns_hostname = CASE WHEN ? THEN NULL ELSE dns_hostname END
			WHERE row_id = ?`, op.ClearMAC, op.ClearIP, op.ClearDNS, op.RowID); err != nil {
			return fmt.Errorf("null out duplicate %d: %w", op.RowID, err)
		}
	}
	for _, rowID := range plan.Delete {
		if _, err := tx.Exec(`DELETE FROM network_info WHERE row_id = ?`, rowID); err != nil {
			return fmt.Errorf("delete duplicate %d: %w", rowID, err)
		}
	}

	if plan.IsNew {
		res, err := tx.Exec(`INSERT INTO network_info (mac, ip, dns_hostname, mdns_hostname, timestamp) VALUES (?, ?, ?, ?, ?)`,
			plan.Result.MAC, plan.Result.IP, plan.Result.DNSHostname, plan.Result.MDNSHostname, plan.Result.Timestamp)
		if err != nil {
			return fmt.Errorf("insert network_info: %w", err)
		}
		plan.Result.RowID, _ = res.LastInsertId()
	} else {
		if _, err := tx.Exec(`UPDATE network_info SET mac=?, ip=?, dns_hostname=?, mdns_hostname=?, timestamp=? WHERE row_id=?`,
			plan.Result.MAC, plan.Result.IP, plan.Result.DNSHostname, plan.Result.MDNSHostname, plan.Result.Timestamp, plan.Result.RowID); err != nil {
			return fmt.Errorf("update network_info: %w", err)
		}
	}

	for t, v := range plan.Result.Extra {
		if _, err := tx.Exec(`INSERT INTO extra_network_info (network_id, type, info) VALUES (?, ?, ?)
			ON CONFLICT(network_id, type) DO UPDATE SET info = excluded.info`, plan.Result.RowID, string(t), v); err != nil {
			return fmt.Errorf("upsert extra_network_info: %w", err)
		}
	}

	return tx.Commit()
}

// findDuplicates loads every network_info row that shares a non-null
// partial key with rec.
func (s *Store) findDuplicates(tx *sql.Tx, rec model.NetworkInterfaceInfo) ([]model.NetworkInterfaceInfo, error) {
	seen := map[int64]bool{}
	var out []model.NetworkInterfaceInfo

	add := func(col string, val *string) error {
		if val == nil {
			return nil
		}
		rows, err := tx.Query(`SELECT row_id, mac, ip, dns_hostname, mdns_hostname, timestamp FROM network_info WHERE `+col+` = ?`, *val)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanNetworkInfo(rows)
			if err != nil {
				return err
			}
			if !seen[r.RowID] {
				seen[r.RowID] = true
				out = append(out, r)
			}
		}
		return rows.Err()
	}

	if err := add("mac", rec.MAC); err != nil {
		return nil, err
	}
	if err := add("ip", rec.IP); err != nil {
		return nil, err
	}
	if err := add("dns_hostname", rec.DNSHostname); err != nil {
		return nil, err
	}

	for i := range out {
		extra, err := loadExtra(tx, out[i].RowID)
		if err != nil {
			return nil, err
		}
		out[i].Extra = extra
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNetworkInfo(row rowScanner) (model.NetworkInterfaceInfo, error) {
	var r model.NetworkInterfaceInfo
	if err := row.Scan(&r.RowID, &r.MAC, &r.IP, &r.DNSHostname, &r.MDNSHostname, &r.Timestamp); err != nil {
		return r, err
	}
	return r, nil
}

func loadExtra(tx *sql.Tx, rowID int64) (map[model.ExtraInfoType]string, error) {
	rows, err := tx.Query(`SELECT type, info FROM extra_network_info WHERE network_id = ?`, rowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.ExtraInfoType]string{}
	for rows.Next() {
		var t, info string
		if err := rows.Scan(&t, &info); err != nil {
			return nil, err
		}
		out[model.ExtraInfoType(t)] = info
	}
	return out, rows.Err()
}

// ListNetworkInfo returns every network_info row with its extra_info bag.
func (s *Store) ListNetworkInfo() ([]model.NetworkInterfaceInfo, error) {
	rows, err := s.db.Query(`SELECT row_id, mac, ip, dns_hostname, mdns_hostname, timestamp FROM network_info`)
	if err != nil {
		return nil, fmt.Errorf("list network_info: %w", err)
	}
	defer rows.Close()

	var out []model.NetworkInterfaceInfo
	for rows.Next() {
		r, err := scanNetworkInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		extra, err := loadExtraNoTx(s.db, out[i].RowID)
		if err != nil {
			return nil, err
		}
		out[i].Extra = extra
	}
	return out, nil
}

func loadExtraNoTx(db *sql.DB, rowID int64) (map[model.ExtraInfoType]string, error) {
	rows, err := db.Query(`SELECT type, info FROM extra_network_info WHERE network_id = ?`, rowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.ExtraInfoType]string{}
	for rows.Next() {
		var t, info string
		if err := rows.Scan(&t, &info); err != nil {
			return nil, err
		}
		out[model.ExtraInfoType(t)] = info
	}
	return out, rows.Err()
}

// ResolvePetsToInterfaces resolves each pet by equating identifier_value
// against the field named by identifier_type (HOST matches either
// dns_hostname or mdns_hostname). When no interface matches, a minimal
// synthetic record is returned carrying only identifier_value under the
// appropriate field, so callers never need a null branch (P4).
func (s *Store) ResolvePetsToInterfaces(pets []model.PetInfo) (map[string]model.NetworkInterfaceInfo, error) {
	all, err := s.ListNetworkInfo()
	if err != nil {
		return nil, err
	}

	result := make(map[string]model.NetworkInterfaceInfo, len(pets))
	for _, p := range pets {
		if iface, ok := resolveOne(all, p); ok {
			result[p.Name] = iface
			continue
		}
		result[p.Name] = syntheticInterface(p)
	}
	return result, nil
}

func resolveOne(all []model.NetworkInterfaceInfo, p model.PetInfo) (model.NetworkInterfaceInfo, bool) {
	for _, iface := range all {
		switch p.IdentifierType {
		case model.IdentifierMAC:
			if iface.MAC != nil && *iface.MAC == p.IdentifierValue {
				return iface, true
			}
		case model.IdentifierIP:
			if iface.IP != nil && *iface.IP == p.IdentifierValue {
				return iface, true
			}
		case model.IdentifierHost:
			if (iface.DNSHostname != nil && *iface.DNSHostname == p.IdentifierValue) ||
				(iface.MDNSHostname != nil && *iface.MDNSHostname == p.IdentifierValue) {
				return iface, true
			}
		}
	}
	return model.NetworkInterfaceInfo{}, false
}

func syntheticInterface(p model.PetInfo) model.NetworkInterfaceInfo {
	v := p.IdentifierValue
	iface := model.NetworkInterfaceInfo{}
	switch p.IdentifierType {
	case model.IdentifierMAC:
		iface.MAC = &v
	case model.IdentifierIP:
		iface.IP = &v
	case model.IdentifierHost:
		iface.DNSHostname = &v
	}
	return iface
}
