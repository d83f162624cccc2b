package store

import (
	"database/sql"
	"errors"
	"fmt"

	"lanpets.io/monitor/internal/model"
)

// UpsertPet inserts pet, or on name collision overwrites every field and
// clears is_deleted (so a soft-deleted pet is revived, P8).
func (s *Store) UpsertPet(p model.PetInfo) error {
	_, err := s.db.Exec(`INSERT INTO pet_info (name, identifier_type, identifier_value, device_type, description, mood, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(name) DO UPDATE SET
			identifier_type = excluded.identifier_type,
			identifier_value = excluded.identifier_value,
			device_type = excluded.device_type,
			description = excluded.description,
			mood = excluded.mood,
			is_deleted = 0`,
		p.Name, string(p.IdentifierType), p.IdentifierValue, string(p.DeviceType), p.Description, int(p.Mood))
	if err != nil {
		return fmt.Errorf("upsert pet %q: %w", p.Name, err)
	}
	return nil
}

// SoftDeletePet marks a pet deleted. Idempotent.
func (s *Store) SoftDeletePet(name string) error {
	_, err := s.db.Exec(`UPDATE pet_info SET is_deleted = 1 WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("soft delete pet %q: %w", name, err)
	}
	return nil
}

// GetPet returns a single non-deleted pet by name.
func (s *Store) GetPet(name string) (model.PetInfo, bool, error) {
	row := s.db.QueryRow(`SELECT row_id, name, identifier_type, identifier_value, device_type, description, mood, is_deleted
		FROM pet_info WHERE name = ? AND is_deleted = 0`, name)
	p, err := scanPet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PetInfo{}, false, nil
	}
	if err != nil {
		return model.PetInfo{}, false, fmt.Errorf("get pet %q: %w", name, err)
	}
	return p, true, nil
}

// ListPets returns every non-deleted pet.
func (s *Store) ListPets() ([]model.PetInfo, error) {
	rows, err := s.db.Query(`SELECT row_id, name, identifier_type, identifier_value, device_type, description, mood, is_deleted
		FROM pet_info WHERE is_deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	var out []model.PetInfo
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPet(row rowScanner) (model.PetInfo, error) {
	var p model.PetInfo
	var idType, devType string
	var mood int
	if err := row.Scan(&p.RowID, &p.Name, &idType, &p.IdentifierValue, &devType, &p.Description, &mood, &p.IsDeleted); err != nil {
		return p, err
	}
	p.IdentifierType = model.IdentifierType(idType)
	p.DeviceType = model.DeviceType(devType)
	p.Mood = model.Mood(mood)
	return p, nil
}

// UpdatePetMood sets a pet's mood. No-op if the pet is absent.
func (s *Store) UpdatePetMood(name string, mood model.Mood) error {
	_, err := s.db.Exec(`UPDATE pet_info SET mood = ? WHERE name = ? AND is_deleted = 0`, int(mood), name)
	if err != nil {
		return fmt.Errorf("update mood for %q: %w", name, err)
	}
	return nil
}

func (s *Store) petRowID(name string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT row_id FROM pet_info WHERE name = ? AND is_deleted = 0`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// AppendAvailability records one reachability sample. Fails silently
// (returns nil) if the pet has since been deleted.
func (s *Store) AppendAvailability(name string, available bool, ts int64) error {
	id, ok, err := s.petRowID(name)
	if err != nil {
		return fmt.Errorf("append availability for %q: %w", name, err)
	}
	if !ok {
		return nil
	}
	_, err = s.db.Exec(`INSERT INTO device_availability (name_id, is_availabile, timestamp) VALUES (?, ?, ?)`, id, available, ts)
	if err != nil {
		return fmt.Errorf("append availability for %q: %w", name, err)
	}
	return nil
}

// AppendTraffic records one traffic sample. Fails silently if the pet has
// since been deleted.
func (s *Store) AppendTraffic(name string, rxBytes, txBytes, ts int64) error {
	id, ok, err := s.petRowID(name)
	if err != nil {
		return fmt.Errorf("append traffic for %q: %w", name, err)
	}
	if !ok {
		return nil
	}
	_, err = s.db.Exec(`INSERT INTO traffic_stats (name_id, rx_bytes, tx_bytes, timestamp) VALUES (?, ?, ?, ?)`, id, rxBytes, txBytes, ts)
	if err != nil {
		return fmt.Errorf("append traffic for %q: %w", name, err)
	}
	return nil
}

// AppendCPU records one CPU/memory sample. Fails silently if the pet has
// since been deleted.
func (s *Store) AppendCPU(name string, cpuPct, memPct float64, ts int64) error {
	id, ok, err := s.petRowID(name)
	if err != nil {
		return fmt.Errorf("append cpu for %q: %w", name, err)
	}
	if !ok {
		return nil
	}
	_, err = s.db.Exec(`INSERT INTO device_cpu_stats (name_id, cpu_used_percent, mem_used_percent, timestamp) VALUES (?, ?, ?, ?)`, id, cpuPct, memPct, ts)
	if err != nil {
		return fmt.Errorf("append cpu for %q: %w", name, err)
	}
	return nil
}
