package store

import (
	"fmt"

	"lanpets.io/monitor/internal/model"
)

// AddRelationship inserts or overwrites the (canonically ordered) edge
// between name1 and name2.
func (s *Store) AddRelationship(name1, name2 string, kind model.RelationshipKind) error {
	a, b := model.CanonicalPair(name1, name2)
	idA, ok, err := s.petRowID(a)
	if err != nil || !ok {
		return err
	}
	idB, ok, err := s.petRowID(b)
	if err != nil || !ok {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO pet_relationships (name1_id, name2_id, relationship) VALUES (?, ?, ?)
		ON CONFLICT(name1_id, name2_id) DO UPDATE SET relationship = excluded.relationship`, idA, idB, string(kind))
	if err != nil {
		return fmt.Errorf("add relationship %s-%s: %w", a, b, err)
	}
	return nil
}

// RemoveRelationship deletes the edge between name1 and name2, if present.
func (s *Store) RemoveRelationship(name1, name2 string) error {
	a, b := model.CanonicalPair(name1, name2)
	idA, ok, err := s.petRowID(a)
	if err != nil || !ok {
		return err
	}
	idB, ok, err := s.petRowID(b)
	if err != nil || !ok {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM pet_relationships WHERE name1_id = ? AND name2_id = ?`, idA, idB)
	if err != nil {
		return fmt.Errorf("remove relationship %s-%s: %w", a, b, err)
	}
	return nil
}

// GetAllRelationships returns every stored relationship among the given
// names (or all pets if names is empty).
func (s *Store) GetAllRelationships(names []string) ([]model.Relationship, error) {
	rows, err := s.db.Query(`SELECT p1.name, p2.name, r.relationship
		FROM pet_relationships r
		JOIN pet_info p1 ON p1.row_id = r.name1_id
		JOIN pet_info p2 ON p2.row_id = r.name2_id`)
	if err != nil {
		return nil, fmt.Errorf("get all relationships: %w", err)
	}
	defer rows.Close()

	wanted := toSet(names)
	var out []model.Relationship
	for rows.Next() {
		var a, b, kind string
		if err := rows.Scan(&a, &b, &kind); err != nil {
			return nil, err
		}
		if len(wanted) > 0 && (!wanted[a] || !wanted[b]) {
			continue
		}
		out = append(out, model.Relationship{NameA: a, NameB: b, Kind: model.RelationshipKind(kind)})
	}
	return out, rows.Err()
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// RelMap is an in-memory, mutable view over a relationship set. Pet AI
// mutates it directly during a tick so that multiple relationship changes
// to the same pair within one tick are not independently re-derived from
// stale store reads; every mutation is mirrored into the Store immediately.
type RelMap struct {
	store *Store
	edges map[string]model.RelationshipKind // key: "a|b" canonical
}

func edgeKey(a, b string) string {
	x, y := model.CanonicalPair(a, b)
	return x + "|" + y
}

// GetRelationshipMap builds a RelMap over the relationships among names.
func (s *Store) GetRelationshipMap(names []string) (*RelMap, error) {
	rels, err := s.GetAllRelationships(names)
	if err != nil {
		return nil, err
	}
	rm := &RelMap{store: s, edges: make(map[string]model.RelationshipKind, len(rels))}
	for _, r := range rels {
		rm.edges[edgeKey(r.NameA, r.NameB)] = r.Kind
	}
	return rm, nil
}

// GetRelationship returns the kind of the edge between a and b, if any.
func (m *RelMap) GetRelationship(a, b string) (model.RelationshipKind, bool) {
	k, ok := m.edges[edgeKey(a, b)]
	return k, ok
}

// GetRelationships returns every pet related to name, mapped to the kind of
// its edge with name.
func (m *RelMap) GetRelationships(name string) map[string]model.RelationshipKind {
	out := map[string]model.RelationshipKind{}
	for key, kind := range m.edges {
		a, b := splitEdgeKey(key)
		if a == name {
			out[b] = kind
		} else if b == name {
			out[a] = kind
		}
	}
	return out
}

func splitEdgeKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// Set mutates the pair's edge to kind, mirroring into the Store.
func (m *RelMap) Set(a, b string, kind model.RelationshipKind) error {
	if err := m.store.AddRelationship(a, b, kind); err != nil {
		return err
	}
	m.edges[edgeKey(a, b)] = kind
	return nil
}

// Remove deletes the pair's edge, mirroring into the Store.
func (m *RelMap) Remove(a, b string) error {
	if err := m.store.RemoveRelationship(a, b); err != nil {
		return err
	}
	delete(m.edges, edgeKey(a, b))
	return nil
}
