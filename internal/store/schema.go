// Package store is the durable embedded relational store: schema,
// upsert/soft-delete semantics, time-bounded retention and time-series
// aggregation. It is the sole owner of all persisted rows; collectors and
// the pet AI loop never keep persistent state of their own.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/logging"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS network_info (
	row_id INTEGER PRIMARY KEY,
	mac VARCHAR(17) UNIQUE,
	ip VARCHAR(15) UNIQUE,
	dns_hostname VARCHAR(255) UNIQUE,
	mdns_hostname VARCHAR(255),
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS extra_network_info (
	network_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	info TEXT,
	UNIQUE (network_id, type),
	FOREIGN KEY (network_id) REFERENCES network_info(row_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pet_info (
	row_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	identifier_type TEXT NOT NULL,
	identifier_value TEXT NOT NULL,
	device_type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	mood INTEGER NOT NULL DEFAULT 0,
	is_deleted BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS traffic_stats (
	name_id INTEGER NOT NULL,
	rx_bytes INTEGER NOT NULL,
	tx_bytes INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	FOREIGN KEY (name_id) REFERENCES pet_info(row_id) ON DELETE CASCADE
);

-- is_availabile: spelling preserved from the original implementation's schema.
CREATE TABLE IF NOT EXISTS device_availability (
	name_id INTEGER NOT NULL,
	is_availabile BOOLEAN NOT NULL,
	timestamp INTEGER NOT NULL,
	FOREIGN KEY (name_id) REFERENCES pet_info(row_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS device_cpu_stats (
	name_id INTEGER NOT NULL,
	cpu_used_percent REAL NOT NULL,
	mem_used_percent REAL NOT NULL,
	timestamp INTEGER NOT NULL,
	FOREIGN KEY (name_id) REFERENCES pet_info(row_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pet_relationships (
	name1_id INTEGER NOT NULL,
	name2_id INTEGER NOT NULL,
	relationship TEXT NOT NULL,
	UNIQUE (name1_id, name2_id),
	FOREIGN KEY (name1_id) REFERENCES pet_info(row_id) ON DELETE CASCADE,
	FOREIGN KEY (name2_id) REFERENCES pet_info(row_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_traffic_name_ts ON traffic_stats(name_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_availability_name_ts ON device_availability(name_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_cpu_name_ts ON device_cpu_stats(name_id, timestamp);
`

// Store is the durable embedded relational store described in SPEC_FULL.md
// §4.1. Every exported method opens no more than the single shared *sql.DB
// connection pool; SQLite itself serializes writers.
type Store struct {
	db     *sql.DB
	clock  clock.Clock
	log    *logging.Logger
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the schema exists. WAL mode and foreign key enforcement are always on,
// per SPEC_FULL.md §6.
func Open(path string, c clock.Clock) (*Store, error) {
	if c == nil {
		c = &clock.RealClock{}
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite + WAL: single writer connection avoids SQLITE_BUSY storms

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, clock: c, log: logging.WithComponent("store")}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
