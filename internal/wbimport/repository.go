package wbimport

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/database"
)

// SQLiteStore implements Store on the import_state tables. Rows are
// scoped by module id.
type SQLiteStore struct {
	db       *database.DB
	moduleID string
}

// NewSQLiteStore creates a store for one module. The migrations must
// already be applied.
func NewSQLiteStore(db *database.DB, moduleID string) *SQLiteStore {
	return &SQLiteStore{db: db, moduleID: moduleID}
}

// Load reads the module's snapshot. An empty database yields an empty
// snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Descriptors: make(map[string]Descriptor)}

	var err error
	snap.Known, err = s.queryIDs(ctx,
		`SELECT device_id FROM known_devices WHERE module_id = ? ORDER BY position`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading known devices: %w", err)
	}
	snap.Enabled, err = s.queryIDs(ctx,
		`SELECT device_id FROM enabled_devices WHERE module_id = ? ORDER BY device_id`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading enabled devices: %w", err)
	}

	const query = `SELECT device_id, name, type, readonly, level, max_level, topic
		FROM device_descriptors WHERE module_id = ?`
	rows, err := s.db.QueryContext(ctx, query, s.moduleID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading descriptors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d        Descriptor
			readonly int
			level    sql.NullString
		)
		if err := rows.Scan(&d.DeviceID, &d.Name, &d.Type, &readonly, &level, &d.MaxLevel, &d.Topic); err != nil {
			return Snapshot{}, fmt.Errorf("scanning descriptor: %w", err)
		}
		d.Readonly = readonly != 0
		if level.Valid {
			v := level.String
			d.Level = &v
		}
		snap.Descriptors[d.DeviceID] = d
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterating descriptors: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, s.moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Save replaces the module's snapshot in one transaction. Discovery
// times of ids that stay known are preserved.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	now := time.Now().UTC().Format(time.RFC3339)

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		discovered, err := s.discoveryTimes(ctx, tx)
		if err != nil {
			return err
		}

		for _, table := range []string{"known_devices", "enabled_devices", "device_descriptors"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE module_id = ?`, s.moduleID); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		for i, id := range snap.Known {
			at, ok := discovered[id]
			if !ok {
				at = now
			}
			const query = `INSERT INTO known_devices (module_id, device_id, position, discovered_at)
				VALUES (?, ?, ?, ?)`
			if _, err := tx.ExecContext(ctx, query, s.moduleID, id, i, at); err != nil {
				return fmt.Errorf("inserting known device %s: %w", id, err)
			}
		}

		for _, id := range snap.Enabled {
			const query = `INSERT OR IGNORE INTO enabled_devices (module_id, device_id) VALUES (?, ?)`
			if _, err := tx.ExecContext(ctx, query, s.moduleID, id); err != nil {
				return fmt.Errorf("inserting enabled device %s: %w", id, err)
			}
		}

		for id, d := range snap.Descriptors {
			readonly := 0
			if d.Readonly {
				readonly = 1
			}
			const query = `INSERT INTO device_descriptors
				(module_id, device_id, name, type, readonly, level, max_level, topic, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
			_, err := tx.ExecContext(ctx, query,
				s.moduleID, id, d.Name, d.Type, readonly, nullStr(d.Level), d.MaxLevel, d.Topic, now)
			if err != nil {
				return fmt.Errorf("inserting descriptor %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) discoveryTimes(ctx context.Context, tx *sql.Tx) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT device_id, discovered_at FROM known_devices WHERE module_id = ?`, s.moduleID)
	if err != nil {
		return nil, fmt.Errorf("reading discovery times: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scanning discovery time: %w", err)
		}
		out[id] = at
	}
	return out, rows.Err()
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
