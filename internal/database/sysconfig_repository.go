package database

import (
	"database/sql"
	"fmt"
	"time"

	"exportdesk/models"
)

// SysConfigRepository persists platform key/value configuration.
type SysConfigRepository struct {
	conn *sql.DB
}

// NewSysConfigRepository creates a system-config repository.
func NewSysConfigRepository(conn *sql.DB) *SysConfigRepository {
	return &SysConfigRepository{conn: conn}
}

// All returns every config row keyed by name.
func (r *SysConfigRepository) All() (map[string]string, error) {
	rows, err := r.conn.Query(`SELECT key, value FROM system_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Get returns one config entry, or ErrNotFound.
func (r *SysConfigRepository) Get(key string) (*models.SystemConfig, error) {
	var c models.SystemConfig
	err := r.conn.QueryRow(`SELECT key, value, description FROM system_config WHERE key = ?`, key).
		Scan(&c.Key, &c.Value, &c.Description)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return &c, nil
}

// Set inserts or updates a config entry.
func (r *SysConfigRepository) Set(key, value string) error {
	_, err := r.conn.Exec(`INSERT INTO system_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}
