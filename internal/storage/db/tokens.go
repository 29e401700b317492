package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveAPIKey saves or replaces the API key of a mod source
func (d *DB) SaveAPIKey(sourceID, apiKey string) error {
	_, err := d.Exec(`
		INSERT INTO auth_tokens (source_id, token_data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source_id) DO UPDATE SET
			token_data = excluded.token_data,
			updated_at = CURRENT_TIMESTAMP
	`, sourceID, apiKey)
	if err != nil {
		return fmt.Errorf("saving api key: %w", err)
	}
	return nil
}

// APIKey returns the stored API key of a source, or "" when none is stored
func (d *DB) APIKey(sourceID string) (string, error) {
	var key string
	err := d.QueryRow(`SELECT token_data FROM auth_tokens WHERE source_id = ?`, sourceID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting api key: %w", err)
	}
	return key, nil
}

// DeleteAPIKey removes the API key of a source
func (d *DB) DeleteAPIKey(sourceID string) error {
	if _, err := d.Exec("DELETE FROM auth_tokens WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("deleting api key: %w", err)
	}
	return nil
}
