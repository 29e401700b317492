package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// SaveInstalledMods records the mods placed in dir by a run, replacing earlier records
// for the same file names
func (d *DB) SaveInstalledMods(dir, runID string, mods []domain.Mod) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, mod := range mods {
		_, err := tx.Exec(`
			INSERT INTO installed_mods (dir, file_name, sha1, size, source_id, url, run_id, installed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(dir, file_name) DO UPDATE SET
				sha1 = excluded.sha1,
				size = excluded.size,
				source_id = excluded.source_id,
				url = excluded.url,
				run_id = excluded.run_id,
				installed_at = excluded.installed_at
		`, dir, mod.FileName(), mod.SHA1, mod.Size, mod.SourceID, mod.DownloadURL, nullString(runID), now)
		if err != nil {
			return fmt.Errorf("saving installed mod %s: %w", mod.FileName(), err)
		}
	}

	return tx.Commit()
}

// GetInstalledMods returns the recorded mods of dir ordered by file name
func (d *DB) GetInstalledMods(dir string) ([]domain.InstalledMod, error) {
	rows, err := d.Query(`
		SELECT dir, file_name, sha1, size, source_id, url, run_id, installed_at
		FROM installed_mods
		WHERE dir = ?
		ORDER BY file_name
	`, dir)
	if err != nil {
		return nil, fmt.Errorf("querying installed mods: %w", err)
	}
	defer rows.Close()

	var mods []domain.InstalledMod
	for rows.Next() {
		var (
			mod                      domain.InstalledMod
			hash, source, url, runID sql.NullString
		)
		if err := rows.Scan(&mod.Dir, &mod.FileName, &hash, &mod.Size, &source, &url, &runID, &mod.InstalledAt); err != nil {
			return nil, fmt.Errorf("scanning installed mod: %w", err)
		}
		mod.SHA1 = hash.String
		mod.SourceID = source.String
		mod.URL = url.String
		mod.RunID = runID.String
		mods = append(mods, mod)
	}

	return mods, rows.Err()
}

// DeleteInstalledMods removes the records of the given file names in dir
func (d *DB) DeleteInstalledMods(dir string, fileNames []string) error {
	for _, name := range fileNames {
		if _, err := d.Exec(`DELETE FROM installed_mods WHERE dir = ? AND file_name = ?`, dir, name); err != nil {
			return fmt.Errorf("deleting installed mod %s: %w", name, err)
		}
	}
	return nil
}
