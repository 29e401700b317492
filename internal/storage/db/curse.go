package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// CachedCurseFile returns a previously resolved CurseForge file, or nil when unknown
func (d *DB) CachedCurseFile(ref domain.CurseModInfo) (*domain.Mod, error) {
	var (
		mod  domain.Mod
		hash sql.NullString
	)
	err := d.QueryRow(`
		SELECT file_name, download_url, sha1, size
		FROM curse_files
		WHERE project_id = ? AND file_id = ?
	`, ref.ProjectID, ref.FileID).Scan(&mod.Name, &mod.DownloadURL, &hash, &mod.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting curse file %d/%d: %w", ref.ProjectID, ref.FileID, err)
	}
	mod.SHA1 = hash.String
	mod.SourceID = "curseforge"
	return &mod, nil
}

// SaveCurseFile caches the resolution of a CurseForge file reference.
// File IDs are immutable on CurseForge, so entries never expire.
func (d *DB) SaveCurseFile(ref domain.CurseModInfo, mod domain.Mod) error {
	_, err := d.Exec(`
		INSERT INTO curse_files (project_id, file_id, file_name, download_url, sha1, size)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_id) DO UPDATE SET
			file_name = excluded.file_name,
			download_url = excluded.download_url,
			sha1 = excluded.sha1,
			size = excluded.size,
			cached_at = CURRENT_TIMESTAMP
	`, ref.ProjectID, ref.FileID, mod.Name, mod.DownloadURL, nullString(mod.SHA1), mod.Size)
	if err != nil {
		return fmt.Errorf("saving curse file %d/%d: %w", ref.ProjectID, ref.FileID, err)
	}
	return nil
}
