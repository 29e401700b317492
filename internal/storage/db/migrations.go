package db

import "fmt"

func (d *DB) migrate() error {
	if _, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var version int
	err := d.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return fmt.Errorf("getting schema version: %w", err)
	}

	migrations := []func(*DB) error{
		migrateV1,
		migrateV2,
		migrateV3,
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](d); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := d.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// SchemaVersion returns the number of applied migrations
func (d *DB) SchemaVersion() (int, error) {
	var version int
	if err := d.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("getting schema version: %w", err)
	}
	return version, nil
}

func migrateV1(d *DB) error {
	statements := []string{
		`CREATE TABLE installs (
			run_id TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			forge_version TEXT NOT NULL,
			generation TEXT NOT NULL,
			state TEXT NOT NULL,
			failed_in TEXT,
			skipped INTEGER DEFAULT 0,
			forge_skipped INTEGER DEFAULT 0,
			mods_installed INTEGER DEFAULT 0,
			mods_skipped INTEGER DEFAULT 0,
			stale_deleted INTEGER DEFAULT 0,
			error TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,
		`CREATE INDEX idx_installs_dir ON installs(dir, started_at)`,
		`CREATE TABLE auth_tokens (
			source_id TEXT PRIMARY KEY,
			token_data BLOB,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:30], err)
		}
	}

	return nil
}

func migrateV2(d *DB) error {
	// Mod files currently placed in each game directory
	_, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS installed_mods (
			dir TEXT NOT NULL,
			file_name TEXT NOT NULL,
			sha1 TEXT,
			size INTEGER DEFAULT 0,
			source_id TEXT,
			url TEXT,
			run_id TEXT REFERENCES installs(run_id) ON DELETE SET NULL,
			installed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY(dir, file_name)
		)
	`)
	return err
}

func migrateV3(d *DB) error {
	// Resolved CurseForge files, so repeated runs skip the API
	_, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS curse_files (
			project_id INTEGER NOT NULL,
			file_id INTEGER NOT NULL,
			file_name TEXT NOT NULL,
			download_url TEXT NOT NULL,
			sha1 TEXT,
			size INTEGER DEFAULT 0,
			cached_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY(project_id, file_id)
		)
	`)
	return err
}
