package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// ErrRunNotFound is returned when no install run has the requested ID
var ErrRunNotFound = errors.New("install run not found")

const installColumns = `run_id, dir, forge_version, generation, state, failed_in, skipped, forge_skipped,
	mods_installed, mods_skipped, stale_deleted, error, started_at, finished_at`

// StartInstall records the beginning of an install run
func (d *DB) StartInstall(rec *domain.InstallRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	_, err := d.Exec(`
		INSERT INTO installs (run_id, dir, forge_version, generation, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Dir, rec.ForgeVersion, rec.Generation, rec.State, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("starting install record: %w", err)
	}
	return nil
}

// FinishInstall stores the outcome of an install run
func (d *DB) FinishInstall(rec *domain.InstallRecord) error {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}
	result, err := d.Exec(`
		UPDATE installs SET
			state = ?, failed_in = ?, skipped = ?, forge_skipped = ?,
			mods_installed = ?, mods_skipped = ?, stale_deleted = ?,
			error = ?, finished_at = ?
		WHERE run_id = ?
	`, rec.State, nullString(rec.FailedIn), rec.Skipped, rec.ForgeSkipped,
		rec.ModsInstalled, rec.ModsSkipped, rec.StaleDeleted,
		nullString(rec.Error), rec.FinishedAt, rec.RunID)
	if err != nil {
		return fmt.Errorf("finishing install record: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetInstall returns one install run by ID
func (d *DB) GetInstall(runID string) (*domain.InstallRecord, error) {
	row := d.QueryRow(`SELECT `+installColumns+` FROM installs WHERE run_id = ?`, runID)
	rec, err := scanInstall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return rec, err
}

// ListInstalls returns the most recent runs first. An empty dir lists every directory;
// limit <= 0 means no limit.
func (d *DB) ListInstalls(dir string, limit int) ([]domain.InstallRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.Query(`
		SELECT `+installColumns+`
		FROM installs
		WHERE ? = '' OR dir = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, dir, dir, limit)
	if err != nil {
		return nil, fmt.Errorf("querying installs: %w", err)
	}
	defer rows.Close()

	var records []domain.InstallRecord
	for rows.Next() {
		rec, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// LastInstall returns the most recent run for dir, or nil when there is none
func (d *DB) LastInstall(dir string) (*domain.InstallRecord, error) {
	records, err := d.ListInstalls(dir, 1)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstall(s scanner) (*domain.InstallRecord, error) {
	var (
		rec      domain.InstallRecord
		failedIn sql.NullString
		errText  sql.NullString
		finished sql.NullTime
	)
	err := s.Scan(
		&rec.RunID, &rec.Dir, &rec.ForgeVersion, &rec.Generation, &rec.State, &failedIn,
		&rec.Skipped, &rec.ForgeSkipped, &rec.ModsInstalled, &rec.ModsSkipped, &rec.StaleDeleted,
		&errText, &rec.StartedAt, &finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning install: %w", err)
	}
	rec.FailedIn = failedIn.String
	rec.Error = errText.String
	if finished.Valid {
		rec.FinishedAt = finished.Time
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
