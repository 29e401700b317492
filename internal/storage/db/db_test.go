package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/storage/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, database.Close())
	})
	return database
}

func TestNew_RunsMigrations(t *testing.T) {
	database := newTestDB(t)

	version, err := database.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	for _, table := range []string{"installs", "installed_mods", "auth_tokens", "curse_files"} {
		var count int
		assert.NoError(t, database.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count), table)
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "flowupdater.db")

	database, err := db.New(path)
	require.NoError(t, err)
	require.NoError(t, database.StartInstall(&domain.InstallRecord{RunID: "run-1", Dir: "/games/pack", ForgeVersion: "1.16.5-36.2.39", Generation: "new", State: "created"}))
	require.NoError(t, database.Close())

	database, err = db.New(path)
	require.NoError(t, err)
	defer database.Close()

	version, err := database.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, version, "migrations are not applied twice")

	rec, err := database.GetInstall("run-1")
	require.NoError(t, err)
	assert.Equal(t, "/games/pack", rec.Dir)
}

func TestInstalls_StartAndFinish(t *testing.T) {
	database := newTestDB(t)

	rec := &domain.InstallRecord{
		RunID:        "run-1",
		Dir:          "/games/pack",
		ForgeVersion: "1.16.5-36.2.39",
		Generation:   "new",
		State:        "created",
	}
	require.NoError(t, database.StartInstall(rec))
	assert.False(t, rec.StartedAt.IsZero())

	inProgress, err := database.GetInstall("run-1")
	require.NoError(t, err)
	assert.True(t, inProgress.FinishedAt.IsZero())
	assert.False(t, inProgress.Succeeded())

	rec.State = "failed"
	rec.FailedIn = "patched"
	rec.Error = "running forge installer: java exited with code 1"
	rec.ModsInstalled = 2
	rec.FinishedAt = rec.StartedAt.Add(3 * time.Second)
	require.NoError(t, database.FinishInstall(rec))

	got, err := database.GetInstall("run-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.State)
	assert.Equal(t, "patched", got.FailedIn)
	assert.Equal(t, rec.Error, got.Error)
	assert.Equal(t, 2, got.ModsInstalled)
	assert.False(t, got.Succeeded())
	assert.Equal(t, 3*time.Second, got.Duration())
}

func TestInstalls_NotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetInstall("missing")
	assert.ErrorIs(t, err, db.ErrRunNotFound)

	err = database.FinishInstall(&domain.InstallRecord{RunID: "missing", State: "done"})
	assert.ErrorIs(t, err, db.ErrRunNotFound)
}

func TestInstalls_ListNewestFirst(t *testing.T) {
	database := newTestDB(t)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, dir := range []string{"/games/a", "/games/b", "/games/a"} {
		require.NoError(t, database.StartInstall(&domain.InstallRecord{
			RunID:        string(rune('1' + i)),
			Dir:          dir,
			ForgeVersion: "1.16.5-36.2.39",
			Generation:   "new",
			State:        "created",
			StartedAt:    start.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := database.ListInstalls("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"3", "2", "1"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	onlyA, err := database.ListInstalls("/games/a", 0)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)

	last, err := database.LastInstall("/games/a")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "3", last.RunID)

	none, err := database.LastInstall("/games/c")
	require.NoError(t, err)
	assert.Nil(t, none)

	limited, err := database.ListInstalls("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestInstalledMods(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.StartInstall(&domain.InstallRecord{RunID: "run-1", Dir: "/games/pack", ForgeVersion: "v", Generation: "new", State: "created"}))

	mods := []domain.Mod{
		{Name: "jei", DownloadURL: "https://example.com/jei.jar", SHA1: "aa", Size: 10, SourceID: domain.SourceDirect},
		{Name: "Botania.jar", DownloadURL: "https://example.com/botania.jar", SourceID: "curseforge"},
	}
	require.NoError(t, database.SaveInstalledMods("/games/pack", "run-1", mods))

	got, err := database.GetInstalledMods("/games/pack")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Botania.jar", got[0].FileName)
	assert.Empty(t, got[0].SHA1)
	assert.Equal(t, "jei.jar", got[1].FileName)
	assert.Equal(t, "aa", got[1].SHA1)
	assert.Equal(t, int64(10), got[1].Size)
	assert.Equal(t, "run-1", got[1].RunID)

	// Upsert by file name
	mods[0].SHA1 = "bb"
	require.NoError(t, database.SaveInstalledMods("/games/pack", "", mods[:1]))
	got, err = database.GetInstalledMods("/games/pack")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bb", got[1].SHA1)

	require.NoError(t, database.DeleteInstalledMods("/games/pack", []string{"jei.jar"}))
	got, err = database.GetInstalledMods("/games/pack")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Botania.jar", got[0].FileName)

	other, err := database.GetInstalledMods("/games/other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCurseFiles(t *testing.T) {
	database := newTestDB(t)
	ref := domain.CurseModInfo{ProjectID: 238222, FileID: 3043174}

	cached, err := database.CachedCurseFile(ref)
	require.NoError(t, err)
	assert.Nil(t, cached)

	require.NoError(t, database.SaveCurseFile(ref, domain.Mod{Name: "jei-1.16.5.jar", DownloadURL: "https://edge.forgecdn.net/files/3043/174/jei-1.16.5.jar", SHA1: "abc", Size: 99}))

	cached, err = database.CachedCurseFile(ref)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "jei-1.16.5.jar", cached.Name)
	assert.Equal(t, "abc", cached.SHA1)
	assert.Equal(t, int64(99), cached.Size)
	assert.Equal(t, "curseforge", cached.SourceID)
}
