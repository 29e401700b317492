package core_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/flowupdater/internal/core"
	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/source/curseforge"
	"github.com/DonovanMods/flowupdater/internal/storage/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, configYAML string) *core.Service {
	t.Helper()
	cfg := core.ServiceConfig{
		ConfigDir: t.TempDir(),
		DataDir:   t.TempDir(),
		CacheDir:  t.TempDir(),
		Logger:    quietLogger(),
	}
	if configYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.ConfigDir, "config.yaml"), []byte(configYAML), 0644))
	}

	svc, err := core.NewService(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewService(t *testing.T) {
	svc := newTestService(t, "")

	assert.FileExists(t, filepath.Join(svc.DataDir(), "flowupdater.db"))
	assert.Equal(t, 4, svc.Config().Workers)
	assert.NotNil(t, svc.Metrics())

	src, err := svc.GetSource(curseforge.SourceID)
	require.NoError(t, err)
	assert.Equal(t, "CurseForge", src.Name())
	assert.False(t, src.IsAuthenticated())
	assert.Len(t, svc.ListSources(), 1)
}

func TestNewService_InvalidConfig(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("workers: 0\n"), 0644))

	_, err := core.NewService(core.ServiceConfig{ConfigDir: configDir, DataDir: t.TempDir(), CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewService_InvalidLogLevel(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("log_level: chatty\n"), 0644))

	_, err := core.NewService(core.ServiceConfig{ConfigDir: configDir, DataDir: t.TempDir(), CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestService_APIKey(t *testing.T) {
	svc := newTestService(t, "")

	key, err := svc.APIKey(curseforge.SourceID)
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, svc.SaveAPIKey(curseforge.SourceID, "saved-key"))
	key, err = svc.APIKey(curseforge.SourceID)
	require.NoError(t, err)
	assert.Equal(t, "saved-key", key)

	src, err := svc.GetSource(curseforge.SourceID)
	require.NoError(t, err)
	assert.True(t, src.IsAuthenticated())

	require.NoError(t, svc.DeleteAPIKey(curseforge.SourceID))
	src, err = svc.GetSource(curseforge.SourceID)
	require.NoError(t, err)
	assert.False(t, src.IsAuthenticated())
}

func TestService_APIKey_ConfigWins(t *testing.T) {
	t.Setenv("FLOWUPDATER_CURSEFORGE_API_KEY", "env-key")
	svc := newTestService(t, "curseforge_api_key: file-key\n")

	require.NoError(t, svc.SaveAPIKey(curseforge.SourceID, "saved-key"))
	key, err := svc.APIKey(curseforge.SourceID)
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)
}

func TestService_Request(t *testing.T) {
	svc := newTestService(t, "maven_url: https://maven.example.com/releases\n")
	inst := &config.Instance{
		Dir:            "/games/modded",
		ForgeVersion:   "36.2.39",
		VanillaVersion: "1.16.5",
		ModsManifest:   "/games/mods.json",
		Mods:           []config.ModConfig{{Name: "jei", URL: "https://cdn.example.com/jei.jar"}},
		CurseMods:      []config.CurseModConfig{{ProjectID: 238222, FileID: 3043174}},
	}

	req, err := svc.Request(inst)
	require.NoError(t, err)
	assert.Equal(t, "/games/modded", req.Dir)
	assert.Equal(t, "/games/mods.json", req.ModsManifest)
	assert.Equal(t, "https://maven.example.com/releases", req.Version.MavenURL)
	assert.Equal(t, []domain.CurseModInfo{{ProjectID: 238222, FileID: 3043174}}, req.Version.CurseMods)
	require.Len(t, req.Version.Mods, 1)
	assert.Equal(t, domain.SourceDirect, req.Version.Mods[0].SourceID)
}

func TestService_InstallAndVerify(t *testing.T) {
	server := newForgeServer(t)
	server.addInstaller(t, newForgeVersion, map[string]string{"install_profile.json": "original"})
	server.addZip(t, "/patches.jar", map[string]string{"install_profile.json": "patched"})
	jei := server.addMod("jei")
	java, _ := fakeForgeJava(t, newForgeVersion, true, 0)

	svc := newTestService(t, fmt.Sprintf("java_path: %s\nmaven_url: %s\npatches_url: %s\n",
		java, server.URL+"/maven", server.URL+"/patches.jar"))

	inst := &config.Instance{
		Dir:          t.TempDir(),
		ForgeVersion: newForgeVersion,
		Mods:         []config.ModConfig{{Name: jei.Name, URL: jei.DownloadURL, SHA1: jei.SHA1, Size: jei.Size}},
	}

	res, err := svc.Install(context.Background(), inst, nil)
	require.NoError(t, err)
	assert.Equal(t, core.StateDone, res.Install.State)

	files, _, err := svc.Cache().Size()
	require.NoError(t, err)
	assert.Equal(t, 1, files, "mods are fetched through the cache")

	last, err := svc.LastInstall(inst.Dir)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, res.RunID, last.RunID)

	history, err := svc.History("", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	installed, err := svc.InstalledMods(inst.Dir)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "jei.jar", installed[0].FileName)

	writeMods(t, filepath.Join(inst.Dir, "mods"), map[string]string{"extra.jar": "extra"})
	rec, err := svc.Verify(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, []string{"jei.jar"}, rec.Verified)
	assert.Equal(t, []string{"extra.jar"}, rec.Stale)
	assert.Empty(t, rec.Deleted)
	assert.FileExists(t, filepath.Join(inst.Dir, "mods", "extra.jar"))
}

func TestService_VerifyNeedsKeyForCurseMods(t *testing.T) {
	svc := newTestService(t, "")
	inst := &config.Instance{
		Dir:          t.TempDir(),
		ForgeVersion: newForgeVersion,
		CurseMods:    []config.CurseModConfig{{ProjectID: 238222, FileID: 3043174}},
	}

	_, err := svc.Verify(context.Background(), inst)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}
