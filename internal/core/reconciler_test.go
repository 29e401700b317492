package core_test

import (
	"crypto/sha1"
	"encoding/hex"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/DonovanMods/flowupdater/internal/core"
	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha1Hex(data string) string {
	sum := sha1.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func writeMods(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestReconciler_DeletesMismatchedAndUnknown(t *testing.T) {
	modsDir := filepath.Join(t.TempDir(), "mods")
	writeMods(t, modsDir, map[string]string{
		"A.jar": "content a",
		"B.jar": "content b",
		"C.jar": "content c",
	})
	mods := []domain.Mod{
		{Name: "A.jar", SHA1: sha1Hex("content a"), Size: 9},
		{Name: "B.jar", SHA1: sha1Hex("other b"), Size: 7},
	}

	m := metrics.New()
	result, err := core.NewReconciler(quietLogger(), m).Reconcile(modsDir, mods, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"A.jar"}, result.Verified)
	assert.Equal(t, []string{"B.jar", "C.jar"}, result.Stale)
	assert.Equal(t, []string{"B.jar", "C.jar"}, result.Deleted)
	assert.Equal(t, []string{"A.jar"}, listDir(t, modsDir))
}

func TestReconciler_DisabledDeletesNothing(t *testing.T) {
	modsDir := t.TempDir()
	writeMods(t, modsDir, map[string]string{"A.jar": "a", "C.jar": "c"})

	result, err := core.NewReconciler(quietLogger(), nil).Reconcile(modsDir, nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"A.jar", "C.jar"}, result.Stale)
	assert.Empty(t, result.Deleted)
	assert.Equal(t, []string{"A.jar", "C.jar"}, listDir(t, modsDir))
}

func TestReconciler_NameMatching(t *testing.T) {
	modsDir := t.TempDir()
	writeMods(t, modsDir, map[string]string{
		"JEI.JAR":      "jei",
		"optifine.jar": "optifine",
		"journeymap":   "map",
		"notes.txt":    "notes",
	})
	mods := []domain.Mod{
		{Name: "jei.jar", SHA1: sha1Hex("jei"), Size: 3},
		{Name: "OptiFine", SHA1: sha1Hex("optifine"), Size: 8},
		{Name: "journeymap", SHA1: sha1Hex("map"), Size: 3},
	}

	result, err := core.NewReconciler(quietLogger(), nil).Classify(modsDir, mods)
	require.NoError(t, err)

	assert.Equal(t, []string{"JEI.JAR", "optifine.jar"}, result.Verified)
	assert.Equal(t, []string{"journeymap", "notes.txt"}, result.Stale, "expected names are compared with .jar appended")
}

func TestReconciler_IgnoresDirectories(t *testing.T) {
	modsDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(modsDir, "config"), 0755))
	writeMods(t, modsDir, map[string]string{"A.jar": "a"})

	result, err := core.NewReconciler(quietLogger(), nil).Reconcile(modsDir, nil, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"A.jar"}, result.Deleted)
	assert.DirExists(t, filepath.Join(modsDir, "config"))
}

func TestReconciler_SizeOnlyWhenDeclared(t *testing.T) {
	modsDir := t.TempDir()
	writeMods(t, modsDir, map[string]string{"A.jar": "content a", "B.jar": "content b"})
	mods := []domain.Mod{
		{Name: "A", SHA1: sha1Hex("content a")},
		{Name: "B", Size: 9},
	}

	result, err := core.NewReconciler(quietLogger(), nil).Classify(modsDir, mods)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.jar", "B.jar"}, result.Verified)
	assert.Empty(t, result.Stale)
}

func TestReconciler_MissingDirectory(t *testing.T) {
	result, err := core.NewReconciler(quietLogger(), nil).Reconcile(filepath.Join(t.TempDir(), "nope"), nil, true)
	require.NoError(t, err)
	assert.Empty(t, result.Verified)
	assert.Empty(t, result.Stale)
}

// TestReconciler_PartitionLaw checks verified ∪ stale = A and verified ∩ stale = ∅
// for random directories, independent of the mod list order.
func TestReconciler_PartitionLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		modsDir := t.TempDir()
		files := make(map[string]string)
		var mods []domain.Mod

		for i := 0; i < 8; i++ {
			name := string(rune('a'+i)) + ".jar"
			content := name + " content"
			switch rng.Intn(4) {
			case 0: // expected and matching
				files[name] = content
				mods = append(mods, domain.Mod{Name: name, SHA1: sha1Hex(content), Size: int64(len(content))})
			case 1: // expected with different content
				files[name] = content
				mods = append(mods, domain.Mod{Name: name, SHA1: sha1Hex("x"), Size: 1})
			case 2: // unknown file
				files[name] = content
			case 3: // expected but absent
				mods = append(mods, domain.Mod{Name: name, SHA1: sha1Hex(content)})
			}
		}
		writeMods(t, modsDir, files)

		reconciler := core.NewReconciler(quietLogger(), nil)
		first, err := reconciler.Classify(modsDir, mods)
		require.NoError(t, err)

		rng.Shuffle(len(mods), func(i, j int) { mods[i], mods[j] = mods[j], mods[i] })
		second, err := reconciler.Classify(modsDir, mods)
		require.NoError(t, err)
		assert.Equal(t, first, second, "classification must not depend on order")

		union := make(map[string]int)
		for _, n := range first.Verified {
			union[n]++
		}
		for _, n := range first.Stale {
			union[n]++
		}
		assert.Len(t, union, len(files))
		for name := range files {
			assert.Equal(t, 1, union[name], "%s must be in exactly one set", name)
		}

		for _, name := range first.Verified {
			var ok bool
			for _, m := range mods {
				if m.MatchesFile(name) && m.SHA1 == sha1Hex(files[name]) {
					ok = true
				}
			}
			assert.True(t, ok, "%s verified without a matching mod", name)
		}
	}
}
