package core

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// installerDenylist lists paths removed from an extracted new-generation installer
// before the patch overlay is applied. "joptisimple" is the historical misspelling.
var installerDenylist = []string{
	"net",
	"com",
	"joptsimple",
	"joptisimple",
	"META-INF/MANIFEST.MF",
	"META-INF/FORGE.DSA",
	"META-INF/FORGE.SF",
	"lekeystore.jks",
	"big_logo.png",
}

// Patcher rebuilds an installer jar with an overlay applied on top
type Patcher struct {
	extractor *Extractor
}

// NewPatcher creates a Patcher
func NewPatcher(extractor *Extractor) *Patcher {
	if extractor == nil {
		extractor = NewExtractor()
	}
	return &Patcher{extractor: extractor}
}

// Clean removes the installer denylist from dir. Missing entries are ignored.
func (p *Patcher) Clean(dir string) error {
	return CleanPaths(dir, installerDenylist)
}

// CleanPaths removes each slash-separated relative path (file or directory) under dir
func CleanPaths(dir string, paths []string) error {
	for _, rel := range paths {
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing %s: %w", rel, err)
		}
	}
	return nil
}

// Repack writes every regular file under dir into a new Deflate zip at out.
// Entries are named by their slash-separated path relative to dir and written in
// lexical order, so the same tree always produces the same entry list.
func (p *Patcher) Repack(dir, out string) (err error) {
	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", out, err)
	}

	tempPath := out + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tempPath, err)
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(tempPath)
		}
	}()

	zw := zip.NewWriter(f)
	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}
		if err := addZipEntry(zw, path, filepath.ToSlash(rel)); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, out); err != nil {
		return fmt.Errorf("renaming %s: %w", tempPath, err)
	}
	return nil
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Patch produces out from installer and overlay: the installer is extracted into
// workDir, cleaned, the overlay extracted over it, and the tree repacked.
func (p *Patcher) Patch(installer, overlay, workDir, out string) error {
	if installer == "" || overlay == "" {
		return errors.New("patch needs both an installer and an overlay")
	}
	if err := p.extractor.Extract(installer, workDir); err != nil {
		return fmt.Errorf("extracting installer: %w", err)
	}
	if err := p.Clean(workDir); err != nil {
		return fmt.Errorf("cleaning installer: %w", err)
	}
	if err := p.extractor.Extract(overlay, workDir); err != nil {
		return fmt.Errorf("extracting patches: %w", err)
	}
	if err := p.Repack(workDir, out); err != nil {
		return fmt.Errorf("repacking installer: %w", err)
	}
	return nil
}
