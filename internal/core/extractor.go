package core

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"

	"github.com/ulikunitz/xz/lzma"
)

// zipMethodLZMA is the zip compression method ID for LZMA entries
const zipMethodLZMA uint16 = 14

// Extractor unpacks zip and jar archives. It holds no state.
type Extractor struct{}

// NewExtractor creates a new Extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks every entry of a zip/jar archive into destDir.
// Stored, Deflate and LZMA entries are supported; anything else is an *domain.ArchiveError.
func (e *Extractor) Extract(archivePath, destDir string) (err error) {
	// Create destination directory
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &domain.ArchiveError{Archive: archivePath, Err: err}
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing zip: %w", cerr)
		}
	}()

	for _, f := range r.File {
		if err := e.extractZipFile(archivePath, f, destDir); err != nil {
			return err
		}
	}

	return nil
}

// ExtractFile copies the single entry named entryName to destPath.
// It reports false, without error, when the archive has no such entry.
// destPath only appears once the entry is fully written and its checksum verified.
func (e *Extractor) ExtractFile(archivePath, entryName, destPath string) (found bool, err error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return false, &domain.ArchiveError{Archive: archivePath, Err: err}
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != entryName || f.FileInfo().IsDir() {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return false, fmt.Errorf("creating directory for %s: %w", destPath, err)
		}
		tmpPath := destPath + ".tmp"
		if err := e.writeEntry(archivePath, f, tmpPath); err != nil {
			os.Remove(tmpPath)
			return false, err
		}
		if err := os.Rename(tmpPath, destPath); err != nil {
			os.Remove(tmpPath)
			return false, fmt.Errorf("moving %s into place: %w", destPath, err)
		}
		return true, nil
	}

	return false, nil
}

// extractZipFile extracts a single file from a ZIP archive
func (e *Extractor) extractZipFile(archivePath string, f *zip.File, destDir string) error {
	// Sanitize the file path to prevent zip slip attacks
	destPath, err := e.sanitizePath(destDir, f.Name)
	if err != nil {
		return &domain.ArchiveError{Archive: archivePath, Entry: f.Name, Err: err}
	}

	// Handle directories
	if f.FileInfo().IsDir() {
		// Use 0755 for directories to ensure we can write files into them
		return os.MkdirAll(destPath, 0755)
	}

	// Create parent directories
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	return e.writeEntry(archivePath, f, destPath)
}

func (e *Extractor) writeEntry(archivePath string, f *zip.File, destPath string) (err error) {
	rc, err := openEntry(f)
	if err != nil {
		return &domain.ArchiveError{Archive: archivePath, Entry: f.Name, Err: err}
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = &domain.ArchiveError{Archive: archivePath, Entry: f.Name, Err: cerr}
		}
	}()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	// Create the destination file
	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", destPath, err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing file %s: %w", destPath, cerr)
		}
	}()

	// Copy the contents; archive/zip and lzmaEntry both check the CRC at EOF
	if _, err = io.Copy(outFile, rc); err != nil {
		return &domain.ArchiveError{Archive: archivePath, Entry: f.Name, Err: err}
	}

	return nil
}

// openEntry returns a reader of the decompressed entry content
func openEntry(f *zip.File) (io.ReadCloser, error) {
	if f.Method != zipMethodLZMA {
		return f.Open()
	}

	raw, err := f.OpenRaw()
	if err != nil {
		return nil, err
	}
	return newLZMAEntry(raw, f.UncompressedSize64, f.CRC32)
}

// newLZMAEntry decodes a zip LZMA entry. The entry starts with a 4-byte zip LZMA
// header (version, properties length) followed by the 5 property bytes; the
// uncompressed size comes from the central directory instead of the stream.
func newLZMAEntry(raw io.Reader, size uint64, crc uint32) (io.ReadCloser, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(raw, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading lzma header: %w", err)
	}
	propsLen := binary.LittleEndian.Uint16(hdr[2:])
	if propsLen != 5 {
		return nil, fmt.Errorf("unsupported lzma properties length %d", propsLen)
	}

	// Classic .lzma header: properties, dictionary size, uncompressed size
	classic := make([]byte, lzma.HeaderLen)
	if _, err := io.ReadFull(raw, classic[:5]); err != nil {
		return nil, fmt.Errorf("reading lzma properties: %w", err)
	}
	binary.LittleEndian.PutUint64(classic[5:], size)

	dec, err := lzma.NewReader(io.MultiReader(bytes.NewReader(classic), raw))
	if err != nil {
		return nil, fmt.Errorf("initialising lzma decoder: %w", err)
	}

	return &lzmaEntry{r: io.LimitReader(dec, int64(size)), size: size, crc: crc, hash: crc32.NewIEEE()}, nil
}

// lzmaEntry verifies size and CRC-32 once the decoder is drained
type lzmaEntry struct {
	r    io.Reader
	hash hash.Hash32
	size uint64
	read uint64
	crc  uint32
}

func (l *lzmaEntry) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.hash.Write(p[:n])
	l.read += uint64(n)
	if errors.Is(err, io.EOF) {
		if l.read != l.size {
			return n, io.ErrUnexpectedEOF
		}
		if l.hash.Sum32() != l.crc {
			return n, zip.ErrChecksum
		}
	}
	return n, err
}

func (l *lzmaEntry) Close() error { return nil }

// sanitizePath ensures the extracted file path is within the destination directory
// This prevents "zip slip" attacks where malicious archives contain paths like "../../../etc/passwd"
func (e *Extractor) sanitizePath(destDir, filePath string) (string, error) {
	// Join with destination directory
	destPath := filepath.Join(destDir, filepath.Clean(filePath))

	// Verify the resulting path is still within destDir
	if !strings.HasPrefix(filepath.Clean(destPath)+string(os.PathSeparator), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal detected: %s", filePath)
	}

	return destPath, nil
}
