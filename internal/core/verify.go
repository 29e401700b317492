package core

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// FileSHA1 returns the hex SHA-1 and byte size of the file at path
func FileSHA1(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha1.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// VerifyFile reports whether the file at path has exactly the expected SHA-1 and size.
// A missing or unreadable file does not verify.
func VerifyFile(path, expectedHash string, expectedSize int64) bool {
	return CheckFile(path, expectedHash, expectedSize) == nil
}

// CheckFile is VerifyFile returning the reason for a failure.
// Mismatches are reported as *domain.VerificationError.
func CheckFile(path, expectedHash string, expectedSize int64) error {
	hash, size, err := FileSHA1(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(hash, expectedHash) || size != expectedSize {
		return &domain.VerificationError{
			Path:         path,
			ExpectedHash: expectedHash,
			ActualHash:   hash,
			ExpectedSize: expectedSize,
			ActualSize:   size,
		}
	}
	return nil
}

// ModMatches reports whether the file at path is the given mod's content.
// The hash is compared when the mod declares one and the size when it is non-zero.
func ModMatches(path string, mod domain.Mod) bool {
	return FileMatches(path, mod.SHA1, mod.Size)
}

// FileMatches is VerifyFile checking only what is declared: an empty hash skips the
// hash comparison and a non-positive size skips the size comparison. With neither
// declared, any regular file matches.
func FileMatches(path, expectedHash string, expectedSize int64) bool {
	if expectedHash == "" && expectedSize <= 0 {
		info, err := os.Stat(path)
		return err == nil && info.Mode().IsRegular()
	}

	hash, size, err := FileSHA1(path)
	if err != nil {
		return false
	}
	if expectedHash != "" && !strings.EqualFold(hash, expectedHash) {
		return false
	}
	if expectedSize > 0 && size != expectedSize {
		return false
	}
	return true
}
