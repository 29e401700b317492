package curseforge

import "time"

// CurseForge API v1 response types
// API docs: https://docs.curseforge.com/rest-api/

// APIResponse wraps all CurseForge API responses
type APIResponse[T any] struct {
	Data T `json:"data"`
}

// Mod is the part of a CurseForge project used for logging and availability checks
type Mod struct {
	ID                   int    `json:"id"`
	GameID               int    `json:"gameId"`
	Name                 string `json:"name"`
	Slug                 string `json:"slug"`
	AllowModDistribution *bool  `json:"allowModDistribution"`
	IsAvailable          bool   `json:"isAvailable"`
}

// File represents a downloadable mod file
type File struct {
	ID           int        `json:"id"`
	GameID       int        `json:"gameId"`
	ModID        int        `json:"modId"`
	IsAvailable  bool       `json:"isAvailable"`
	DisplayName  string     `json:"displayName"`
	FileName     string     `json:"fileName"`
	ReleaseType  int        `json:"releaseType"` // 1=Release, 2=Beta, 3=Alpha
	FileStatus   int        `json:"fileStatus"`
	Hashes       []FileHash `json:"hashes"`
	FileDate     time.Time  `json:"fileDate"`
	FileLength   int64      `json:"fileLength"`
	DownloadURL  string     `json:"downloadUrl"` // null when the author disabled third-party downloads
	GameVersions []string   `json:"gameVersions"`
}

// SHA1 returns the file's SHA-1 hash, or "" when the API did not report one
func (f *File) SHA1() string {
	for _, h := range f.Hashes {
		if h.Algo == HashAlgoSHA1 {
			return h.Value
		}
	}
	return ""
}

// FileHash contains hash info for a file
type FileHash struct {
	Value string `json:"value"`
	Algo  int    `json:"algo"` // 1=SHA1, 2=MD5
}

// Hash algorithms
const (
	HashAlgoSHA1 = 1
	HashAlgoMD5  = 2
)

// StringDownloadURL is the response for the download URL endpoint
type StringDownloadURL struct {
	Data string `json:"data"`
}

// getFilesRequest is the body of POST /v1/mods/files
type getFilesRequest struct {
	FileIDs []int `json:"fileIds"`
}
