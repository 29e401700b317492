package domain

import "strings"

// SourceDirect is the source ID for mods with a direct download URL
const SourceDirect = "direct"

// Mod is an add-on package to place in the mods directory
type Mod struct {
	Name        string `json:"name" yaml:"name"`               // File name, with or without .jar
	DownloadURL string `json:"downloadURL" yaml:"download_url"` // Direct URL
	SHA1        string `json:"sha1" yaml:"sha1"`               // Expected hex SHA-1, empty to skip the hash check
	Size        int64  `json:"size" yaml:"size"`               // Expected size in bytes, 0 to skip the size check
	SourceID    string `json:"-" yaml:"-"`                     // "direct" or a registry ID such as "curseforge"
}

// FileName returns the on-disk name of the mod, always ending in .jar
func (m Mod) FileName() string {
	if strings.HasSuffix(strings.ToLower(m.Name), ".jar") {
		return m.Name
	}
	return m.Name + ".jar"
}

// MatchesFile reports whether name is this mod's file (case-insensitive).
func (m Mod) MatchesFile(name string) bool {
	return strings.EqualFold(m.FileName(), name)
}

// CurseModInfo references a file on the CurseForge registry
type CurseModInfo struct {
	ProjectID int `json:"projectID" yaml:"project_id"`
	FileID    int `json:"fileID" yaml:"file_id"`
}
