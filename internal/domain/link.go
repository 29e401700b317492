package domain

// LinkMethod determines how cached mod files are placed in the mods directory
type LinkMethod int

const (
	LinkCopy     LinkMethod = iota // Default: independent copy of the cached file
	LinkHardlink                   // Hardlink into the cache (same filesystem only)
	LinkSymlink                    // Symlink into the cache
)

func (m LinkMethod) String() string {
	switch m {
	case LinkCopy:
		return "copy"
	case LinkHardlink:
		return "hardlink"
	case LinkSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// ParseLinkMethod converts a string to LinkMethod
func ParseLinkMethod(s string) LinkMethod {
	switch s {
	case "hardlink":
		return LinkHardlink
	case "symlink":
		return LinkSymlink
	default:
		return LinkCopy
	}
}
