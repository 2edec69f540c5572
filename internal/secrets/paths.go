package secrets

import (
	"os"
	"path/filepath"
)

const (
	// EnvFileName is the env file looked up in every search location.
	EnvFileName = ".env"
	// FirebaseConfigFileName is the credential file looked up in every search location.
	FirebaseConfigFileName = "firebase-config.json"

	systemConfigDir = "/etc/dbmigration"
	userConfigDir   = ".dbmigration"
	optConfigDir    = "/opt/dbmigration"
)

// DefaultSearchDirs returns the fallback directories consulted after the
// current directory: /etc/dbmigration, ~/.dbmigration, /opt/dbmigration.
// The home entry is skipped when the home directory cannot be determined.
func DefaultSearchDirs() []string {
	dirs := []string{systemConfigDir}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, userConfigDir))
	}
	return append(dirs, optConfigDir)
}

// candidatePaths returns the lookup order for name: the explicit path, then
// name relative to the working directory, then name inside each search dir.
func candidatePaths(explicit, name string, dirs []string) []string {
	paths := make([]string, 0, len(dirs)+2)
	if explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths, name)
	for _, dir := range dirs {
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths
}

// firstExisting returns the first path that exists on the filesystem.
func firstExisting(paths []string) (string, bool) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}
