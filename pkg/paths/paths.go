// Package paths locates kiln's per-user directories and provides the file
// resolution service handed to model rules.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "kiln"

// ConfigDir returns the config directory for kiln.
// Order: XDG_CONFIG_HOME/kiln, %AppData%\Kiln on Windows, ~/.config/kiln.
func ConfigDir() string {
	return userDir("XDG_CONFIG_HOME", "AppData", filepath.Join(".config", appName), "Kiln")
}

// CacheDir returns the cache directory for kiln. Compile outputs default
// to a subdirectory of it.
func CacheDir() string {
	return userDir("XDG_CACHE_HOME", "LocalAppData", filepath.Join(".cache", appName), filepath.Join("Kiln", "Cache"))
}

func userDir(xdgVar, windowsVar, homeRel, windowsRel string) string {
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if runtime.GOOS == "windows" {
		if base := os.Getenv(windowsVar); base != "" {
			return filepath.Join(base, windowsRel)
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, homeRel)
}
