package paths

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestConfigDir(t *testing.T) {
	t.Run("XDGOverride", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		if got, want := ConfigDir(), filepath.Join("/tmp/xdg-config", "kiln"); got != want {
			t.Fatalf("ConfigDir() = %s, want %s", got, want)
		}
	})

	t.Run("PlatformDefault", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		want := filepath.Join("/home/tester", ".config", "kiln")
		if runtime.GOOS == "windows" {
			t.Setenv("AppData", `C:\AppData`)
			want = filepath.Join(`C:\AppData`, "Kiln")
		} else {
			t.Setenv("HOME", "/home/tester")
		}
		if got := ConfigDir(); got != want {
			t.Fatalf("ConfigDir() = %s, want %s", got, want)
		}
	})
}

func TestCacheDir(t *testing.T) {
	t.Run("XDGOverride", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
		if got, want := CacheDir(), filepath.Join("/tmp/xdg-cache", "kiln"); got != want {
			t.Fatalf("CacheDir() = %s, want %s", got, want)
		}
	})

	t.Run("PlatformDefault", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "")
		want := filepath.Join("/home/tester", ".cache", "kiln")
		if runtime.GOOS == "windows" {
			t.Setenv("LocalAppData", `C:\LocalAppData`)
			want = filepath.Join(`C:\LocalAppData`, "Kiln", "Cache")
		} else {
			t.Setenv("HOME", "/home/tester")
		}
		if got := CacheDir(); got != want {
			t.Fatalf("CacheDir() = %s, want %s", got, want)
		}
	})
}
