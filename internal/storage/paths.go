// Package storage provides the on-disk locations used by lolbot and a
// persistent cache of tablebase verdicts.
package storage

import (
	"os"
	"path/filepath"
	"runtime"

	"k8s.io/klog/v2"
)

const appName = "lolbot"

// GetDataDir returns the platform-specific data directory for the application.
// - macOS: ~/Library/Application Support/lolbot/
// - Linux: ~/.local/share/lolbot/
// - Windows: %APPDATA%/lolbot/
func GetDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support")

	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, "AppData", "Roaming")
		}

	default:
		// Check XDG_DATA_HOME first
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	return ensureDir(filepath.Join(baseDir, appName))
}

// GetNNUEDir returns the directory for storing network weight blobs.
func GetNNUEDir() (string, error) {
	return subDir("nnue")
}

// GetCacheDir returns the directory of the tablebase probe cache.
func GetCacheDir() (string, error) {
	dir, err := subDir("tbcache")
	if err != nil {
		return "", err
	}
	klog.V(1).Infof("[Storage] probe cache directory: %s", dir)
	return dir, nil
}

func subDir(name string) (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return ensureDir(filepath.Join(dataDir, name))
}

func ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
