package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// BinariesDirName is the directory next to the launcher executable that
// holds the bundled RustFS binaries.
const BinariesDirName = "binaries"

// BinaryName returns the bundled RustFS file name for the given GOOS.
func BinaryName(goos string) string {
	switch goos {
	case "darwin":
		return "rustfs-macos-aarch64"
	case "windows":
		return "rustfs-windows-x86_64.exe"
	default:
		return "rustfs"
	}
}

// binariesDir returns the configured binaries directory, falling back to
// <dir of own executable>/binaries.
func (s *Supervisor) binariesDir() (string, error) {
	if s.config.BinariesDir != "" {
		return s.config.BinariesDir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating launcher executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), BinariesDirName), nil
}

// resolveBinary picks the binary to run, records the choice in the app log
// and checks that it exists.
func (s *Supervisor) resolveBinary(explicit string) (string, error) {
	path := explicit
	if path == "" {
		dir, err := s.binariesDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, BinaryName(runtime.GOOS))
	}

	s.appLog("Resolved binary path: " + path)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, path)
		}
		return "", fmt.Errorf("%w for %s: %w", ErrMetadata, path, err)
	}
	return path, nil
}
